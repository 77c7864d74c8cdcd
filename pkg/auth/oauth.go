// Package auth implements the interactive OAuth2 authorization-code flow
// against TickTick. It is the token-supply collaborator: the export engine
// itself only consumes an access token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// AuthURL and TokenURL are TickTick's OAuth2 endpoints.
	AuthURL  = "https://ticktick.com/oauth/authorize"
	TokenURL = "https://ticktick.com/oauth/token"

	// TokenFile is where the obtained token is cached, under the app's
	// config directory.
	TokenFile = "token.json"

	xdgAppName = "tickdown"

	authTimeout = 5 * time.Minute
)

// Credentials are the OAuth2 client settings for the registered TickTick
// application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
}

// Config builds an oauth2.Config for the TickTick endpoints.
func Config(creds Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       []string{creds.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// Login runs the full authorization-code flow: it prints the authorization
// URL, captures the redirect on a local web server, exchanges the code for a
// token, and caches the token on disk. It returns the obtained token.
func Login(ctx context.Context, creds Credentials) (*oauth2.Token, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("TICKTICK_CLIENT_ID and TICKTICK_CLIENT_SECRET are required for the auth flow")
	}

	config := Config(creds)
	tok, err := getTokenFromWeb(ctx, config)
	if err != nil {
		return nil, err
	}

	path, err := TokenPath()
	if err != nil {
		return nil, err
	}
	if err := saveToken(path, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// getTokenFromWeb serves the OAuth2 redirect on the port named in the
// redirect URI and waits for the user to authorize in their browser.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI '%s': %w", config.RedirectURL, err)
	}
	port := redirect.Port()
	if port == "" {
		port = "80"
	}

	state := uuid.NewString()
	codeCh := make(chan string)
	errCh := make(chan error)

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to start listener on port %s: %w", port, err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("state"); got != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				errCh <- fmt.Errorf("state mismatch in redirect (expected %s, got %s)", state, got)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code not found in redirect URL")
				return
			}
			fmt.Fprintf(w, "Authentication successful! You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	authURL := config.AuthCodeURL(state)
	fmt.Printf("Please open the following URL in your browser to authorize tickdown:\n%s\n", authURL)
	fmt.Println("Waiting for authorization...")

	select {
	case authCode := <-codeCh:
		exchangeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		tok, err := config.Exchange(exchangeCtx, authCode)
		if err != nil {
			return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
		}
		server.Shutdown(exchangeCtx)
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		server.Shutdown(context.Background())
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		server.Shutdown(context.Background())
		return nil, fmt.Errorf("authorization timed out. Please try again")
	}
}

// TokenPath returns the token cache location, ~/.config/tickdown/token.json.
func TokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName, TokenFile), nil
}

// CachedAccessToken returns the access token from the cache file, or "" if
// no usable token is cached.
func CachedAccessToken() string {
	path, err := TokenPath()
	if err != nil {
		return ""
	}
	tok, err := tokenFromFile(path)
	if err != nil {
		return ""
	}
	return tok.AccessToken
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token to %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	fmt.Printf("Saved authentication token to: %s\n", path)
	return nil
}
