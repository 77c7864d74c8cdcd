package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the engine's settings. Values come from TICKTICK_*
// environment variables, with an optional .env file in the working directory
// filling in anything the environment leaves unset.
type Config struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	BaseURL      string
}

const (
	envFile = ".env"

	defaultRedirectURI = "http://localhost:6789/callback"
	defaultScope       = "tasks:read"
)

// Load reads configuration from the environment and an optional .env file.
// A missing .env file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ticktick")
	v.AutomaticEnv()

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("dotenv")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		AccessToken:  lookup(v, "access_token"),
		ClientID:     lookup(v, "client_id"),
		ClientSecret: lookup(v, "client_secret"),
		RedirectURI:  lookup(v, "redirect_uri"),
		Scope:        lookup(v, "scope"),
		BaseURL:      lookup(v, "base_url"),
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = defaultRedirectURI
	}
	if cfg.Scope == "" {
		cfg.Scope = defaultScope
	}
	return cfg, nil
}

// lookup checks both the env-prefixed key and the literal TICKTICK_* key a
// .env file would carry, and strips quotes some .env files wrap values in.
func lookup(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		val = v.GetString("ticktick_" + key)
	}
	return strings.Trim(strings.TrimSpace(val), `'"`)
}
