package ticktick

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tickdown/tickdown/pkg/model"
)

// DefaultBaseURL is the TickTick open API host.
const DefaultBaseURL = "https://api.ticktick.com"

const (
	maxAttempts     = 3
	defaultPageSize = 100
)

// ErrAuth indicates the access token was rejected by the API. It is never
// retried; the caller should re-run the auth flow.
var ErrAuth = errors.New("ticktick: authentication failed")

// Snapshot is the complete fetch result for one run.
type Snapshot struct {
	Projects []model.Project
	Tasks    []model.Task
	// Skipped counts raw records rejected at the API boundary (e.g. tasks
	// with no id). These are per-item failures, not fatal.
	Skipped int
}

// Client talks to the TickTick open API on behalf of one account.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	pageSize   int
	retryWait  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host, mainly for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithLogger sets the client's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetryWait overrides the initial retry backoff, mainly for tests.
func WithRetryWait(d time.Duration) Option {
	return func(c *Client) { c.retryWait = d }
}

// NewClient creates a Client authenticated with the given bearer token.
func NewClient(accessToken string, opts ...Option) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: oauth2.NewClient(context.Background(), src),
		logger:     zap.NewNop(),
		pageSize:   defaultPageSize,
		retryWait:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll retrieves every project and every task visible to the account.
// Pagination is fully drained before returning so the hierarchy resolver
// always sees a complete snapshot.
func (c *Client) FetchAll(ctx context.Context) (*Snapshot, error) {
	projects, err := c.listProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	c.logger.Info("Fetched projects", zap.Int("count", len(projects)))

	snap := &Snapshot{Projects: projects}
	for _, p := range projects {
		tasks, skipped, err := c.projectTasks(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tasks for project %s: %w", p.ID, err)
		}
		c.logger.Debug("Fetched project tasks",
			zap.String("project", p.Name), zap.Int("count", len(tasks)))
		snap.Tasks = append(snap.Tasks, tasks...)
		snap.Skipped += skipped
	}
	return snap, nil
}

func (c *Client) listProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.getJSON(ctx, c.baseURL+"/open/v1/project", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// projectDataResponse is the shape of GET /open/v1/project/{id}/data. Only
// the task list matters here; columns and project metadata are ignored.
type projectDataResponse struct {
	Tasks []json.RawMessage `json:"tasks"`
}

func (c *Client) projectTasks(ctx context.Context, projectID string) ([]model.Task, int, error) {
	var all []model.Task
	skipped := 0
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/open/v1/project/%s/data?limit=%d&page=%d",
			c.baseURL, url.PathEscape(projectID), c.pageSize, page)

		var resp projectDataResponse
		if err := c.getJSON(ctx, u, &resp); err != nil {
			return nil, skipped, err
		}

		for _, raw := range resp.Tasks {
			var task model.Task
			if err := json.Unmarshal(raw, &task); err != nil {
				c.logger.Warn("Skipping malformed task record",
					zap.String("project", projectID), zap.Error(err))
				skipped++
				continue
			}
			if task.ID == "" {
				c.logger.Warn("Skipping task with no id", zap.String("project", projectID))
				skipped++
				continue
			}
			if task.ProjectID == "" {
				task.ProjectID = projectID
			}
			all = append(all, task)
		}

		if len(resp.Tasks) < c.pageSize {
			return all, skipped, nil
		}
	}
}

// getJSON performs a GET with bounded retries. Transient failures (network
// errors and 5xx responses) are retried with doubling backoff; auth failures
// surface immediately as ErrAuth.
func (c *Client) getJSON(ctx context.Context, url string, v interface{}) error {
	wait := c.retryWait
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("Retrying request",
				zap.String("url", url), zap.Int("attempt", attempt))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			wait *= 2
		}

		err := c.doGet(ctx, url, v)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doGet(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transientError{err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(v)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &transientError{fmt.Errorf("server error: status %d, body: %s", resp.StatusCode, body)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d, body: %s", resp.StatusCode, body)
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
