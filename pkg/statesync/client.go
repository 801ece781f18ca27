// Package statesync pushes local posture state to a remote store and keeps
// an eye on whether that store is reachable. Every remote call is
// best-effort: failures are reported, never retried.
package statesync

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/teslashibe/go-posture/internal/httpc"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/session"
)

// DefaultTimeout bounds each remote call.
const DefaultTimeout = 5 * time.Second

// StatusResponse is the body of /start, /stop, /update and /health.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Client talks to the posture API over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{http: httpc.NewResty(baseURL, timeout)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Component("statesync")
	}
	return c
}

// BaseURL returns the remote base URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Push sends a sparse state update to /update.
func (c *Client) Push(ctx context.Context, u session.Update) error {
	_, err := c.post(ctx, "update", "/update", u)
	return err
}

// NotifyStart asks the remote to open a session.
func (c *Client) NotifyStart(ctx context.Context) error {
	_, err := c.post(ctx, "start", "/start", nil)
	return err
}

// NotifyStop asks the remote to close its session.
func (c *Client) NotifyStop(ctx context.Context) error {
	_, err := c.post(ctx, "stop", "/stop", nil)
	return err
}

// Health checks that the remote answers {"status":"healthy"}.
func (c *Client) Health(ctx context.Context) error {
	var out StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/health")
	if err != nil {
		return &SyncError{Op: "health", Err: err}
	}
	if resp.IsError() {
		return &SyncError{Op: "health", StatusCode: resp.StatusCode(), Message: resp.String()}
	}
	if out.Status != "healthy" {
		return &SyncError{Op: "health", StatusCode: resp.StatusCode(), Message: out.Status, Err: ErrUnhealthy}
	}
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) (*StatusResponse, error) {
	var out StatusResponse
	var fail StatusResponse
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&fail)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post(path)
	if err != nil {
		return nil, &SyncError{Op: op, Err: err}
	}
	if resp.IsError() {
		msg := fail.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, &SyncError{Op: op, StatusCode: resp.StatusCode(), Message: msg}
	}

	c.logger.Debug("remote call ok", "op", op, "status", out.Status, "message", out.Message)
	return &out, nil
}

var (
	_ Notifier      = (*Client)(nil)
	_ HealthChecker = (*Client)(nil)
)
