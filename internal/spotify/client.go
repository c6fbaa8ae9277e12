package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/spotify-mcp/internal/instrumentation"
	"github.com/teemow/spotify-mcp/internal/logging"
)

const maxBodyBytes = 1 << 20

// Client calls the Web API with a fixed access token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultAPIBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithMetrics records every call on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns a client that sends token as bearer credential. The
// underlying transport is taken from ctx via oauth2.HTTPClient, so tests and
// callers can inject their own *http.Client. The token is never refreshed.
func NewClient(ctx context.Context, token *oauth2.Token, opts ...Option) *Client {
	c := &Client{
		httpClient: oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)),
		baseURL:    DefaultAPIBaseURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentlyPlaying returns the user's current playback item. It returns nil
// and no error when nothing is playing (HTTP 204).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*CurrentlyPlaying, error) {
	var cp CurrentlyPlaying
	var found bool
	err := c.observe(ctx, instrumentation.OperationCurrentlyPlaying, func(ctx context.Context) error {
		var err error
		found, err = c.do(ctx, http.MethodGet, "/me/player/currently-playing", &cp)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &cp, nil
}

// Next skips to the next track in the user's queue.
func (c *Client) Next(ctx context.Context) error {
	return c.observe(ctx, instrumentation.OperationNext, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/me/player/next", nil)
		return err
	})
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	return c.observe(ctx, instrumentation.OperationPrevious, func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/me/player/previous", nil)
		return err
	})
}

func (c *Client) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := instrumentation.StartSpotifyAPISpan(ctx, instrumentation.ServicePlayer, operation)
	defer span.End()

	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordSpotifyAPIOperation(ctx, instrumentation.ServicePlayer, operation, status, time.Since(start))
	return err
}

// do performs one request. It reports whether a body was decoded into out.
//
// When out is nil the call only changes state: any 2xx counts as success and
// the body is ignored. The API answers these with 204, 200 and an empty body,
// or occasionally 200 with a non-JSON body, and the side effect has already
// happened in all three cases.
func (c *Client) do(ctx context.Context, method, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("spotify request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && resp.StatusCode/100 != 2 {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return false, newAPIError(resp.StatusCode, body)
	}

	if out == nil {
		if len(body) > 0 && !json.Valid(body) {
			c.logger.Debug("ignoring non-JSON body on state-changing call",
				logging.Operation(path),
				slog.Int("status", resp.StatusCode),
				slog.Int("body_bytes", len(body)))
		}
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(body))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return true, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
