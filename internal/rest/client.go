// Package rest is the shared HTTP transport for the Azure REST
// clients (graph/, dfs/, arm/). It handles request construction,
// authentication, retry with exponential backoff, request-id
// correlation, and error classification.
package rest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Retry and backoff constants.
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "adlsctl/0.1"
)

// TokenSource provides OAuth2 bearer tokens. Defined at the consumer
// per Go convention "accept interfaces, return structs". The azauth
// package provides the real implementation.
type TokenSource interface {
	Token() (string, error)
}

// Client is an authenticated HTTP client for one Azure endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a transport client for the given base URL, e.g.
// "https://graph.microsoft.com/v1.0" or
// "https://myaccount.dfs.core.windows.net".
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// Request describes a single API call. Headers are optional; a
// client-request-id is always generated. A Body that should survive
// retries must implement io.Seeker (bytes.Reader, strings.Reader);
// non-seekable bodies disable retry for the request.
type Request struct {
	Method  string
	Path    string // appended to the base URL, including any query string
	Body    io.Reader
	Headers map[string]string
	// ContentType overrides the default application/json for non-nil bodies.
	ContentType string
}

// Do executes the request with retries. On success the caller owns the
// response body. On HTTP failure the body is consumed and folded into
// the returned *Error.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	url := c.baseURL + req.Path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, req, url)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("rest: request canceled: %w", ctx.Err())
			}

			// Network errors are retryable when the body can be re-sent.
			if attempt < maxRetries && rewindBody(req) {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("method", req.Method),
					slog.String("path", req.Path),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("rest: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("rest: %s %s failed after %d attempt(s): %w", req.Method, req.Path, attempt+1, err)
		}

		// 2xx — success.
		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		apiErr := readError(resp)

		if isRetryable(resp.StatusCode) && attempt < maxRetries && rewindBody(req) {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("rest: request canceled: %w", err)
			}

			attempt++

			continue
		}

		if attempt > 0 {
			c.logger.Error("request failed after retries",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", attempt+1),
			)
		}

		return nil, apiErr
	}
}

// rewindBody prepares the request body for another attempt. Bodyless
// requests always qualify; seekable bodies are rewound to the start;
// anything else has been consumed and cannot be safely re-sent, so the
// request must not be retried.
func rewindBody(req Request) bool {
	if req.Body == nil {
		return true
	}

	s, ok := req.Body.(io.Seeker)
	if !ok {
		return false
	}

	_, err := s.Seek(0, io.SeekStart)

	return err == nil
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, req Request, url string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, req.Body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	tok, err := c.token.Token()
	if err != nil {
		return nil, fmt.Errorf("obtaining token: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+tok)
	httpReq.Header.Set("User-Agent", userAgent)

	// Correlation ID: Graph reads client-request-id, the storage and
	// management planes read x-ms-client-request-id.
	reqID := uuid.NewString()
	httpReq.Header.Set("client-request-id", reqID)
	httpReq.Header.Set("x-ms-client-request-id", reqID)

	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}

		httpReq.Header.Set("Content-Type", contentType)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	return c.httpClient.Do(httpReq)
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
