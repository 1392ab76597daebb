package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// Client is the HTTP wrapper around the ordo REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a new API client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
	}
}

// WithRetries overrides the number of attempts and the initial back-off.
func (c *Client) WithRetries(attempts int, backoff time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	c.maxRetries = attempts
	c.backoff = backoff
	return c
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request and returns the body of a 2xx response.
// Retries on connection errors, HTTP 5xx and 429 with exponential back-off,
// as long as ctx allows.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	urlStr := c.baseURL + "/" + strings.TrimLeft(path, "/")
	appLog.Debug("api request", "method", http.MethodGet, "url", urlStr)

	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		body, retryAfter, err := c.do(req)
		if err == nil {
			appLog.Debug("api response", "url", urlStr, "bytes", len(body))
			return body, nil
		}
		lastErr = err

		if !retryable(err) || attempt == c.maxRetries {
			break
		}

		wait := time.Duration(1<<(attempt-1)) * c.backoff
		if retryAfter > 0 {
			wait = retryAfter
		}
		appLog.Debug("api attempt failed; retrying", "attempt", attempt, "wait", wait, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// do runs a single request and reads its body.
func (c *Client) do(req *http.Request) ([]byte, time.Duration, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return body, 0, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	// Context cancellation and deadline are final.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
