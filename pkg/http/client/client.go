package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

type Response struct {
	StatusCode int
	Body       []byte
}

// APIError is returned for any non-2xx upstream status so callers can
// classify the failure by code.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

type Interface interface {
	Get(ctx context.Context, path string) (*Response, error)
	GetJSON(ctx context.Context, path string, v interface{}) error
}

type Client struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	maxElapsed time.Duration
	breaker    *gobreaker.CircuitBreaker
	GetFunc    func(ctx context.Context, path string) (*Response, error)
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Backoff is the base delay; attempt n sleeps Backoff * 2^n.
	Backoff time.Duration
	// MaxElapsed bounds the total wall-clock time spent retrying.
	// Zero means only the attempt count bounds retries.
	MaxElapsed time.Duration
	// Headers are sent with every request (e.g. an API token header).
	Headers map[string]string
	// DisableBreaker turns off the circuit breaker, mainly for tests
	// that exercise repeated failures.
	DisableBreaker bool
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	}

	if opts.Backoff == 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	c := &Client{
		baseURL: opts.BaseURL,
		headers: opts.Headers,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxElapsed: opts.MaxElapsed,
	}

	if !opts.DisableBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    opts.BaseURL,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 10
			},
		})
	}

	return c
}

// Get performs a GET with retry on transient failures. Timeouts, missing
// responses and 408/429/5xx statuses are retried with exponential
// backoff; any other non-2xx status fails immediately.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	if c.GetFunc != nil {
		return c.GetFunc(ctx, path)
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * (1 << (attempt - 1))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}

			if c.maxElapsed > 0 && time.Since(start) > c.maxElapsed {
				log.Debug().Str("path", path).Dur("elapsed", time.Since(start)).
					Msg("Retry budget exhausted")
				return nil, lastErr
			}

			log.Debug().Str("path", path).Int("attempt", attempt).Msg("Retrying request")
		}

		resp, err := c.doOnce(ctx, path)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// GetJSON performs a retried GET and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, path string) (*Response, error) {
	transact := func() (interface{}, error) {
		var fullURL string
		if c.baseURL == "" {
			fullURL = path
		} else {
			fullURL = c.baseURL + path
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}

		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func(body io.ReadCloser) {
			if closeErr := body.Close(); closeErr != nil {
				log.Debug().Err(closeErr).Msg("Closing response body")
			}
		}(resp.Body)

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
		}

		return &Response{StatusCode: resp.StatusCode, Body: body}, nil
	}

	var result interface{}
	var err error
	if c.breaker != nil {
		result, err = c.breaker.Execute(transact)
	} else {
		result, err = transact()
	}
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// isRetryable reports whether a failed attempt is worth repeating.
// A missing response (transport failure) is ambiguous but usually
// transient, so it is treated as retryable.
func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout:
			return true
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	return true
}
