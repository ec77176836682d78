package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resilience: upstream returned %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client issues GET requests with per-attempt timeouts, exponential backoff and a
// circuit breaker. Network errors, 5xx and 429 are retried; other statuses are not.
type Client struct {
	HTTP        *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	// MaxBody caps the decoded response size; 1 MiB when zero.
	MaxBody int64
}

// GetJSON fetches url and decodes the JSON body into dst.
func (c Client) GetJSON(ctx context.Context, url string, dst any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.Breaker != nil {
			if err := c.Breaker.Allow(ctx); err != nil {
				return err
			}
		}
		err := c.getOnce(ctx, httpClient, url, dst)
		var status *StatusError
		retryable := err != nil && (!errors.As(err, &status) || status.retryable())
		if c.Breaker != nil {
			c.Breaker.Report(ctx, !retryable)
		}
		if !retryable {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(Backoff(c.BaseBackoff, attempt, c.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c Client) getOnce(ctx context.Context, httpClient *http.Client, url string, dst any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	limit := c.MaxBody
	if limit <= 0 {
		limit = 1 << 20
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, limit)).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
