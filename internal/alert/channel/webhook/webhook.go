// Package webhook implements the HTTP webhook alert channel: a JSON POST
// to an operator-configured URL with retry logic (3 attempts, exponential
// backoff), mirroring the Python channel's httpx + tenacity combination
// with net/http and cenkalti/backoff.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voxsentinel/voxsentinel/internal/model"
)

const (
	defaultMaxAttempts = 3
	defaultTimeout     = 5 * time.Second
)

// Channel delivers alerts as an HTTP POST with a JSON body.
type Channel struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	enabled     bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithHTTPClient overrides the default http.Client (5s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Channel) { ch.httpClient = c }
}

// WithMaxAttempts overrides the default 3-attempt retry budget.
func WithMaxAttempts(n int) Option {
	return func(ch *Channel) { ch.maxAttempts = n }
}

// New returns a webhook Channel posting to url.
func New(url string, opts ...Option) *Channel {
	ch := &Channel{
		url:         url,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		enabled:     true,
	}
	for _, o := range opts {
		o(ch)
	}
	return ch
}

// Name implements channel.Channel.
func (c *Channel) Name() string { return "webhook" }

// Enabled implements channel.Channel.
func (c *Channel) Enabled() bool { return c.enabled }

// SetEnabled toggles delivery.
func (c *Channel) SetEnabled(enabled bool) { c.enabled = enabled }

// Send POSTs alert as JSON to the configured URL, retrying up to
// maxAttempts times with exponential backoff on transport errors or a
// non-2xx response.
func (c *Channel) Send(ctx context.Context, alert model.Alert) (bool, error) {
	body, err := json.Marshal(alert)
	if err != nil {
		return false, fmt.Errorf("webhook channel: marshal alert: %w", err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("webhook channel: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("webhook channel: unexpected status %d", resp.StatusCode)
			return lastErr
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return false, fmt.Errorf("webhook channel: %w", lastErr)
	}
	return true, nil
}
