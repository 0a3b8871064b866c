// Package transport sends outbound HTTP requests with a bounded number of
// immediate retries.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lotas/notebridge/internal/apperr"
	"github.com/lotas/notebridge/internal/applog"
)

// Request is an outbound HTTP call. The body is kept as bytes so the
// identical request can be resubmitted on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a successful (2xx) reply with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Policy bounds the retry loop. Backoff returns the delay before retry n
// (1-based); nil means retry immediately.
type Policy struct {
	MaxRetries int
	Backoff    func(retry int) time.Duration
}

// DefaultPolicy is 3 retries (4 attempts) with no delay.
var DefaultPolicy = Policy{MaxRetries: 3}

// Doer is the subset of *http.Client the retry loop needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client retries failed requests according to its Policy.
type Client struct {
	HTTP   Doer
	Policy Policy
}

// New returns a Client with a 30s per-attempt timeout and DefaultPolicy.
func New() *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: 30 * time.Second},
		Policy: DefaultPolicy,
	}
}

// Send performs req, retrying on transport errors and non-2xx statuses.
// When all attempts fail it returns a SendFailed error wrapping the last
// failure.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	attempts := c.Policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && c.Policy.Backoff != nil {
			if err := sleep(ctx, c.Policy.Backoff(attempt-1)); err != nil {
				lastErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		applog.Warn("transport.attempt", "url", req.URL, "attempt", attempt, "of", attempts, "err", err.Error())
	}

	applog.Error("transport.failed", lastErr, "url", req.URL)
	return nil, apperr.Wrap(apperr.SendFailed, lastErr, "send failed")
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
