package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var ErrUnauthorized = errors.New("session token rejected")

// Client introspects session tokens against the accounts service.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	timeout  time.Duration
	retryMax int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		timeout:  5 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type introspectResponse struct {
	Active   bool   `json:"active"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Introspect resolves a session token. 401/403 map to ErrUnauthorized and
// are never retried; transient failures back off and retry.
func (c *Client) Introspect(ctx context.Context, token string) (Identity, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/auth/session")
	req.Header.Set("Authorization", "Bearer "+token)

	attempts := c.retryMax
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.deadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("accounts request failed: %w", err)
			if attempt == attempts {
				return Identity{}, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return Identity{}, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
			return Identity{}, ErrUnauthorized
		case status < 200 || status >= 300:
			lastErr = fmt.Errorf("accounts api error: status=%d", status)
			if attempt == attempts || !shouldRetryStatus(status) {
				return Identity{}, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return Identity{}, lastErr
			}
			continue
		}

		var out introspectResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return Identity{}, fmt.Errorf("decode introspect response: %w", err)
		}
		if !out.Active || strings.TrimSpace(out.UserID) == "" {
			return Identity{}, ErrUnauthorized
		}
		name := strings.TrimSpace(out.Username)
		if name == "" {
			name = out.UserID
		}
		return Identity{ID: out.UserID, Name: name}, nil
	}
	return Identity{}, lastErr
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}
