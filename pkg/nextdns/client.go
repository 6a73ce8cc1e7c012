// Package nextdns is a rate-limit aware client for the NextDNS profile API.
package nextdns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL     = "https://api.nextdns.io"
	defaultHTTPTimeout = 30 * time.Second
)

// SessionSource supplies the cookies of a logged-in browser session.
type SessionSource interface {
	SessionCookies(ctx context.Context) ([]*http.Cookie, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Profile    string
	APIKey     string
	Origin     string
	Timeout    time.Duration
	Policy     Policy
	HTTPClient *http.Client
	Session    SessionSource
	Logger     *slog.Logger
	// Sleep waits between rate limited attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a fraction in [0, 1). Defaults to math/rand.
	Jitter func() float64
}

// Client issues requests against one profile.
type Client struct {
	baseURL string
	profile string
	apiKey  string
	origin  string
	policy  Policy
	http    *http.Client
	session SessionSource
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	jitter  func() float64
}

// New creates a Client from opts, filling in defaults.
func New(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		profile: opts.Profile,
		apiKey:  opts.APIKey,
		origin:  opts.Origin,
		policy:  opts.Policy.withDefaults(),
		http:    opts.HTTPClient,
		session: opts.Session,
		log:     opts.Logger,
		sleep:   opts.Sleep,
		jitter:  opts.Jitter,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.sleep == nil {
		c.sleep = Sleep
	}
	if c.jitter == nil {
		c.jitter = rand.Float64
	}
	return c
}

// WithProfile returns a copy of the client bound to another profile.
func (c *Client) WithProfile(profile string) *Client {
	cp := *c
	cp.profile = profile
	return &cp
}

// Profile returns the bound profile id.
func (c *Client) Profile() string {
	return c.profile
}

// Request sends method to <base>/profiles/<profile>/<path> and returns the raw reply body
// of a 2xx response. Rate limited replies are retried with exponential backoff; a 426 and
// any other non-2xx status fail immediately.
func (c *Client) Request(ctx context.Context, method, path string, body any) (string, error) {
	if c.profile == "" {
		return "", fmt.Errorf("%s %s: no profile selected", method, path)
	}
	payload, err := encodeBody(body)
	if err != nil {
		return "", fmt.Errorf("%s %s: encode body: %w", method, path, err)
	}

	for attempt := 0; ; attempt++ {
		status, text, err := c.do(ctx, method, path, payload)
		if err != nil {
			return "", &NetworkError{Method: method, Path: path, Err: err}
		}

		switch {
		case status == http.StatusUpgradeRequired:
			c.log.Warn("api requires upgrade", "method", method, "path", path)
			return "", fmt.Errorf("%s %s: %w", method, path, ErrUpgradeRequired)
		case status == http.StatusTooManyRequests:
			if attempt >= c.policy.MaxAttempts {
				return "", fmt.Errorf("%s %s after %d retries: %w", method, path, attempt, ErrRateLimitExhausted)
			}
			delay := c.policy.Delay(attempt, c.jitter())
			c.log.Warn("rate limited, backing off", "method", method, "path", path, "retry", attempt+1, "wait", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return "", &NetworkError{Method: method, Path: path, Err: err}
			}
		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			return text, nil
		default:
			c.log.Debug("api error", "method", method, "path", path, "status", status, "body", text)
			return "", &RemoteError{Method: method, Path: path, Status: status, Body: text}
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Expires", "0")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}
	if err := c.applyCredentials(ctx, req); err != nil {
		return 0, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("failed to close api response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, string(data), nil
}

func (c *Client) applyCredentials(ctx context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	if c.session == nil {
		return nil
	}
	cookies, err := c.session.SessionCookies(ctx)
	if err != nil {
		return fmt.Errorf("session cookies: %w", err)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/profiles/" + c.profile + "/" + strings.TrimPrefix(path, "/")
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
