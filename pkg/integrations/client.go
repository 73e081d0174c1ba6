package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/npmlens/pkg/buildinfo"
	"github.com/matzehuels/npmlens/pkg/httputil"
	"github.com/matzehuels/npmlens/pkg/observability"
)

// Client provides shared HTTP functionality for all upstream API clients.
// It handles retry logic, per-host circuit breaking, and common request headers.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
	breakers *httputil.Breakers
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithBreakers routes every request through b. Clients for optional sources
// share one set so a dead host fails fast.
func WithBreakers(b *httputil.Breakers) Option {
	return func(c *Client) { c.breakers = b }
}

// NewClient creates a Client with the given default headers.
// Headers are applied to all requests made through this client.
// Pass nil for headers if no default headers are needed.
func NewClient(headers map[string]string, opts ...Option) *Client {
	c := &Client{
		http:     NewHTTPClient(),
		headers:  headers,
		attempts: defaultAttempts,
		delay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBreakers returns a breaker set that ignores [ErrNotFound], so only
// failures of the upstream itself count toward tripping.
func NewBreakers() *httputil.Breakers {
	b := httputil.NewBreakers(httputil.DefaultTripThreshold, 30*time.Second)
	b.IsFailure = func(err error) bool { return !errors.Is(err, ErrNotFound) }
	return b
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// It uses the client's default headers and handles retries automatically.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	call := func() error {
		return httputil.Retry(ctx, c.attempts, c.delay, func() error {
			return c.getOnce(ctx, rawURL, headers, v)
		})
	}
	var err error
	if c.breakers != nil {
		err = c.breakers.Do(rawURL, call)
	} else {
		err = call()
	}

	// Callers match on the sentinel errors, not on the retry wrapper.
	var re *httputil.RetryableError
	if errors.As(err, &re) {
		return re.Err
	}
	if errors.Is(err, httputil.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", ErrUpstreamDown, err)
	}
	return err
}

func (c *Client) getOnce(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	body, err := c.doRequest(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return &httputil.RetryableError{Err: fmt.Errorf("%w: reading body: %v", ErrNetwork, err)}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	host, path := hostPath(req.URL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrRateLimited, code)}
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrUpstreamDown, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

func hostPath(u *url.URL) (string, string) {
	return u.Host, u.EscapedPath()
}
