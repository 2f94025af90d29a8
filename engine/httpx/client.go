package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/openlex/lexuk/pkg/fn"
	"github.com/openlex/lexuk/pkg/resilience"
)

// Options configures the client. Zero values get documented defaults.
type Options struct {
	CacheDir string
	CacheTTL time.Duration // default 8h

	Timeout     time.Duration // per-request, default 30s
	MaxAttempts int           // default 4
	InitialWait time.Duration // default 1s
	MaxWait     time.Duration // default 30s

	// RequestsPerSecond is the base politeness limit toward the portal.
	RequestsPerSecond float64 // default 5
	Burst             int     // default 5

	Breaker  resilience.BreakerOpts
	Adaptive resilience.AdaptiveOpts

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client executes outbound requests with caching, retry, adaptive delay,
// circuit breaking, and rate-limit awareness. Safe for concurrent use.
type Client struct {
	http     *http.Client
	cache    *Cache
	limiter  *rate.Limiter
	adaptive *resilience.AdaptiveLimiter
	breaker  *resilience.Breaker
	retry    fn.RetryOpts
	log      *slog.Logger
}

// New creates a Client. CacheDir is required; everything else defaults.
func New(opts Options) (*Client, error) {
	cache, err := NewCache(opts.CacheDir, opts.CacheTTL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 4
	}
	if opts.InitialWait <= 0 {
		opts.InitialWait = time.Second
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	breakerOpts := opts.Breaker
	breakerOpts.IsFailure = func(err error) bool {
		return errors.Is(err, ErrRateLimited)
	}
	return &Client{
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   opts.Timeout,
		},
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		adaptive: resilience.NewAdaptiveLimiter(opts.Adaptive),
		breaker:  resilience.NewBreaker(breakerOpts),
		retry: fn.RetryOpts{
			MaxAttempts: opts.MaxAttempts,
			InitialWait: opts.InitialWait,
			MaxWait:     opts.MaxWait,
			Jitter:      true,
			RetryIf:     retryable,
		},
		log: opts.Logger,
	}, nil
}

// retryable decides which errors are worth another attempt. 4xx other than
// 429 and an open circuit are final.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true // rate limits and transport errors
}

// Get executes a cached GET.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers http.Header) (*Response, error) {
	key := CacheKey(http.MethodGet, rawURL, params)
	if resp, ok := c.cache.Get(key); ok {
		return resp, nil
	}
	resp, err := c.do(ctx, http.MethodGet, rawURL, params, headers, nil)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, resp)
	return resp, nil
}

// Invalidate drops the cached GET response for a URL so the next Get
// hits the origin. Refresh passes use this to see content newer than
// the cache TTL.
func (c *Client) Invalidate(rawURL string, params url.Values) {
	c.cache.Delete(CacheKey(http.MethodGet, rawURL, params))
}

// Head executes a HEAD request (uncached).
func (c *Client) Head(ctx context.Context, rawURL string, params url.Values, headers http.Header) (*Response, error) {
	return c.do(ctx, http.MethodHead, rawURL, params, headers, nil)
}

// Post executes a POST and clears the response cache.
func (c *Client) Post(ctx context.Context, rawURL string, params url.Values, headers http.Header, body []byte) (*Response, error) {
	return c.mutate(ctx, http.MethodPost, rawURL, params, headers, body)
}

// Put executes a PUT and clears the response cache.
func (c *Client) Put(ctx context.Context, rawURL string, params url.Values, headers http.Header, body []byte) (*Response, error) {
	return c.mutate(ctx, http.MethodPut, rawURL, params, headers, body)
}

// Delete executes a DELETE and clears the response cache.
func (c *Client) Delete(ctx context.Context, rawURL string, params url.Values, headers http.Header) (*Response, error) {
	return c.mutate(ctx, http.MethodDelete, rawURL, params, headers, nil)
}

func (c *Client) mutate(ctx context.Context, method, rawURL string, params url.Values, headers http.Header, body []byte) (*Response, error) {
	resp, err := c.do(ctx, method, rawURL, params, headers, body)
	if err == nil {
		c.cache.Clear()
	}
	return resp, err
}

// ClearCache drops the on-disk response cache.
func (c *Client) ClearCache() { c.cache.Clear() }

// Delay exposes the current adaptive delay (for pipeline status logs).
func (c *Client) Delay() time.Duration { return c.adaptive.Delay() }

func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, headers http.Header, body []byte) (*Response, error) {
	attempt := func(ctx context.Context) fn.Result[*Response] {
		var resp *Response
		err := c.breaker.Call(ctx, func(ctx context.Context) error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := c.adaptive.Wait(ctx); err != nil {
				return err
			}
			var execErr error
			resp, execErr = c.execute(ctx, method, rawURL, params, headers, body)
			return execErr
		})
		return fn.FromPair(resp, err)
	}

	result := fn.Retry(ctx, c.retry, attempt)
	resp, err := result.Unwrap()
	if err == nil {
		return resp, nil
	}
	var se *StatusError
	var rle *RateLimitError
	if errors.As(err, &se) || errors.As(err, &rle) || errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return nil, err
	}
	return nil, &TransportError{URL: rawURL, Wrapped: err}
}

// execute performs one request and classifies the outcome.
func (c *Client) execute(ctx context.Context, method, rawURL string, params url.Values, headers http.Header, body []byte) (*Response, error) {
	u := rawURL
	if len(params) > 0 {
		sep := "?"
		if bytes.ContainsRune([]byte(rawURL), '?') {
			sep = "&"
		}
		u = rawURL + sep + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		after := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		c.adaptive.ObserveRateLimit(after)
		c.log.Warn("rate limited", "url", rawURL, "retry_after", after, "delay", c.adaptive.Delay())
		return nil, &RateLimitError{URL: rawURL, RetryAfter: after}
	case httpResp.StatusCode >= 400:
		return nil, &StatusError{URL: rawURL, Status: httpResp.StatusCode}
	}

	c.adaptive.ObserveSuccess()
	return &Response{
		Status:  httpResp.StatusCode,
		Headers: httpResp.Header,
		Body:    data,
	}, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
