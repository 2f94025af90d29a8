package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/pkg/fn"
)

// DenseDims is the output dimensionality of the remote embedding model.
const DenseDims = 1024

// DenseOpts configures the remote embedding endpoint.
type DenseOpts struct {
	BaseURL    string
	Deployment string
	APIKey     string
	Timeout    time.Duration
	Retry      fn.RetryOpts
}

// DenseClient calls a hosted embedding deployment over HTTP. Rate-limit
// responses surface as httpx.RateLimitError so callers can apply the same
// macro policy they use for portal traffic.
type DenseClient struct {
	opts   DenseOpts
	client *http.Client
	retry  fn.RetryOpts
}

func NewDenseClient(opts DenseOpts) *DenseClient {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = fn.RetryOpts{
			MaxAttempts: 4,
			InitialWait: 2 * time.Second,
			MaxWait:     30 * time.Second,
			Jitter:      true,
			RetryIf:     denseRetryable,
		}
	}
	return &DenseClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		retry:  retry,
	}
}

type denseRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type denseResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order. Texts must be
// non-empty; callers handle empty input before reaching the wire.
func (c *DenseClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[][]float32] {
		return fn.FromPair(c.post(ctx, texts))
	})
	return result.Unwrap()
}

func (c *DenseClient) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(denseRequest{Input: texts, Model: c.opts.Deployment})
	if err != nil {
		return nil, err
	}
	url := c.opts.BaseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("api-key", c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &httpx.TransportError{URL: url, Wrapped: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &httpx.RateLimitError{URL: url, RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpx.StatusError{URL: url, Status: resp.StatusCode}
	}

	var parsed denseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		if len(d.Embedding) != DenseDims {
			return nil, fmt.Errorf("embeddings: got %d dims, want %d", len(d.Embedding), DenseDims)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func denseRetryable(err error) bool {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
