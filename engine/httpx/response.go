// Package httpx is the outbound request executor for the ingest engine.
// It layers five concerns over net/http: persistent response caching,
// exponential-backoff retry, adaptive inter-request delay, circuit
// breaking, and rate-limit awareness.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Response is the simple record returned by the client. Cached responses
// serialize this same record.
type Response struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers"`
	Body    []byte      `json:"body"`
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Text returns the body decoded as UTF-8.
func (r *Response) Text() string {
	return string(r.Body)
}

// ErrRateLimited marks an HTTP 429. The orchestrator uses it for macro
// decisions (sleep, checkpoint, graceful abort).
var ErrRateLimited = errors.New("rate limited")

// RateLimitError carries the server's Retry-After hint.
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.URL, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// StatusError is a non-2xx response other than 429.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.URL)
}

// Retryable reports whether the status is worth another attempt. 4xx other
// than 429 is not retried.
func (e *StatusError) Retryable() bool {
	return e.Status >= 500
}

// TransportError is a network-level failure after exhausting retries.
type TransportError struct {
	URL     string
	Wrapped error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.URL, e.Wrapped)
}

func (e *TransportError) Unwrap() error { return e.Wrapped }
