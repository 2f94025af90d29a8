// Package events publishes structured pipeline events to NATS subjects.
// The sink is optional: a nil *Sink is a no-op, so components can emit
// events unconditionally. No business decisions depend on these records.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// Subjects for pipeline events.
const (
	SubjectIngested    = "lexuk.ingest.document"
	SubjectFailed      = "lexuk.ingest.failed"
	SubjectRunStatus   = "lexuk.ingest.run"
	SubjectRefreshed   = "lexuk.refresh.document"
	SubjectSearchQuery = "lexuk.search.query"
)

// DocumentEvent records a single document passing through the pipeline.
type DocumentEvent struct {
	DocID     string    `json:"doc_id"`
	DocType   string    `json:"doc_type"`
	Year      int       `json:"year,omitempty"`
	Sections  int       `json:"sections,omitempty"`
	Source    string    `json:"source,omitempty"` // xml or ocr
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunEvent records pipeline run transitions (started, completed, rate_limited).
type RunEvent struct {
	Run       string    `json:"run"`
	Status    string    `json:"status"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryEvent records a search query execution.
type QueryEvent struct {
	Kind       string        `json:"kind"` // sections or acts
	QueryLen   int           `json:"query_len"`
	Results    int           `json:"results"`
	Duration   time.Duration `json:"duration"`
	CacheHit   bool          `json:"cache_hit"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Sink publishes JSON events to NATS with OTel trace propagation.
type Sink struct {
	nc *nats.Conn
}

// NewSink wraps an established NATS connection. nil conn yields a nil Sink.
func NewSink(nc *nats.Conn) *Sink {
	if nc == nil {
		return nil
	}
	return &Sink{nc: nc}
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes it. Publish failures are
// swallowed: event delivery is best-effort by contract.
func (s *Sink) Publish(ctx context.Context, subject string, v any) {
	if s == nil || s.nc == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	_ = s.nc.PublishMsg(msg)
}
