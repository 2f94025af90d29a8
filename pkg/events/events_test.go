package events

import (
	"context"
	"testing"
	"time"
)

func TestNilSinkIsSafe(t *testing.T) {
	var s *Sink
	// Must not panic; a nil sink is the disabled configuration.
	s.Publish(context.Background(), SubjectIngested, DocumentEvent{
		DocID:     "http://www.legislation.gov.uk/id/ukpga/2006/46",
		DocType:   "ukpga",
		Timestamp: time.Now().UTC(),
	})
}

func TestNewSinkNilConn(t *testing.T) {
	if NewSink(nil) != nil {
		t.Fatal("nil conn must yield a nil sink")
	}
}

func TestHeaderCarrier(t *testing.T) {
	var c headerCarrier
	if c.Get("traceparent") != "" {
		t.Fatal("empty carrier must read empty")
	}
	c.Set("traceparent", "00-abc-def-01")
	if c.Get("traceparent") != "00-abc-def-01" {
		t.Fatalf("Get = %q", c.Get("traceparent"))
	}
	if len(c.Keys()) != 1 {
		t.Fatalf("Keys = %v", c.Keys())
	}
}
