package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("test_total", "a counter")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("counter = %d", c.Value())
	}

	g := r.Gauge("test_gauge", "a gauge")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 9 {
		t.Fatalf("gauge = %d", g.Value())
	}

	// Same name returns the same instance.
	if r.Counter("test_total", "") != c {
		t.Fatal("counter not deduplicated")
	}
}

func TestLabeledSeriesShareTypeHeader(t *testing.T) {
	r := New()
	r.Counter(WithLabels("docs_total", "type", "ukpga"), "Docs by type").Inc()
	r.Counter(WithLabels("docs_total", "type", "uksi"), "").Add(2)

	out := r.Render()
	if strings.Count(out, "# TYPE docs_total counter") != 1 {
		t.Fatalf("TYPE header count wrong:\n%s", out)
	}
	if !strings.Contains(out, `docs_total{type="ukpga"} 1`) ||
		!strings.Contains(out, `docs_total{type="uksi"} 2`) {
		t.Fatalf("series missing:\n%s", out)
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("lat_seconds", "latency", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100)

	out := r.Render()
	for _, want := range []string{
		`lat_seconds_bucket{le="0.1"} 1`,
		`lat_seconds_bucket{le="1"} 2`,
		`lat_seconds_bucket{le="10"} 2`,
		`lat_seconds_bucket{le="+Inf"} 3`,
		`lat_seconds_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	r := New()
	r.Counter("ok_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "ok_total 1") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWithLabels(t *testing.T) {
	if got := WithLabels("m", "a", "1", "b", "2"); got != `m{a="1",b="2"}` {
		t.Fatalf("WithLabels = %q", got)
	}
	// Odd pairs fall back to the bare name.
	if got := WithLabels("m", "a"); got != "m" {
		t.Fatalf("odd pairs = %q", got)
	}
}
