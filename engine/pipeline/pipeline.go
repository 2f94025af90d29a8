// Package pipeline orchestrates corpus ingestion: enumerate, fetch,
// parse (with OCR fallback), validate, embed and upsert, with durable
// checkpoints and a hard budget on consecutive rate limits.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openlex/lexuk/engine/checkpoint"
	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/enumerate"
	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/engine/lineage"
	"github.com/openlex/lexuk/engine/pdffall"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
	"github.com/openlex/lexuk/pkg/metrics"
	"github.com/openlex/lexuk/pkg/resilience"
)

// Collection names used across ingest and search.
const (
	SectionsCollection   = "legislation_sections"
	DocumentsCollection  = "legislation_documents"
	AmendmentsCollection = "amendments"
	NotesCollection      = "explanatory_notes"
)

// Status is the run outcome.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusRateLimited Status = "rate_limited"
	StatusFailed      Status = "failed"
)

// errRateLimitBudget aborts the run after too many consecutive 429s.
// It is a graceful stop, not a failure.
var errRateLimitBudget = errors.New("rate limit budget exhausted")

// Embedder is the subset of the embedding service the pipeline uses.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]embed.Vector, error)
}

// Store is the subset of the vector store the pipeline uses.
type Store interface {
	EnsureCollection(ctx context.Context, name string, denseDims int) error
	Upsert(ctx context.Context, collection string, records []vectorstore.Record) error
}

// Options configures one ingest run.
type Options struct {
	Types   []domain.DocType
	MinYear int
	MaxYear int
	// LimitPerCombination caps items per (type, year). 0 means all.
	LimitPerCombination int
	// BatchSize is how many documents accumulate before embed+upsert.
	BatchSize int
	// RateLimitBudget is how many consecutive rate-limit errors stop
	// the run gracefully.
	RateLimitBudget int
	// Amendments and Notes toggle the sibling feeds.
	Amendments bool
	Notes      bool
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.RateLimitBudget <= 0 {
		o.RateLimitBudget = 50
	}
	if o.MinYear == 0 {
		o.MinYear = 1800
	}
	if o.MaxYear == 0 {
		o.MaxYear = time.Now().Year()
	}
	if len(o.Types) == 0 {
		o.Types = domain.AllTypes()
	}
}

// Pipeline wires the ingest components together.
type Pipeline struct {
	opts     Options
	client   *httpx.Client
	enum     *enumerate.Enumerator
	embedder Embedder
	store    Store
	graph    *lineage.Graph
	ocr      *pdffall.Extractor
	ckpt     *checkpoint.Store
	sink     *events.Sink
	log      *slog.Logger

	limiter *rateLimitTracker

	docsIngested *metrics.Counter
	docsFailed   *metrics.Counter
	sectionsUp   *metrics.Counter
	rateLimits   *metrics.Counter
	ocrFallbacks *metrics.Counter
}

// Deps are the injectable collaborators. Graph, OCR and Sink may be nil.
type Deps struct {
	Client   *httpx.Client
	Enum     *enumerate.Enumerator
	Embedder Embedder
	Store    Store
	Graph    *lineage.Graph
	OCR      *pdffall.Extractor
	Ckpt     *checkpoint.Store
	Sink     *events.Sink
	Log      *slog.Logger
	Registry *metrics.Registry
}

func New(opts Options, deps Deps) *Pipeline {
	opts.defaults()
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = metrics.New()
	}
	return &Pipeline{
		opts:     opts,
		client:   deps.Client,
		enum:     deps.Enum,
		embedder: deps.Embedder,
		store:    deps.Store,
		graph:    deps.Graph,
		ocr:      deps.OCR,
		ckpt:     deps.Ckpt,
		sink:     deps.Sink,
		log:      deps.Log,
		limiter:  &rateLimitTracker{budget: opts.RateLimitBudget},

		docsIngested: deps.Registry.Counter("lexuk_documents_ingested_total", "Documents upserted"),
		docsFailed:   deps.Registry.Counter("lexuk_documents_failed_total", "Documents that failed ingest"),
		sectionsUp:   deps.Registry.Counter("lexuk_sections_upserted_total", "Section points upserted"),
		rateLimits:   deps.Registry.Counter("lexuk_rate_limits_total", "Rate-limit responses observed"),
		ocrFallbacks: deps.Registry.Counter("lexuk_ocr_fallbacks_total", "Documents recovered via OCR"),
	}
}

// Run executes the ingest. The legislation walk and the amendments feed
// run as siblings; either aborting on the rate-limit budget cancels the
// other. A budget stop is a clean outcome so schedulers do not retry
// into a closed door.
func (p *Pipeline) Run(ctx context.Context) (Status, error) {
	for _, c := range []struct {
		name string
		dims int
	}{
		{SectionsCollection, embed.DenseDims},
		{DocumentsCollection, embed.DenseDims},
		{AmendmentsCollection, embed.DenseDims},
		{NotesCollection, embed.DenseDims},
	} {
		if err := p.store.EnsureCollection(ctx, c.name, c.dims); err != nil {
			return StatusFailed, err
		}
	}

	p.publishRun(ctx, "started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runLegislation(gctx) })
	if p.opts.Amendments {
		g.Go(func() error { return p.runAmendments(gctx) })
	}

	err := g.Wait()
	if ferr := p.ckpt.Flush(); ferr != nil {
		p.log.Error("checkpoint flush failed", "error", ferr)
	}

	switch {
	case errors.Is(err, errRateLimitBudget):
		p.ckpt.SetMetadata("status", string(StatusRateLimited))
		_ = p.ckpt.Flush()
		p.publishRun(ctx, string(StatusRateLimited))
		p.log.Warn("run stopped on rate-limit budget",
			"budget", p.opts.RateLimitBudget, "stats", p.ckpt.Stats())
		return StatusRateLimited, nil
	case err != nil:
		p.publishRun(ctx, string(StatusFailed))
		return StatusFailed, err
	}

	p.ckpt.SetMetadata("status", string(StatusCompleted))
	_ = p.ckpt.Flush()
	p.publishRun(ctx, string(StatusCompleted))
	return StatusCompleted, nil
}

func (p *Pipeline) runLegislation(ctx context.Context) error {
	for _, t := range p.opts.Types {
		for year := p.opts.MinYear; year <= p.opts.MaxYear; year++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if enumerate.Skip(t, year) {
				continue
			}
			combo := checkpoint.CombinationKey(string(t), year)
			if p.ckpt.IsCombinationComplete(combo) {
				continue
			}

			urls, err := p.enum.URLs(ctx, t, year, p.opts.LimitPerCombination)
			if err != nil {
				if stop, aerr := p.observe(err); stop {
					return aerr
				}
				p.log.Warn("enumeration failed", "type", t, "year", year, "error", err)
				continue
			}

			// Resume inside the combination where the last run left off.
			// The position only advances past URLs whose outcome is
			// already durable, so a crash mid-batch loses nothing.
			start := positionIndex(p.ckpt.GetPosition(combo))
			if start > len(urls) {
				start = 0
			}

			batch := newBatch(p.opts.BatchSize)
			complete := true
			// settled tracks the contiguous prefix of URLs whose outcome
			// is durable (processed mark or failure mark). Enqueued items
			// settle at flush; rate-limited items never settle this run.
			settled := true
			rateLimited := false
			for i := start; i < len(urls); i++ {
				u := urls[i]
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if p.ckpt.IsProcessed(u) {
					if settled {
						p.ckpt.SavePosition(combo, i+1)
					}
					continue
				}
				stop, err := p.processItem(ctx, t, year, u, batch)
				if stop {
					return err
				}
				switch {
				case err == nil:
					settled = false
				case errors.Is(err, httpx.ErrRateLimited):
					complete = false
					settled = false
					rateLimited = true
				default:
					complete = false
					if settled {
						p.ckpt.SavePosition(combo, i+1)
					}
				}
			}
			if err := p.flushBatch(ctx, batch); err != nil {
				if stop, aerr := p.observe(err); stop {
					return aerr
				}
				p.log.Error("batch flush failed", "type", t, "year", year, "error", err)
				complete = false
			} else if !rateLimited {
				p.ckpt.SavePosition(combo, len(urls))
			}
			if complete {
				p.ckpt.MarkCombinationComplete(combo)
			}
		}
	}
	return nil
}

// positionIndex decodes a saved resume position. Positions round-trip
// through JSON, which hands integers back as float64.
func positionIndex(v any) int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case float64:
		n = int(t)
	}
	if n < 0 {
		return 0
	}
	return n
}

// observe routes an error through the rate-limit budget. It returns
// (true, abort error) when the budget is spent.
func (p *Pipeline) observe(err error) (bool, error) {
	if err == nil {
		p.limiter.success()
		return false, nil
	}
	// An open circuit is downstream of rate limiting, so it extends the
	// streak rather than resetting it.
	if !errors.Is(err, httpx.ErrRateLimited) && !errors.Is(err, resilience.ErrCircuitOpen) {
		p.limiter.success()
		return false, nil
	}
	if errors.Is(err, httpx.ErrRateLimited) {
		p.rateLimits.Inc()
	}
	if p.limiter.failure() {
		return true, fmt.Errorf("%w after %d consecutive hits", errRateLimitBudget, p.opts.RateLimitBudget)
	}
	return false, nil
}

func (p *Pipeline) publishRun(ctx context.Context, status string) {
	stats := p.ckpt.Stats()
	p.sink.Publish(ctx, events.SubjectRunStatus, events.RunEvent{
		Run:       "ingest",
		Status:    status,
		Processed: stats.Processed,
		Failed:    stats.Failed,
		Timestamp: time.Now().UTC(),
	})
}

// rateLimitTracker counts consecutive rate-limit errors. Any success
// resets the streak.
type rateLimitTracker struct {
	mu          sync.Mutex
	budget      int
	consecutive int
}

func (t *rateLimitTracker) failure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	return t.consecutive >= t.budget
}

func (t *rateLimitTracker) success() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive = 0
}
