// Package refresh re-ingests documents whose content the change feeds
// say has moved on. Amendments are the manifest: a document is stale
// when an amendment affecting it is newer than the stored modified
// date, or when the parent was never ingested at all.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/enumerate"
	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
)

// defaultLookbackYears bounds how far back the amendment scan reaches.
const defaultLookbackYears = 2

// Scroller is the read side of the vector store the refresher needs.
type Scroller interface {
	Scroll(ctx context.Context, collection string, filter *pb.Filter, limit int) ([]vectorstore.Hit, error)
}

// Ingester re-ingests one document URL.
type Ingester interface {
	IngestURL(ctx context.Context, t domain.DocType, year int, u string) error
}

// Options configures a refresh pass.
type Options struct {
	LookbackYears int
	// Force refreshes every affected document regardless of staleness.
	Force bool
	// Limit caps refreshed documents per pass. 0 means all.
	Limit int
}

// Report summarizes one refresh pass.
type Report struct {
	AffectedDocuments int `json:"affected_documents"`
	Missing           int `json:"missing"`
	Stale             int `json:"stale"`
	Refreshed         int `json:"refreshed"`
	Failed            int `json:"failed"`
}

// Refresher drives amendment-led re-ingestion.
type Refresher struct {
	opts     Options
	store    Scroller
	ingester Ingester
	enum     *enumerate.Enumerator
	sink     *events.Sink
	log      *slog.Logger
	now      func() time.Time
}

func New(opts Options, store Scroller, ingester Ingester, enum *enumerate.Enumerator, sink *events.Sink, log *slog.Logger) *Refresher {
	if opts.LookbackYears <= 0 {
		opts.LookbackYears = defaultLookbackYears
	}
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		opts:     opts,
		store:    store,
		ingester: ingester,
		enum:     enum,
		sink:     sink,
		log:      log,
		now:      time.Now,
	}
}

// Run scans recent amendments, decides staleness per affected document
// and re-ingests the stale ones.
func (r *Refresher) Run(ctx context.Context) (Report, error) {
	var report Report

	since := r.now().Year() - r.opts.LookbackYears
	filter := vectorstore.And(
		vectorstore.Between("affecting_year", float64(since), float64(r.now().Year())),
	)
	hits, err := r.store.Scroll(ctx, pipeline.AmendmentsCollection, filter, 0)
	if err != nil {
		return report, fmt.Errorf("refresh: scan amendments: %w", err)
	}

	// Newest affecting year per changed document.
	newest := make(map[string]int)
	var order []string
	for _, h := range hits {
		id := vectorstore.PayloadString(h.Payload, "changed_document_id")
		if id == "" {
			continue
		}
		year := int(vectorstore.PayloadInt(h.Payload, "affecting_year"))
		if prev, ok := newest[id]; !ok {
			newest[id] = year
			order = append(order, id)
		} else if year > prev {
			newest[id] = year
		}
	}
	report.AffectedDocuments = len(order)

	for _, id := range order {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if r.opts.Limit > 0 && report.Refreshed >= r.opts.Limit {
			break
		}

		stale, missing, err := r.isStale(ctx, id, newest[id])
		if err != nil {
			r.log.Warn("staleness check failed", "id", id, "error", err)
			report.Failed++
			continue
		}
		if missing {
			report.Missing++
		}
		if !stale && !r.opts.Force {
			continue
		}
		report.Stale++

		if err := r.reingest(ctx, id); err != nil {
			r.log.Warn("refresh failed", "id", id, "error", err)
			report.Failed++
			continue
		}
		report.Refreshed++
		r.sink.Publish(ctx, events.SubjectRefreshed, events.DocumentEvent{
			DocID:     id,
			Timestamp: time.Now().UTC(),
		})
	}

	r.log.Info("refresh pass finished",
		"affected", report.AffectedDocuments, "stale", report.Stale,
		"refreshed", report.Refreshed, "missing", report.Missing, "failed", report.Failed)
	return report, nil
}

// isStale compares the stored document against the newest amendment
// year. A document that is not in the store at all is both missing and
// stale.
func (r *Refresher) isStale(ctx context.Context, id string, amendmentYear int) (stale, missing bool, err error) {
	hits, err := r.store.Scroll(ctx, pipeline.DocumentsCollection,
		vectorstore.And(vectorstore.Eq("id", id)), 1)
	if err != nil {
		return false, false, err
	}
	if len(hits) == 0 {
		return true, true, nil
	}
	modified := vectorstore.PayloadString(hits[0].Payload, "modified_date")
	if len(modified) < 4 {
		return true, false, nil
	}
	modYear, perr := strconv.Atoi(modified[:4])
	if perr != nil {
		return true, false, nil
	}
	return modYear < amendmentYear, false, nil
}

func (r *Refresher) reingest(ctx context.Context, id string) error {
	parts, ok := domain.SplitID(id)
	if !ok {
		return fmt.Errorf("refresh: malformed id %q", id)
	}
	u := r.enum.XMLURL(parts.Type, parts.Year, parts.Number)
	return r.ingester.IngestURL(ctx, parts.Type, parts.YearInt(), u)
}
