// Package search is the query surface over the ingested corpus:
// section-level and act-level hybrid search, direct lookups, and full
// text reconstruction. Results are cached briefly per normalized
// request.
package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	pb "github.com/qdrant/go-client/qdrant"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
)

const (
	cacheSize = 512
	cacheTTL  = 5 * time.Minute

	// actCandidatePool is how many section hits feed act grouping.
	actCandidatePool = 200
	// sectionsPerAct caps matched sections attached to one act.
	sectionsPerAct = 10
)

// Querier is the vector store surface the search service needs.
type Querier interface {
	HybridQuery(ctx context.Context, req vectorstore.HybridRequest) ([]vectorstore.Hit, error)
	Scroll(ctx context.Context, collection string, filter *pb.Filter, limit int) ([]vectorstore.Hit, error)
}

// Encoder embeds query strings.
type Encoder interface {
	EncodeQuery(ctx context.Context, query string) (embed.Vector, error)
}

// Filters narrows a search. A LegislationID pins the search to one act
// and overrides every other filter.
type Filters struct {
	LegislationID string   `json:"legislation_id,omitempty"`
	Types         []string `json:"types,omitempty"`
	Category      string   `json:"category,omitempty"`
	YearFrom      int      `json:"year_from,omitempty"`
	YearTo        int      `json:"year_to,omitempty"`
}

// Compile builds the wire filter. The identifier pin wins outright so a
// caller asking about one act never leaks results from another.
func (f Filters) Compile() *pb.Filter {
	if f.LegislationID != "" {
		return vectorstore.And(
			vectorstore.Eq("legislation_id", domain.NormalizeID(f.LegislationID)),
		)
	}
	var conds []vectorstore.Condition
	if len(f.Types) > 0 {
		conds = append(conds, vectorstore.In("type", f.Types...))
	}
	if f.Category != "" {
		conds = append(conds, vectorstore.Eq("category", f.Category))
	}
	if f.YearFrom > 0 || f.YearTo > 0 {
		from, to := float64(f.YearFrom), float64(f.YearTo)
		if f.YearFrom <= 0 {
			from = 1
		}
		if f.YearTo <= 0 {
			to = float64(time.Now().Year())
		}
		conds = append(conds, vectorstore.Between("year", from, to))
	}
	return vectorstore.And(conds...)
}

// documentFilter is the filter variant for the documents collection,
// where the pin matches the id field instead of legislation_id.
func (f Filters) documentFilter() *pb.Filter {
	if f.LegislationID != "" {
		return vectorstore.And(vectorstore.Eq("id", domain.NormalizeID(f.LegislationID)))
	}
	return f.Compile()
}

// Service answers queries. Construct with New.
type Service struct {
	store Querier
	enc   Encoder
	cache *expirable.LRU[string, any]
	sink  *events.Sink
	log   *slog.Logger
}

func New(store Querier, enc Encoder, sink *events.Sink, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: store,
		enc:   enc,
		cache: expirable.NewLRU[string, any](cacheSize, nil, cacheTTL),
		sink:  sink,
		log:   log,
	}
}

// cacheKey renders a request into a stable string.
func cacheKey(kind string, req any) string {
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	return kind + ":" + string(data)
}

func (s *Service) publishQuery(ctx context.Context, kind, query string, results int, start time.Time, cacheHit bool) {
	s.sink.Publish(ctx, events.SubjectSearchQuery, events.QueryEvent{
		Kind:      kind,
		QueryLen:  len(query),
		Results:   results,
		Duration:  time.Since(start),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	})
}

// maxNormalize rescales scores onto [0,1] by the best score. Uniform or
// empty score sets pass through untouched.
func maxNormalize(hits []vectorstore.Hit) {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return
	}
	for i := range hits {
		hits[i].Score /= max
	}
}

// normalizeQuery trims and collapses interior whitespace so equivalent
// queries share a cache entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
