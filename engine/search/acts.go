package search

import (
	"context"
	"fmt"
	"time"

	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/fn"
)

// ActsRequest is one act-level search.
type ActsRequest struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// SectionRef is a matched provision attached to an act result.
type SectionRef struct {
	Number        string  `json:"number,omitempty"`
	ProvisionType string  `json:"provision_type"`
	Score         float64 `json:"score"`
}

// ActResult is one ranked act with its matching provisions.
type ActResult struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Type     string       `json:"type,omitempty"`
	Year     int64        `json:"year,omitempty"`
	Number   string       `json:"number,omitempty"`
	Category string       `json:"category,omitempty"`
	Status   string       `json:"status,omitempty"`
	Score    float64      `json:"score"`
	Sections []SectionRef `json:"sections"`
}

// ActsResponse is the act-search page plus its pagination envelope.
// Total counts every grouped act, not just the returned page.
type ActsResponse struct {
	Results []ActResult `json:"results"`
	Total   int         `json:"total"`
	Offset  int         `json:"offset"`
	Limit   int         `json:"limit"`
}

// SearchActs searches provisions, groups hits by parent act and ranks
// acts by their best provision. Parents are fetched in one batch scroll
// rather than per act.
func (s *Service) SearchActs(ctx context.Context, req ActsRequest) (*ActsResponse, error) {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = 10
	}
	req.Query = normalizeQuery(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	key := cacheKey("acts", req)
	if key != "" {
		if cached, ok := s.cache.Get(key); ok {
			resp := cached.(*ActsResponse)
			s.publishQuery(ctx, "acts", req.Query, len(resp.Results), start, true)
			return resp, nil
		}
	}

	vector, err := s.enc.EncodeQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.HybridQuery(ctx, vectorstore.HybridRequest{
		Collection: pipeline.SectionsCollection,
		Vector:     vector,
		Filter:     req.Filters.Compile(),
		Limit:      actCandidatePool,
	})
	if err != nil {
		return nil, err
	}
	maxNormalize(hits)

	// Hits arrive score-descending, so first-seen grouping order is the
	// act ranking. An orphan hit without a parent id must not consume a
	// pagination slot.
	grouped, actIDs := fn.GroupBy(hits, func(h vectorstore.Hit) string {
		return vectorstore.PayloadString(h.Payload, "legislation_id")
	})
	delete(grouped, "")
	actIDs = fn.Filter(actIDs, func(id string) bool { return id != "" })

	resp := &ActsResponse{Total: len(actIDs), Offset: req.Offset, Limit: req.Limit}

	// Paginate act ids before touching the documents collection.
	if req.Offset >= len(actIDs) {
		s.publishQuery(ctx, "acts", req.Query, 0, start, false)
		return resp, nil
	}
	actIDs = actIDs[req.Offset:]
	if len(actIDs) > req.Limit {
		actIDs = actIDs[:req.Limit]
	}

	parents, err := s.fetchParents(ctx, actIDs, req.Filters)
	if err != nil {
		return nil, err
	}

	var results []ActResult
	for _, id := range actIDs {
		parent, ok := parents[id]
		if !ok {
			// Sections can outlive their parent record mid-reingest.
			s.log.Warn("parent document missing", "legislation_id", id)
			continue
		}
		sections := grouped[id]
		if len(sections) > sectionsPerAct {
			sections = sections[:sectionsPerAct]
		}
		refs := make([]SectionRef, len(sections))
		for i, h := range sections {
			refs[i] = SectionRef{
				Number:        vectorstore.PayloadString(h.Payload, "number"),
				ProvisionType: vectorstore.PayloadString(h.Payload, "provision_type"),
				Score:         h.Score,
			}
		}
		results = append(results, ActResult{
			ID:       id,
			Title:    vectorstore.PayloadString(parent.Payload, "title"),
			Type:     vectorstore.PayloadString(parent.Payload, "type"),
			Year:     vectorstore.PayloadInt(parent.Payload, "year"),
			Number:   vectorstore.PayloadString(parent.Payload, "number"),
			Category: vectorstore.PayloadString(parent.Payload, "category"),
			Status:   vectorstore.PayloadString(parent.Payload, "status"),
			Score:    sections[0].Score,
			Sections: refs,
		})
	}

	resp.Results = results
	if key != "" {
		s.cache.Add(key, resp)
	}
	s.publishQuery(ctx, "acts", req.Query, len(results), start, false)
	return resp, nil
}

// fetchParents batch-loads parent documents by id. The year filter is
// re-applied on the parent side so an act whose sections match but whose
// own year falls outside the requested range is dropped consistently.
func (s *Service) fetchParents(ctx context.Context, ids []string, f Filters) (map[string]vectorstore.Hit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	conds := []vectorstore.Condition{vectorstore.In("id", ids...)}
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

	hits, err := s.store.Scroll(ctx, pipeline.DocumentsCollection, vectorstore.And(conds...), len(ids))
	if err != nil {
		return nil, fmt.Errorf("search: fetch parents: %w", err)
	}
	out := make(map[string]vectorstore.Hit, len(hits))
	for _, h := range hits {
		out[vectorstore.PayloadString(h.Payload, "id")] = h
	}
	return out, nil
}
