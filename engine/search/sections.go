package search

import (
	"context"
	"fmt"
	"time"

	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
)

// SectionsRequest is one section-level search.
type SectionsRequest struct {
	Query       string  `json:"query"`
	Filters     Filters `json:"filters"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
	IncludeText bool    `json:"include_text"`
}

// SectionResult is one ranked provision.
type SectionResult struct {
	ID            string  `json:"id"`
	LegislationID string  `json:"legislation_id"`
	Title         string  `json:"title,omitempty"`
	Number        string  `json:"number,omitempty"`
	ProvisionType string  `json:"provision_type"`
	Type          string  `json:"type,omitempty"`
	Year          int64   `json:"year,omitempty"`
	Score         float64 `json:"score"`
	Text          string  `json:"text,omitempty"`
}

// SearchSections runs a hybrid query over provisions. Scores are
// normalized so the best hit reads 1.0 regardless of fusion magnitude.
func (s *Service) SearchSections(ctx context.Context, req SectionsRequest) ([]SectionResult, error) {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = 10
	}
	req.Query = normalizeQuery(req.Query)
	if req.Query == "" {
		return nil, fmt.Errorf("search: empty query")
	}

	key := cacheKey("sections", req)
	if key != "" {
		if cached, ok := s.cache.Get(key); ok {
			results := cached.([]SectionResult)
			s.publishQuery(ctx, "sections", req.Query, len(results), start, true)
			return results, nil
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
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, err
	}
	maxNormalize(hits)

	results := make([]SectionResult, len(hits))
	for i, h := range hits {
		results[i] = sectionResult(h, req.IncludeText)
	}

	if key != "" {
		s.cache.Add(key, results)
	}
	s.publishQuery(ctx, "sections", req.Query, len(results), start, false)
	return results, nil
}

func sectionResult(h vectorstore.Hit, includeText bool) SectionResult {
	r := SectionResult{
		ID:            vectorstore.PayloadString(h.Payload, "id"),
		LegislationID: vectorstore.PayloadString(h.Payload, "legislation_id"),
		Title:         vectorstore.PayloadString(h.Payload, "title"),
		Number:        vectorstore.PayloadString(h.Payload, "number"),
		ProvisionType: vectorstore.PayloadString(h.Payload, "provision_type"),
		Type:          vectorstore.PayloadString(h.Payload, "type"),
		Year:          vectorstore.PayloadInt(h.Payload, "year"),
		Score:         h.Score,
	}
	if includeText {
		r.Text = vectorstore.PayloadText(h.Payload, "text")
	}
	return r
}
