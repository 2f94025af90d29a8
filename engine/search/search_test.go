package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/embed"
	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
)

// --- Stubs ---

type stubQuerier struct {
	queryHits   []vectorstore.Hit
	queryCalls  int
	queryErr    error
	scrollHits  map[string][]vectorstore.Hit
	scrollCalls int
	lastScroll  *pb.Filter
}

func (s *stubQuerier) HybridQuery(_ context.Context, _ vectorstore.HybridRequest) ([]vectorstore.Hit, error) {
	s.queryCalls++
	return s.queryHits, s.queryErr
}

func (s *stubQuerier) Scroll(_ context.Context, collection string, filter *pb.Filter, _ int) ([]vectorstore.Hit, error) {
	s.scrollCalls++
	s.lastScroll = filter
	return s.scrollHits[collection], nil
}

type stubEncoder struct{ calls int }

func (s *stubEncoder) EncodeQuery(_ context.Context, _ string) (embed.Vector, error) {
	s.calls++
	return embed.Vector{Dense: []float32{1, 0}}, nil
}

func sectionHit(id, legislationID, number, ptype string, score float64) vectorstore.Hit {
	return vectorstore.Hit{
		ID:    id,
		Score: score,
		Payload: map[string]any{
			"id":             id,
			"legislation_id": legislationID,
			"number":         number,
			"provision_type": ptype,
			"title":          "Title " + number,
			"text":           "Text of " + number,
			"year":           int64(2006),
		},
	}
}

func documentHit(id, title string) vectorstore.Hit {
	return vectorstore.Hit{
		ID: id,
		Payload: map[string]any{
			"id":    id,
			"title": title,
			"type":  "ukpga",
			"year":  int64(2006),
		},
	}
}

const act1 = "http://www.legislation.gov.uk/id/ukpga/2006/46"
const act2 = "http://www.legislation.gov.uk/id/ukpga/2010/5"

// --- Filters ---

func TestFiltersPinOverridesAll(t *testing.T) {
	f := Filters{
		LegislationID: "ukpga/2006/46",
		Types:         []string{"uksi"},
		YearFrom:      1990,
	}
	compiled := f.Compile()
	if len(compiled.GetMust()) != 1 {
		t.Fatalf("pin must be the only condition: %+v", compiled)
	}
	kw := compiled.GetMust()[0].GetField().GetMatch().GetKeyword()
	if kw != act1 {
		t.Fatalf("pin = %q", kw)
	}
}

func TestFiltersCompose(t *testing.T) {
	f := Filters{Types: []string{"ukpga", "asp"}, Category: "primary", YearFrom: 1990, YearTo: 2000}
	compiled := f.Compile()
	if len(compiled.GetMust()) != 3 {
		t.Fatalf("conditions = %d", len(compiled.GetMust()))
	}
	if (Filters{}).Compile() != nil {
		t.Fatal("empty filters must compile to nil")
	}
}

// --- Sections ---

func TestSearchSectionsNormalizesScores(t *testing.T) {
	store := &stubQuerier{queryHits: []vectorstore.Hit{
		sectionHit("s1", act1, "1", "section", 1.6),
		sectionHit("s2", act1, "2", "section", 0.8),
	}}
	svc := New(store, &stubEncoder{}, nil, nil)

	results, err := svc.SearchSections(context.Background(), SectionsRequest{Query: "company"})
	if err != nil {
		t.Fatalf("SearchSections: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Score != 1.0 || results[1].Score != 0.5 {
		t.Fatalf("scores = %v %v", results[0].Score, results[1].Score)
	}
	if results[0].Text != "" {
		t.Fatal("text must be excluded by default")
	}
}

func TestSearchSectionsIncludeText(t *testing.T) {
	store := &stubQuerier{queryHits: []vectorstore.Hit{
		sectionHit("s1", act1, "1", "section", 1),
	}}
	svc := New(store, &stubEncoder{}, nil, nil)

	results, err := svc.SearchSections(context.Background(), SectionsRequest{Query: "q", IncludeText: true})
	if err != nil || results[0].Text != "Text of 1" {
		t.Fatalf("results=%+v err=%v", results, err)
	}
}

func TestSearchSectionsEmptyQuery(t *testing.T) {
	svc := New(&stubQuerier{}, &stubEncoder{}, nil, nil)
	if _, err := svc.SearchSections(context.Background(), SectionsRequest{Query: "   "}); err == nil {
		t.Fatal("empty query must error")
	}
}

func TestSearchSectionsCaches(t *testing.T) {
	store := &stubQuerier{queryHits: []vectorstore.Hit{
		sectionHit("s1", act1, "1", "section", 1),
	}}
	enc := &stubEncoder{}
	svc := New(store, enc, nil, nil)

	req := SectionsRequest{Query: "director  duties"}
	if _, err := svc.SearchSections(context.Background(), req); err != nil {
		t.Fatalf("first: %v", err)
	}
	// Same query with different interior whitespace hits the cache.
	req.Query = "director duties"
	if _, err := svc.SearchSections(context.Background(), req); err != nil {
		t.Fatalf("second: %v", err)
	}
	if store.queryCalls != 1 || enc.calls != 1 {
		t.Fatalf("store=%d enc=%d, want 1 each", store.queryCalls, enc.calls)
	}
}

// --- Acts ---

func TestSearchActsGroupsAndRanks(t *testing.T) {
	store := &stubQuerier{
		queryHits: []vectorstore.Hit{
			sectionHit("s1", act1, "1", "section", 2.0),
			sectionHit("s2", act2, "4", "section", 1.5),
			sectionHit("s3", act1, "2", "section", 1.0),
		},
		scrollHits: map[string][]vectorstore.Hit{
			pipeline.DocumentsCollection: {
				documentHit(act1, "Companies Act 2006"),
				documentHit(act2, "Other Act 2010"),
			},
		},
	}
	svc := New(store, &stubEncoder{}, nil, nil)

	resp, err := svc.SearchActs(context.Background(), ActsRequest{Query: "company"})
	if err != nil {
		t.Fatalf("SearchActs: %v", err)
	}
	results := resp.Results
	if len(results) != 2 || resp.Total != 2 {
		t.Fatalf("results = %d, total = %d", len(results), resp.Total)
	}
	if results[0].ID != act1 || results[0].Title != "Companies Act 2006" {
		t.Fatalf("top act = %+v", results[0])
	}
	if len(results[0].Sections) != 2 {
		t.Fatalf("act sections = %d", len(results[0].Sections))
	}
	if results[0].Score != 1.0 {
		t.Fatalf("top score = %v", results[0].Score)
	}
	if results[0].Sections[0].Number != "1" {
		t.Fatalf("section ref = %+v", results[0].Sections[0])
	}
}

func TestSearchActsMissingParentSkipped(t *testing.T) {
	store := &stubQuerier{
		queryHits: []vectorstore.Hit{
			sectionHit("s1", act1, "1", "section", 2.0),
			sectionHit("s2", act2, "4", "section", 1.5),
		},
		scrollHits: map[string][]vectorstore.Hit{
			pipeline.DocumentsCollection: {documentHit(act2, "Other Act 2010")},
		},
	}
	svc := New(store, &stubEncoder{}, nil, nil)

	resp, err := svc.SearchActs(context.Background(), ActsRequest{Query: "q"})
	if err != nil {
		t.Fatalf("SearchActs: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != act2 {
		t.Fatalf("results = %+v", resp.Results)
	}
	// The act still counts toward the total: only its parent record is gone.
	if resp.Total != 2 {
		t.Fatalf("total = %d", resp.Total)
	}
}

func TestSearchActsPagination(t *testing.T) {
	store := &stubQuerier{
		queryHits: []vectorstore.Hit{
			sectionHit("s1", act1, "1", "section", 2.0),
			sectionHit("s2", act2, "4", "section", 1.5),
		},
		scrollHits: map[string][]vectorstore.Hit{
			pipeline.DocumentsCollection: {documentHit(act2, "Other Act 2010")},
		},
	}
	svc := New(store, &stubEncoder{}, nil, nil)

	resp, err := svc.SearchActs(context.Background(), ActsRequest{Query: "q", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("SearchActs: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != act2 {
		t.Fatalf("page 2 = %+v", resp.Results)
	}
	if resp.Total != 2 || resp.Offset != 1 || resp.Limit != 1 {
		t.Fatalf("envelope = total %d offset %d limit %d", resp.Total, resp.Offset, resp.Limit)
	}

	resp, err = svc.SearchActs(context.Background(), ActsRequest{Query: "q", Offset: 50})
	if err != nil || len(resp.Results) != 0 {
		t.Fatalf("out-of-range offset: %+v %v", resp.Results, err)
	}
	if resp.Total != 2 {
		t.Fatalf("out-of-range total = %d", resp.Total)
	}
}

func TestSearchActsOrphanHitsKeepPageFull(t *testing.T) {
	store := &stubQuerier{
		queryHits: []vectorstore.Hit{
			sectionHit("s0", "", "9", "section", 3.0),
			sectionHit("s1", act1, "1", "section", 2.0),
			sectionHit("s2", act2, "4", "section", 1.5),
		},
		scrollHits: map[string][]vectorstore.Hit{
			pipeline.DocumentsCollection: {
				documentHit(act1, "Companies Act 2006"),
				documentHit(act2, "Other Act 2010"),
			},
		},
	}
	svc := New(store, &stubEncoder{}, nil, nil)

	resp, err := svc.SearchActs(context.Background(), ActsRequest{Query: "q", Limit: 2})
	if err != nil {
		t.Fatalf("SearchActs: %v", err)
	}
	// A hit without a legislation_id must not eat a pagination slot.
	if len(resp.Results) != 2 || resp.Total != 2 {
		t.Fatalf("results = %d, total = %d", len(resp.Results), resp.Total)
	}
	if resp.Results[0].ID != act1 || resp.Results[1].ID != act2 {
		t.Fatalf("page = %+v", resp.Results)
	}
}

func TestSearchActsYearFilterOnParents(t *testing.T) {
	store := &stubQuerier{
		queryHits: []vectorstore.Hit{sectionHit("s1", act1, "1", "section", 2.0)},
		scrollHits: map[string][]vectorstore.Hit{
			pipeline.DocumentsCollection: {documentHit(act1, "Companies Act 2006")},
		},
	}
	svc := New(store, &stubEncoder{}, nil, nil)

	_, err := svc.SearchActs(context.Background(), ActsRequest{
		Query:   "q",
		Filters: Filters{YearFrom: 2000, YearTo: 2010},
	})
	if err != nil {
		t.Fatalf("SearchActs: %v", err)
	}
	if len(store.lastScroll.GetMust()) != 2 {
		t.Fatalf("parent filter = %+v", store.lastScroll)
	}
}

// --- Lookups ---

func TestLookupDocumentNotFound(t *testing.T) {
	svc := New(&stubQuerier{scrollHits: map[string][]vectorstore.Hit{}}, &stubEncoder{}, nil, nil)
	_, err := svc.LookupDocument(context.Background(), "ukpga/1999/1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestGetSectionsReadingOrder(t *testing.T) {
	store := &stubQuerier{scrollHits: map[string][]vectorstore.Hit{
		pipeline.SectionsCollection: {
			sectionHit("s10", act1, "10", "section", 0),
			sectionHit("sch1", act1, "1", "schedule", 0),
			sectionHit("s2", act1, "2", "section", 0),
			sectionHit("s8a", act1, "8A", "section", 0),
			sectionHit("s8", act1, "8", "section", 0),
			sectionHit("s1", act1, "1", "section", 0),
		},
	}}
	svc := New(store, &stubEncoder{}, nil, nil)

	results, err := svc.GetSections(context.Background(), act1, false)
	if err != nil {
		t.Fatalf("GetSections: %v", err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.ProvisionType+":"+r.Number)
	}
	want := []string{"section:1", "section:2", "section:8", "section:8A", "section:10", "schedule:1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestGetFullText(t *testing.T) {
	store := &stubQuerier{scrollHits: map[string][]vectorstore.Hit{
		pipeline.SectionsCollection: {
			sectionHit("s2", act1, "2", "section", 0),
			sectionHit("s1", act1, "1", "section", 0),
		},
	}}
	svc := New(store, &stubEncoder{}, nil, nil)

	text, err := svc.GetFullText(context.Background(), act1, true)
	if err != nil {
		t.Fatalf("GetFullText: %v", err)
	}
	if !strings.Contains(text, "Section 1: Title 1") || !strings.Contains(text, "Text of 2") {
		t.Fatalf("text = %q", text)
	}
	if strings.Index(text, "Text of 1") > strings.Index(text, "Text of 2") {
		t.Fatal("sections out of order")
	}
}

func TestGetFullTextExcludesSchedules(t *testing.T) {
	store := &stubQuerier{scrollHits: map[string][]vectorstore.Hit{
		pipeline.SectionsCollection: {
			sectionHit("s1", act1, "1", "section", 0),
			sectionHit("sch1", act1, "1", "schedule", 0),
		},
	}}
	svc := New(store, &stubEncoder{}, nil, nil)

	text, err := svc.GetFullText(context.Background(), act1, false)
	if err != nil {
		t.Fatalf("GetFullText: %v", err)
	}
	if strings.Contains(text, "Schedule") {
		t.Fatalf("schedules not excluded: %q", text)
	}
	if !strings.Contains(text, "Section 1") {
		t.Fatalf("sections missing: %q", text)
	}
}

func TestGetFullTextEmpty(t *testing.T) {
	svc := New(&stubQuerier{scrollHits: map[string][]vectorstore.Hit{}}, &stubEncoder{}, nil, nil)
	_, err := svc.GetFullText(context.Background(), act1, true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
