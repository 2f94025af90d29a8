package lineage

import (
	"context"
	"testing"

	"github.com/openlex/lexuk/engine/domain"
)

// A nil graph is the disabled configuration; every operation must be a
// safe no-op so the pipeline does not branch on it.
func TestNilGraphNoOps(t *testing.T) {
	var g *Graph
	ctx := context.Background()

	if err := g.SaveDocument(ctx, domain.Document{ID: "x"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	if err := g.SaveAmendment(ctx, domain.Amendment{ID: "a"}); err != nil {
		t.Fatalf("SaveAmendment: %v", err)
	}
	if ids, err := g.AffectedBy(ctx, "x"); err != nil || ids != nil {
		t.Fatalf("AffectedBy: %v %v", ids, err)
	}
	if ids, err := g.Amenders(ctx, "x"); err != nil || ids != nil {
		t.Fatalf("Amenders: %v %v", ids, err)
	}
	if err := g.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if New(nil) != nil {
		t.Fatal("New(nil) should return nil graph")
	}
}
