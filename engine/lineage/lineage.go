// Package lineage maintains the amendment citation graph: which acts
// amend which, and through which provisions. The graph is optional; a
// nil Graph is a no-op so ingest runs without a graph database.
package lineage

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/openlex/lexuk/engine/domain"
)

// Graph writes documents and amendment edges into Neo4j.
type Graph struct {
	driver neo4j.DriverWithContext
}

// New wraps an existing driver. Pass nil to disable graph writes.
func New(driver neo4j.DriverWithContext) *Graph {
	if driver == nil {
		return nil
	}
	return &Graph{driver: driver}
}

// Connect dials Neo4j and verifies connectivity.
func Connect(ctx context.Context, uri, user, password string) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("lineage: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("lineage: verify connectivity: %w", err)
	}
	return &Graph{driver: driver}, nil
}

// Close releases the driver.
func (g *Graph) Close(ctx context.Context) error {
	if g == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// SaveDocument creates or updates a document node.
func (g *Graph) SaveDocument(ctx context.Context, d domain.Document) error {
	if g == nil {
		return nil
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (n:Legislation {id: $id}) SET n += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id": d.ID,
		"props": map[string]any{
			"title":    d.Title,
			"type":     string(d.Type),
			"category": string(d.Category),
			"year":     d.Year,
			"number":   d.Number,
			"modified": d.ModifiedDate,
		},
	})
	if err != nil {
		return fmt.Errorf("lineage: save document %s: %w", d.ID, err)
	}
	return nil
}

// SaveAmendment records one AFFECTS edge from the amending act to the
// amended act. Both endpoints are created as bare nodes if they have
// not been ingested yet.
func (g *Graph) SaveAmendment(ctx context.Context, a domain.Amendment) error {
	if g == nil {
		return nil
	}
	if a.ChangedDocumentID == "" || a.AffectingDocumentID == "" {
		return nil
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MERGE (from:Legislation {id: $affecting})
	           MERGE (to:Legislation {id: $changed})
	           MERGE (from)-[r:AFFECTS {id: $id}]->(to)
	           SET r.type = $type,
	               r.changed_provision = $changedProvision,
	               r.affecting_provision = $affectingProvision,
	               r.year = $year`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":                 a.ID,
		"affecting":          a.AffectingDocumentID,
		"changed":            a.ChangedDocumentID,
		"type":               a.TypeOfEffect,
		"changedProvision":   a.ChangedProvisionURL,
		"affectingProvision": a.AffectingProvisionURL,
		"year":               a.AffectingYear,
	})
	if err != nil {
		return fmt.Errorf("lineage: save amendment %s: %w", a.ID, err)
	}
	return nil
}

// AffectedBy returns ids of documents amended by the given act.
func (g *Graph) AffectedBy(ctx context.Context, id string) ([]string, error) {
	if g == nil {
		return nil, nil
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (:Legislation {id: $id})-[:AFFECTS]->(n:Legislation)
	           RETURN DISTINCT n.id AS id`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": domain.NormalizeID(id)})
	if err != nil {
		return nil, fmt.Errorf("lineage: affected by %s: %w", id, err)
	}
	return collectIDs(ctx, result)
}

// Amenders returns ids of documents that amend the given act.
func (g *Graph) Amenders(ctx context.Context, id string) ([]string, error) {
	if g == nil {
		return nil, nil
	}
	sess := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer sess.Close(ctx)

	cypher := `MATCH (n:Legislation)-[:AFFECTS]->(:Legislation {id: $id})
	           RETURN DISTINCT n.id AS id`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": domain.NormalizeID(id)})
	if err != nil {
		return nil, fmt.Errorf("lineage: amenders of %s: %w", id, err)
	}
	return collectIDs(ctx, result)
}

func collectIDs(ctx context.Context, result neo4j.ResultWithContext) ([]string, error) {
	var out []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("id"); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, result.Err()
}
