package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/engine/parse"
	"github.com/openlex/lexuk/engine/vectorstore"
)

// runAmendments walks the yearly change feeds and upserts effect
// records. Amendments double as the change manifest for refresh, so
// this worker runs before any staleness decision can be made.
func (p *Pipeline) runAmendments(ctx context.Context) error {
	for year := p.opts.MinYear; year <= p.opts.MaxYear; year++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u := fmt.Sprintf("%s/changes/affected/all/%d/data.xml", p.enum.Base(), year)
		if p.ckpt.IsProcessed(u) {
			continue
		}

		resp, err := p.client.Get(ctx, u, nil, nil)
		if err != nil {
			if stop, aerr := p.observe(err); stop {
				return aerr
			}
			var se *httpx.StatusError
			if errors.As(err, &se) && se.Status == 404 {
				p.ckpt.MarkProcessed(u)
				continue
			}
			p.log.Warn("changes feed failed", "year", year, "error", err)
			continue
		}
		p.observe(nil)

		amendments, err := parse.ParseAmendments(resp.Body)
		if err != nil {
			p.log.Warn("changes feed parse failed", "year", year, "error", err)
			p.ckpt.MarkFailed(u, err)
			continue
		}

		if err := p.upsertAmendments(ctx, amendments); err != nil {
			if stop, aerr := p.observe(err); stop {
				return aerr
			}
			p.ckpt.MarkFailed(u, err)
			continue
		}
		p.ckpt.MarkProcessed(u)
	}
	return nil
}

func (p *Pipeline) upsertAmendments(ctx context.Context, amendments []domain.Amendment) error {
	var valid []domain.Amendment
	for i := range amendments {
		if err := domain.ValidateAmendment(&amendments[i]); err != nil {
			p.log.Debug("dropping invalid amendment", "id", amendments[i].ID, "error", err)
			continue
		}
		valid = append(valid, amendments[i])
	}
	if len(valid) == 0 {
		return nil
	}

	texts := make([]string, len(valid))
	for i, a := range valid {
		texts[i] = amendmentText(a)
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	var recs []vectorstore.Record
	for i, a := range valid {
		if vectors[i].IsZero() {
			continue
		}
		recs = append(recs, vectorstore.Record{
			ID:      domain.PointUUID(a.ID),
			Vector:  vectors[i],
			Payload: amendmentPayload(a),
		})
		if err := p.graph.SaveAmendment(ctx, a); err != nil {
			p.log.Warn("graph amendment write failed", "id", a.ID, "error", err)
		}
	}
	return p.store.Upsert(ctx, AmendmentsCollection, recs)
}

// amendmentText is the searchable rendering of one effect.
func amendmentText(a domain.Amendment) string {
	s := fmt.Sprintf("%s %s", a.ChangedDocumentID, a.TypeOfEffect)
	if a.AffectingDocumentID != "" {
		s += " by " + a.AffectingDocumentID
	}
	if a.AffectingYear > 0 {
		s += fmt.Sprintf(" (%d)", a.AffectingYear)
	}
	return s
}

func amendmentPayload(a domain.Amendment) map[string]any {
	return map[string]any{
		"id":                      a.ID,
		"changed_document_id":     a.ChangedDocumentID,
		"changed_provision_url":   a.ChangedProvisionURL,
		"affecting_document_id":   a.AffectingDocumentID,
		"affecting_provision_url": a.AffectingProvisionURL,
		"type_of_effect":          a.TypeOfEffect,
		"affecting_year":          a.AffectingYear,
		"ingested_at":             time.Now().UTC().Format(time.RFC3339),
	}
}
