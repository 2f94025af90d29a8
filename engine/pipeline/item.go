package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/engine/parse"
	"github.com/openlex/lexuk/engine/pdffall"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/events"
)

// IngestURL fetches, parses and upserts a single document immediately,
// bypassing enumeration and checkpoint skip logic. Used by refresh,
// which needs the origin's current text, not a cached copy.
func (p *Pipeline) IngestURL(ctx context.Context, t domain.DocType, year int, u string) error {
	p.client.Invalidate(u, nil)
	p.client.Invalidate(strings.TrimSuffix(u, "/data.xml")+"/notes/data.xml", nil)
	b := newBatch(1)
	if _, err := p.processItem(ctx, t, year, u, b); err != nil {
		return err
	}
	return p.flushBatch(ctx, b)
}

// minBodyChars is the least provision text a parsed body must carry
// before it counts as real content rather than an empty shell.
const minBodyChars = 100

func provisionChars(sections []domain.Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Text)
	}
	return n
}

// batchItem is one fully parsed document waiting for embed+upsert.
type batchItem struct {
	url      string
	doc      domain.Document
	sections []domain.Section
	notes    []domain.ExplanatoryNote
	source   string
}

type batch struct {
	size  int
	items []batchItem
}

func newBatch(size int) *batch {
	return &batch{size: size}
}

func (b *batch) add(item batchItem) bool {
	b.items = append(b.items, item)
	return len(b.items) >= b.size
}

// processItem fetches and parses one document, queueing it for upsert.
// The returned stop flag aborts the whole run (budget spent or context
// gone); an error alone only fails this item.
func (p *Pipeline) processItem(ctx context.Context, t domain.DocType, year int, u string, b *batch) (bool, error) {
	resp, err := p.client.Get(ctx, u, nil, nil)
	if err != nil {
		if stop, aerr := p.observe(err); stop {
			return true, aerr
		}
		if errors.Is(err, httpx.ErrRateLimited) {
			// Not a document failure; the item stays unprocessed for
			// the next run.
			return false, err
		}
		p.failItem(ctx, t, year, u, err)
		return false, err
	}
	p.observe(nil)

	item := batchItem{url: u, source: "xml"}
	parsed, err := parse.Parse(resp.Body, p.log)
	switch {
	case err == nil:
		item.doc = parsed.Document
		item.sections = parsed.AllProvisions()
		// A body that parses but carries almost no text is a scanned
		// instrument with an empty CLML shell; recover it from the PDF.
		if n := provisionChars(item.sections); n < minBodyChars {
			doc, sections, ferr := p.fallbackOCR(ctx, u, item.doc.ID)
			if ferr == nil {
				item.doc, item.sections, item.source = doc, sections, "ocr"
				p.ocrFallbacks.Inc()
			} else {
				p.log.Warn("thin body kept from xml", "url", u, "chars", n, "error", ferr)
			}
		}
	case errors.Is(err, domain.ErrNoBody):
		doc, sections, ferr := p.fallbackOCR(ctx, u, "")
		if ferr != nil {
			p.failItem(ctx, t, year, u, ferr)
			return false, ferr
		}
		item.doc, item.sections, item.source = doc, sections, "ocr"
		p.ocrFallbacks.Inc()
	default:
		p.failItem(ctx, t, year, u, err)
		return false, err
	}

	if err := domain.ValidateDocument(&item.doc, p.log); err != nil {
		p.failItem(ctx, t, year, u, err)
		return false, err
	}
	valid := item.sections[:0]
	for i := range item.sections {
		if verr := domain.ValidateSection(&item.sections[i]); verr != nil {
			p.log.Warn("dropping invalid provision", "id", item.sections[i].ID, "error", verr)
			continue
		}
		valid = append(valid, item.sections[i])
	}
	item.sections = valid

	if p.opts.Notes && item.doc.Category == domain.CategoryPrimary {
		item.notes = p.fetchNotes(ctx, u, item.doc.ID)
	}

	if b.add(item) {
		if err := p.flushBatch(ctx, b); err != nil {
			if stop, aerr := p.observe(err); stop {
				return true, aerr
			}
			return false, err
		}
	}
	return false, nil
}

// fallbackOCR recovers a bodyless document from its published PDF. The
// canonical id comes from the parsed metadata when available; a fully
// bodyless document has none, so it falls back to the fetched URL.
func (p *Pipeline) fallbackOCR(ctx context.Context, u, id string) (domain.Document, []domain.Section, error) {
	if p.ocr == nil {
		return domain.Document{}, nil, domain.ErrNoBody
	}
	ref := strings.TrimSuffix(u, "/data.xml")
	if id == "" {
		id = domain.NormalizeID(ref)
	}
	resp, err := p.client.Get(ctx, ref+"/resources", nil, nil)
	if err != nil {
		return domain.Document{}, nil, err
	}
	pdfURL := pdffall.FindPDF(resp.Body)
	if pdfURL == "" {
		return domain.Document{}, nil, domain.ErrNoBody
	}
	return p.ocr.Extract(ctx, pdfURL, id)
}

// fetchNotes pulls the explanatory-notes XML, tolerating absence.
func (p *Pipeline) fetchNotes(ctx context.Context, u, docID string) []domain.ExplanatoryNote {
	notesURL := strings.TrimSuffix(u, "/data.xml") + "/notes/data.xml"
	resp, err := p.client.Get(ctx, notesURL, nil, nil)
	if err != nil {
		var se *httpx.StatusError
		if !errors.As(err, &se) || se.Status != 404 {
			p.log.Debug("notes fetch failed", "url", notesURL, "error", err)
		}
		return nil
	}
	notes, err := parse.ParseNotes(resp.Body, docID)
	if err != nil {
		p.log.Debug("notes parse failed", "url", notesURL, "error", err)
		return nil
	}
	return notes
}

// flushBatch embeds everything queued and upserts it. One embedding
// request batch covers sections, documents and notes so the remote
// round-trips stay bounded.
func (p *Pipeline) flushBatch(ctx context.Context, b *batch) error {
	if len(b.items) == 0 {
		return nil
	}
	items := b.items
	b.items = nil

	var texts []string
	for _, it := range items {
		texts = append(texts, docText(it.doc))
		for _, s := range it.sections {
			texts = append(texts, s.Text)
		}
		for _, n := range it.notes {
			texts = append(texts, n.Text)
		}
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	var docRecs, secRecs, noteRecs []vectorstore.Record
	k := 0
	for _, it := range items {
		if v := vectors[k]; !v.IsZero() {
			docRecs = append(docRecs, vectorstore.Record{
				ID:      domain.PointUUID(it.doc.ID),
				Vector:  v,
				Payload: docPayload(it.doc, it.source),
			})
		}
		k++
		for _, s := range it.sections {
			if v := vectors[k]; !v.IsZero() {
				secRecs = append(secRecs, vectorstore.Record{
					ID:      domain.PointUUID(s.ID),
					Vector:  v,
					Payload: sectionPayload(s, it.doc, it.source),
				})
			}
			k++
		}
		for _, n := range it.notes {
			if v := vectors[k]; !v.IsZero() {
				noteRecs = append(noteRecs, vectorstore.Record{
					ID:      domain.PointUUID(n.ID),
					Vector:  v,
					Payload: notePayload(n),
				})
			}
			k++
		}
	}

	if err := p.store.Upsert(ctx, SectionsCollection, secRecs); err != nil {
		return err
	}
	if err := p.store.Upsert(ctx, DocumentsCollection, docRecs); err != nil {
		return err
	}
	if err := p.store.Upsert(ctx, NotesCollection, noteRecs); err != nil {
		return err
	}

	for _, it := range items {
		if err := p.graph.SaveDocument(ctx, it.doc); err != nil {
			p.log.Warn("graph write failed", "id", it.doc.ID, "error", err)
		}
		p.ckpt.MarkProcessed(it.url)
		p.docsIngested.Inc()
		p.sectionsUp.Add(int64(len(it.sections)))
		p.sink.Publish(ctx, events.SubjectIngested, events.DocumentEvent{
			DocID:     it.doc.ID,
			DocType:   string(it.doc.Type),
			Year:      it.doc.Year,
			Sections:  len(it.sections),
			Source:    it.source,
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}

func (p *Pipeline) failItem(ctx context.Context, t domain.DocType, year int, u string, cause error) {
	p.ckpt.MarkFailed(u, cause)
	p.docsFailed.Inc()
	p.log.Warn("item failed", "type", t, "year", year, "url", u, "error", cause)
	p.sink.Publish(ctx, events.SubjectFailed, events.DocumentEvent{
		DocID:     u,
		DocType:   string(t),
		Year:      year,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	})
}

func docText(d domain.Document) string {
	if d.Description == "" {
		return d.Title
	}
	return d.Title + "\n" + d.Description
}

func docPayload(d domain.Document, source string) map[string]any {
	p := map[string]any{
		"id":                   d.ID,
		"uri":                  d.URI,
		"title":                d.Title,
		"description":          d.Description,
		"type":                 string(d.Type),
		"category":             string(d.Category),
		"year":                 d.Year,
		"number":               d.Number,
		"status":               d.Status,
		"number_of_provisions": d.NumberOfProvisions,
		"enactment_date":       d.EnactmentDate,
		"modified_date":        d.ModifiedDate,
		"extent":               extentStrings(d.Extent),
		"source":               source,
	}
	if prov := provenanceMap(d.Provenance); prov != nil {
		p["provenance"] = prov
	}
	return p
}

func sectionPayload(s domain.Section, d domain.Document, source string) map[string]any {
	p := map[string]any{
		"id":             s.ID,
		"uri":            s.URI,
		"legislation_id": s.LegislationID,
		"title":          s.Title,
		"text":           s.Text,
		"number":         s.Number,
		"provision_type": string(s.ProvisionType),
		"type":           string(d.Type),
		"category":       string(d.Category),
		"year":           d.Year,
		"extent":         extentStrings(s.Extent),
		"source":         source,
	}
	if prov := provenanceMap(s.Provenance); prov != nil {
		p["provenance"] = prov
	}
	return p
}

// provenanceMap carries the full provenance record into the payload;
// the flat source key stays alongside it for filtering.
func provenanceMap(prov *domain.Provenance) map[string]any {
	if prov == nil {
		return nil
	}
	m := map[string]any{
		"source":    prov.Source,
		"timestamp": prov.Timestamp.UTC().Format(time.RFC3339),
	}
	if prov.Model != "" {
		m["model"] = prov.Model
	}
	if prov.PromptVersion != "" {
		m["prompt_version"] = prov.PromptVersion
	}
	if prov.ResponseID != "" {
		m["response_id"] = prov.ResponseID
	}
	return m
}

func notePayload(n domain.ExplanatoryNote) map[string]any {
	return map[string]any{
		"id":             n.ID,
		"legislation_id": n.LegislationID,
		"note_type":      n.NoteType,
		"order":          n.Order,
		"section_type":   n.SectionType,
		"section_number": n.SectionNumber,
		"route":          append([]string(nil), n.Route...),
		"text":           n.Text,
	}
}

func extentStrings(ex []domain.Extent) []string {
	out := make([]string, len(ex))
	for i, e := range ex {
		out[i] = string(e)
	}
	return out
}
