package parse

import (
	"log/slog"

	"github.com/openlex/lexuk/engine/domain"
)

// Parsed is the normalized output of one XML document.
type Parsed struct {
	Document     domain.Document
	Sections     []domain.Section
	Schedules    []domain.Section
	Commentaries map[string]domain.Commentary
}

// AllProvisions returns sections followed by schedules.
func (p *Parsed) AllProvisions() []domain.Section {
	out := make([]domain.Section, 0, len(p.Sections)+len(p.Schedules))
	out = append(out, p.Sections...)
	out = append(out, p.Schedules...)
	return out
}

// Parse decodes domain XML and dispatches to the UK or EU-retained dialect
// parser. Selection is by presence of an EURetained marker element.
// A document without a body element fails with domain.ErrNoBody, which
// triggers the PDF fallback upstream.
func Parse(data []byte, log *slog.Logger) (*Parsed, error) {
	if log == nil {
		log = slog.Default()
	}
	root, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if root.Find("EURetained") != nil {
		return parseEU(root, log)
	}
	return parseUK(root, log)
}
