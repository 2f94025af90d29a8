package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/pipeline"
	"github.com/openlex/lexuk/engine/vectorstore"
	"github.com/openlex/lexuk/pkg/fn"
)

// DocumentResult is a direct document lookup.
type DocumentResult struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Type               string `json:"type"`
	Category           string `json:"category,omitempty"`
	Year               int64  `json:"year,omitempty"`
	Number             string `json:"number,omitempty"`
	Status             string `json:"status,omitempty"`
	NumberOfProvisions int64  `json:"number_of_provisions,omitempty"`
	ModifiedDate       string `json:"modified_date,omitempty"`
}

// LookupDocument fetches one document by any accepted id form.
func (s *Service) LookupDocument(ctx context.Context, id string) (*DocumentResult, error) {
	norm := domain.NormalizeID(id)
	hits, err := s.store.Scroll(ctx, pipeline.DocumentsCollection,
		vectorstore.And(vectorstore.Eq("id", norm)), 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("search: document %s: %w", norm, domain.ErrNotFound)
	}
	p := hits[0].Payload
	return &DocumentResult{
		ID:                 vectorstore.PayloadString(p, "id"),
		Title:              vectorstore.PayloadString(p, "title"),
		Description:        vectorstore.PayloadString(p, "description"),
		Type:               vectorstore.PayloadString(p, "type"),
		Category:           vectorstore.PayloadString(p, "category"),
		Year:               vectorstore.PayloadInt(p, "year"),
		Number:             vectorstore.PayloadString(p, "number"),
		Status:             vectorstore.PayloadString(p, "status"),
		NumberOfProvisions: vectorstore.PayloadInt(p, "number_of_provisions"),
		ModifiedDate:       vectorstore.PayloadString(p, "modified_date"),
	}, nil
}

// GetSections returns every provision of one act in reading order:
// sections before schedules, numbers compared numerically when they
// are numeric.
func (s *Service) GetSections(ctx context.Context, legislationID string, includeText bool) ([]SectionResult, error) {
	norm := domain.NormalizeID(legislationID)
	hits, err := s.store.Scroll(ctx, pipeline.SectionsCollection,
		vectorstore.And(vectorstore.Eq("legislation_id", norm)), 0)
	if err != nil {
		return nil, err
	}

	results := make([]SectionResult, len(hits))
	for i, h := range hits {
		results[i] = sectionResult(h, includeText)
	}
	sortProvisions(results)
	return results, nil
}

// GetFullText reconstructs the act's text in reading order. Schedules
// follow the sections unless includeSchedules is false.
func (s *Service) GetFullText(ctx context.Context, legislationID string, includeSchedules bool) (string, error) {
	sections, err := s.GetSections(ctx, legislationID, true)
	if err != nil {
		return "", err
	}
	if !includeSchedules {
		sections = fn.Filter(sections, func(r SectionResult) bool {
			return r.ProvisionType != string(domain.ProvisionSchedule)
		})
	}
	if len(sections) == 0 {
		return "", fmt.Errorf("search: no provisions for %s: %w",
			domain.NormalizeID(legislationID), domain.ErrNotFound)
	}

	var b strings.Builder
	for _, sec := range sections {
		heading := provisionHeading(sec)
		if heading != "" {
			b.WriteString(heading)
			b.WriteString("\n")
		}
		b.WriteString(sec.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func provisionHeading(sec SectionResult) string {
	label := "Section"
	if sec.ProvisionType == string(domain.ProvisionSchedule) {
		label = "Schedule"
	}
	switch {
	case sec.Number != "" && sec.Title != "":
		return fmt.Sprintf("%s %s: %s", label, sec.Number, sec.Title)
	case sec.Number != "":
		return fmt.Sprintf("%s %s", label, sec.Number)
	default:
		return sec.Title
	}
}

// sortProvisions orders sections before schedules, then by number.
func sortProvisions(results []SectionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ProvisionType != b.ProvisionType {
			return a.ProvisionType == string(domain.ProvisionSection)
		}
		an, aok := numericPrefix(a.Number)
		bn, bok := numericPrefix(b.Number)
		switch {
		case aok && bok:
			if an != bn {
				return an < bn
			}
			return a.Number < b.Number
		case aok:
			return true
		case bok:
			return false
		default:
			return a.Number < b.Number
		}
	})
}

// numericPrefix parses the leading digits of a provision number, so
// "8A" orders after "8" and before "9".
func numericPrefix(num string) (int, bool) {
	i := 0
	for i < len(num) && num[i] >= '0' && num[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(num[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}
