// Package pdffall recovers documents whose XML carries no body. It
// locates the published PDF on the item's resources page, sends it to an
// OCR extraction service, and converts the service's output into the
// same records the XML parser produces.
package pdffall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/openlex/lexuk/engine/domain"
)

// pdfLinkPattern matches hrefs to published PDFs on a resources page.
var pdfLinkPattern = regexp.MustCompile(`(?:href|URI)="([^"]+\.pdf)"`)

// FindPDF scans a resources page for the published PDF. English-language
// variants (the _en suffix) are preferred when several PDFs are listed.
func FindPDF(page []byte) string {
	matches := pdfLinkPattern.FindAllSubmatch(page, -1)
	if len(matches) == 0 {
		return ""
	}
	first := ""
	for _, m := range matches {
		u := string(m[1])
		if strings.HasSuffix(u, "_en.pdf") {
			return u
		}
		if first == "" {
			first = u
		}
	}
	return first
}

// Extractor converts a PDF into structured legislation data via the OCR
// service and returns parser-shaped records.
type Extractor struct {
	ocr *OCRClient
	log *slog.Logger
}

func NewExtractor(ocr *OCRClient, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{ocr: ocr, log: log}
}

// extractedData is the JSON payload inside an OCR response.
type extractedData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Sections    []struct {
		Number string `json:"number"`
		Title  string `json:"title"`
		Text   string `json:"text"`
	} `json:"sections"`
	Schedules []struct {
		Number string `json:"number"`
		Title  string `json:"title"`
		Text   string `json:"text"`
	} `json:"schedules"`
}

// Extract runs the OCR service on pdfURL and builds the document and its
// provisions for the given canonical id. Records carry ocr provenance so
// downstream consumers can tell them from parsed XML.
func (e *Extractor) Extract(ctx context.Context, pdfURL, id string) (domain.Document, []domain.Section, error) {
	id = domain.NormalizeID(id)
	parts, ok := domain.SplitID(id)
	if !ok {
		return domain.Document{}, nil, fmt.Errorf("pdffall: malformed id %q", id)
	}

	resp, err := e.ocr.Extract(ctx, OCRRequest{
		PDFURL:          pdfURL,
		LegislationType: string(parts.Type),
		Identifier:      id,
	})
	if err != nil {
		return domain.Document{}, nil, err
	}

	var data extractedData
	if err := json.Unmarshal([]byte(resp.ExtractedData), &data); err != nil {
		return domain.Document{}, nil, fmt.Errorf("ocr payload: %w", err)
	}

	doc := domain.Document{
		ID:       id,
		URI:      pdfURL,
		Title:    data.Title,
		Type:     parts.Type,
		Category: domain.CategoryOf(parts.Type),
		Year:     parts.YearInt(),
		Number:   parts.Number,
		Provenance: &domain.Provenance{
			Source:    "ocr",
			Timestamp: time.Now().UTC(),
		},
	}
	if doc.Title == "" {
		doc.Title = fallbackTitle(parts)
	}
	doc.Description = data.Description

	var sections []domain.Section
	for _, s := range data.Sections {
		sec := e.provision(doc, domain.ProvisionSection, s.Number, s.Title, s.Text, pdfURL)
		if sec.Text == "" {
			continue
		}
		sections = append(sections, sec)
	}
	for _, s := range data.Schedules {
		sec := e.provision(doc, domain.ProvisionSchedule, s.Number, s.Title, s.Text, pdfURL)
		if sec.Text == "" {
			continue
		}
		sections = append(sections, sec)
	}

	if len(sections) == 0 {
		e.log.Warn("ocr produced no provisions", "id", id, "pdf", pdfURL)
	}
	doc.NumberOfProvisions = len(sections)
	return doc, sections, nil
}

func (e *Extractor) provision(doc domain.Document, pt domain.ProvisionType, number, title, text, pdfURL string) domain.Section {
	number = strings.TrimSpace(number)
	if number == "" {
		number = "0"
	}
	return domain.Section{
		ID:            domain.SectionID(doc.ID, pt, number),
		URI:           pdfURL,
		LegislationID: doc.ID,
		Title:         strings.TrimSpace(title),
		Text:          strings.TrimSpace(text),
		ProvisionType: pt,
		Number:        number,
		Provenance: &domain.Provenance{
			Source:    "ocr",
			Timestamp: time.Now().UTC(),
		},
	}
}

// fallbackTitle builds a readable name when the OCR output has none.
func fallbackTitle(parts domain.IDParts) string {
	return fmt.Sprintf("%s %s/%s", strings.ToUpper(string(parts.Type)), parts.Year, parts.Number)
}
