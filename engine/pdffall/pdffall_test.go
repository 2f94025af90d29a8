package pdffall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openlex/lexuk/engine/domain"
)

func TestFindPDFPrefersEnglish(t *testing.T) {
	page := `<Resources>
	  <Resource href="http://x/uksi/2019/100/made/data.pdf"/>
	  <Resource href="http://x/uksi/2019/100/made/data_en.pdf"/>
	</Resources>`
	got := FindPDF([]byte(page))
	if !strings.HasSuffix(got, "_en.pdf") {
		t.Fatalf("got %q", got)
	}
}

func TestFindPDFFallsBackToFirst(t *testing.T) {
	page := `<a href="http://x/a.pdf"></a><a href="http://x/b.pdf"></a>`
	if got := FindPDF([]byte(page)); got != "http://x/a.pdf" {
		t.Fatalf("got %q", got)
	}
	if FindPDF([]byte("<Resources/>")) != "" {
		t.Fatal("no pdf should yield empty")
	}
}

func ocrStub(t *testing.T, payload extractedData) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OCRRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.PDFURL == "" || req.Identifier == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := json.Marshal(payload)
		json.NewEncoder(w).Encode(OCRResponse{Success: true, ExtractedData: string(data)})
	}))
}

func TestExtract(t *testing.T) {
	srv := ocrStub(t, extractedData{
		Title: "The Example Regulations 2019",
		Sections: []struct {
			Number string `json:"number"`
			Title  string `json:"title"`
			Text   string `json:"text"`
		}{
			{Number: "1", Title: "Citation", Text: "These Regulations may be cited."},
			{Number: "2", Title: "Empty", Text: ""},
		},
		Schedules: []struct {
			Number string `json:"number"`
			Title  string `json:"title"`
			Text   string `json:"text"`
		}{
			{Number: "1", Title: "Forms", Text: "Prescribed forms."},
		},
	})
	defer srv.Close()

	e := NewExtractor(NewOCRClient(srv.URL, 0), nil)
	doc, sections, err := e.Extract(context.Background(), "http://x/data_en.pdf", "uksi/2019/100")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.ID != "http://www.legislation.gov.uk/id/uksi/2019/100" {
		t.Fatalf("doc id = %q", doc.ID)
	}
	if doc.Provenance.Source != "ocr" {
		t.Fatalf("provenance = %q", doc.Provenance.Source)
	}
	if doc.Type != domain.TypeUKSI || doc.Year != 2019 {
		t.Fatalf("type/year = %q/%d", doc.Type, doc.Year)
	}
	// The empty section is dropped; one section plus one schedule remain.
	if len(sections) != 2 {
		t.Fatalf("sections = %d", len(sections))
	}
	if sections[0].ProvisionType != domain.ProvisionSection || sections[0].Number != "1" {
		t.Fatalf("first = %+v", sections[0])
	}
	if sections[1].ProvisionType != domain.ProvisionSchedule {
		t.Fatalf("second = %+v", sections[1])
	}
	if doc.NumberOfProvisions != 2 {
		t.Fatalf("provision count = %d", doc.NumberOfProvisions)
	}
	if sections[0].Provenance.Source != "ocr" {
		t.Fatal("section provenance missing")
	}
}

func TestExtractFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OCRResponse{Success: false, Error: "unreadable scan"})
	}))
	defer srv.Close()

	e := NewExtractor(NewOCRClient(srv.URL, 0), nil)
	_, _, err := e.Extract(context.Background(), "http://x/a.pdf", "uksi/2019/100")
	if err == nil || !strings.Contains(err.Error(), "unreadable scan") {
		t.Fatalf("want service error, got %v", err)
	}
}

func TestExtractFallbackTitle(t *testing.T) {
	srv := ocrStub(t, extractedData{
		Sections: []struct {
			Number string `json:"number"`
			Title  string `json:"title"`
			Text   string `json:"text"`
		}{{Number: "1", Text: "Text."}},
	})
	defer srv.Close()

	e := NewExtractor(NewOCRClient(srv.URL, 0), nil)
	doc, _, err := e.Extract(context.Background(), "http://x/a.pdf", "uksi/2019/100")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if doc.Title == "" {
		t.Fatal("fallback title missing")
	}
}
