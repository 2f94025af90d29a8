package enumerate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/httpx"
)

func newTestClient(t *testing.T) *httpx.Client {
	t.Helper()
	c, err := httpx.New(httpx.Options{
		CacheDir:          t.TempDir(),
		MaxAttempts:       1,
		RequestsPerSecond: 10000,
		InitialWait:       time.Millisecond,
	})
	if err != nil {
		t.Fatalf("httpx.New: %v", err)
	}
	return c
}

func listingPage(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for _, l := range links {
		fmt.Fprintf(&b, `<tr><td><a href="%s">item</a></td></tr>`, l)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func TestURLsWalksPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Write([]byte(listingPage("/ukpga/2024/1", "/ukpga/2024/2/contents")))
		case "2":
			w.Write([]byte(listingPage("/ukpga/2024/3")))
		default:
			w.Write([]byte(listingPage()))
		}
	}))
	defer srv.Close()

	e := New(srv.URL, newTestClient(t), nil)
	urls, err := e.URLs(context.Background(), domain.TypeUKPGA, 2024, 0)
	if err != nil {
		t.Fatalf("URLs: %v", err)
	}
	want := []string{
		srv.URL + "/ukpga/2024/1/data.xml",
		srv.URL + "/ukpga/2024/2/data.xml",
		srv.URL + "/ukpga/2024/3/data.xml",
	}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls: %v", len(urls), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestURLsRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage("/ukpga/2024/1", "/ukpga/2024/2", "/ukpga/2024/3")))
	}))
	defer srv.Close()

	e := New(srv.URL, newTestClient(t), nil)
	urls, err := e.URLs(context.Background(), domain.TypeUKPGA, 2024, 2)
	if err != nil {
		t.Fatalf("URLs: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("limit ignored: %v", urls)
	}
}

func TestURLsWarningBannerYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="warning">There are no items that match your search</div>`))
	}))
	defer srv.Close()

	e := New(srv.URL, newTestClient(t), nil)
	urls, err := e.URLs(context.Background(), domain.TypeUKPGA, 2024, 0)
	if err != nil || len(urls) != 0 {
		t.Fatalf("want empty, got %v, %v", urls, err)
	}
}

func TestURLsServerErrorNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(srv.URL, newTestClient(t), nil)
	urls, err := e.URLs(context.Background(), domain.TypeUKPGA, 2024, 0)
	if err != nil {
		t.Fatalf("5xx must be non-fatal: %v", err)
	}
	if len(urls) != 0 {
		t.Fatalf("got %v", urls)
	}
}

func TestSkipInactiveYears(t *testing.T) {
	if !Skip(domain.TypeASP, 1990) {
		t.Fatal("asp did not exist in 1990")
	}
	if Skip(domain.TypeUKPGA, 2024) {
		t.Fatal("ukpga is active in 2024")
	}
}

func TestParseCaseURL(t *testing.T) {
	ref, ok := ParseCaseURL(DefaultCaseLawBase + "/ewca/civ/2024/100")
	if !ok {
		t.Fatal("parse should succeed")
	}
	if ref.Court != "ewca" || ref.Division != "civ" || ref.Year != "2024" || ref.Number != "100" {
		t.Fatalf("ref = %+v", ref)
	}
	if ref.ID() != "ewca/civ/2024/100" {
		t.Fatalf("ID = %q", ref.ID())
	}

	ref, ok = ParseCaseURL(DefaultCaseLawBase + "/uksc/2023/42")
	if !ok || ref.Division != "" || ref.Court != "uksc" {
		t.Fatalf("ref = %+v ok=%v", ref, ok)
	}

	if _, ok := ParseCaseURL(DefaultCaseLawBase + "/uksc/notayear/42"); ok {
		t.Fatal("invalid year should fail")
	}
}
