// Package enumerate walks the authority portal's (type, year) listing pages
// and yields canonical XML-data URLs. It is a pure enumerator: fetching and
// parsing of the items themselves belongs to the pipeline.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"

	"github.com/openlex/lexuk/engine/domain"
	"github.com/openlex/lexuk/engine/httpx"
)

// DefaultBase is the authority portal base URL.
const DefaultBase = "https://www.legislation.gov.uk"

// maxListingPages bounds pagination per combination.
const maxListingPages = 200

// itemLinkPattern matches listing links to individual items, including
// regnal-year forms (ukla/Vict/14-15/51).
var itemLinkPattern = regexp.MustCompile(`href="/([a-z]+)/((?:\d{4})|(?:[A-Za-z0-9]+/[0-9-]+))/(\d+)(?:/[^"]*)?"`)

// warningBanner marks an empty listing page.
var warningBanner = regexp.MustCompile(`class="warning"|There are no items that match`)

// Enumerator yields XML URLs for (document-type, year) combinations.
type Enumerator struct {
	base   string
	client *httpx.Client
	log    *slog.Logger
}

// New creates an Enumerator over the portal at base.
func New(base string, client *httpx.Client, log *slog.Logger) *Enumerator {
	if base == "" {
		base = DefaultBase
	}
	if log == nil {
		log = slog.Default()
	}
	return &Enumerator{base: base, client: client, log: log}
}

// Base returns the portal base URL.
func (e *Enumerator) Base() string { return e.base }

// Skip reports whether a type's historical active range excludes the year.
func Skip(t domain.DocType, year int) bool {
	return !domain.ActiveYears(t).Contains(year)
}

// XMLURL is the canonical data URL for one item.
func (e *Enumerator) XMLURL(t domain.DocType, year, number string) string {
	return fmt.Sprintf("%s/%s/%s/%s/data.xml", e.base, t, year, number)
}

// ResourcesURL is the item's resources page, used by the PDF fallback.
func (e *Enumerator) ResourcesURL(t domain.DocType, year, number string) string {
	return fmt.Sprintf("%s/%s/%s/%s/resources", e.base, t, year, number)
}

// URLs enumerates one combination, walking pagination until a page yields
// nothing new. Server 5xx on a listing page is non-fatal: it is logged and
// the remaining pages are skipped. limit <= 0 means unlimited.
func (e *Enumerator) URLs(ctx context.Context, t domain.DocType, year, limit int) ([]string, error) {
	if Skip(t, year) {
		return nil, nil
	}

	listing := fmt.Sprintf("%s/%s/%d", e.base, t, year)
	seen := make(map[string]bool)
	var out []string

	for page := 1; page <= maxListingPages; page++ {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		params := url.Values{}
		if page > 1 {
			params.Set("page", strconv.Itoa(page))
		}
		resp, err := e.client.Get(ctx, listing, params, nil)
		if err != nil {
			var se *httpx.StatusError
			if errors.As(err, &se) {
				if se.Status == 404 {
					// No listing for this combination at all.
					return out, nil
				}
				e.log.Warn("listing page error, skipping combination remainder",
					"type", t, "year", year, "page", page, "status", se.Status)
				return out, nil
			}
			return out, err
		}

		body := resp.Text()
		if warningBanner.MatchString(body) && page == 1 {
			return nil, nil
		}

		added := 0
		for _, m := range itemLinkPattern.FindAllStringSubmatch(body, -1) {
			linkType, linkYear, number := m[1], m[2], m[3]
			if linkType != string(t) {
				continue
			}
			u := e.XMLURL(t, linkYear, number)
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
			added++
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if added == 0 {
			break
		}
	}
	return out, nil
}
