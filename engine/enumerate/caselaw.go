package enumerate

import (
	"fmt"
	"strings"
)

// DefaultCaseLawBase is the case-law archive base URL. The archive feed is
// currently unavailable upstream, so the pipeline ships with the case-law
// component disabled; the URL derivation stays because slug casing is
// derived from the URL, not the XML metadata.
const DefaultCaseLawBase = "https://caselaw.nationalarchives.gov.uk"

// CaseRef identifies a judgment by its archive URL components.
type CaseRef struct {
	Court    string
	Division string
	Year     string
	Number   string
}

// ID returns the stable case identifier.
func (r CaseRef) ID() string {
	if r.Division != "" {
		return fmt.Sprintf("%s/%s/%s/%s", r.Court, r.Division, r.Year, r.Number)
	}
	return fmt.Sprintf("%s/%s/%s", r.Court, r.Year, r.Number)
}

// ParseCaseURL derives court and division from an archive item URL, keeping
// slug casing canonical. Patterns:
//
//	<base>/<court>/<year>/<number>
//	<base>/<court>/<division>/<year>/<number>
func ParseCaseURL(rawURL string) (CaseRef, bool) {
	trimmed := strings.TrimPrefix(rawURL, DefaultCaseLawBase)
	trimmed = strings.Trim(trimmed, "/")
	if i := strings.Index(trimmed, "://"); i != -1 {
		// Foreign base; strip scheme+host.
		rest := trimmed[i+3:]
		if j := strings.IndexByte(rest, '/'); j != -1 {
			trimmed = rest[j+1:]
		} else {
			return CaseRef{}, false
		}
	}
	segs := strings.Split(trimmed, "/")
	switch len(segs) {
	case 3:
		if !isYear(segs[1]) {
			return CaseRef{}, false
		}
		return CaseRef{Court: segs[0], Year: segs[1], Number: segs[2]}, true
	case 4:
		if !isYear(segs[2]) {
			return CaseRef{}, false
		}
		return CaseRef{Court: segs[0], Division: segs[1], Year: segs[2], Number: segs[3]}, true
	}
	return CaseRef{}, false
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
