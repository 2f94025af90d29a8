package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// AuthorityBase is the canonical authority URL prefix for document IDs.
// Normalized IDs always carry this prefix so that equal IDs denote the
// same logical document across collections.
const AuthorityBase = "http://www.legislation.gov.uk/id"

// NormalizeID returns the canonical form of a document ID. Bare IDs such
// as "ukpga/2006/46" gain the authority prefix; https and non-id portal
// URLs are rewritten to the canonical http id form.
func NormalizeID(id string) string {
	id = strings.TrimSuffix(strings.TrimSpace(id), "/")
	if id == "" {
		return ""
	}
	id = strings.Replace(id, "https://www.legislation.gov.uk", "http://www.legislation.gov.uk", 1)
	if strings.HasPrefix(id, AuthorityBase+"/") {
		return id
	}
	if strings.HasPrefix(id, "http://www.legislation.gov.uk/") {
		return AuthorityBase + strings.TrimPrefix(id, "http://www.legislation.gov.uk")
	}
	return AuthorityBase + "/" + strings.TrimPrefix(id, "/")
}

// IDParts is the positional split of a normalized document ID.
type IDParts struct {
	Type   DocType
	Year   string // may be regnal, e.g. "Vict/14-15"
	Number string
	// Provision is empty for parent documents, otherwise "section" or
	// "schedule"; ProvisionNumber carries the trailing component.
	Provision       string
	ProvisionNumber string
}

// YearInt returns the numeric year, or 0 for regnal years.
func (p IDParts) YearInt() int {
	y, _ := strconv.Atoi(p.Year)
	return y
}

// SplitID decomposes a normalized or bare ID by positional split.
// Regnal-year IDs (ukla/Vict/14-15/51) occupy two year segments.
func SplitID(id string) (IDParts, bool) {
	rel := strings.TrimPrefix(NormalizeID(id), AuthorityBase+"/")
	segs := strings.Split(rel, "/")
	if len(segs) < 3 {
		return IDParts{}, false
	}
	parts := IDParts{Type: DocType(segs[0])}
	rest := segs[1:]

	// A regnal year looks like "Vict/14-15": a non-numeric segment followed
	// by the session range.
	if _, err := strconv.Atoi(rest[0]); err != nil && len(rest) >= 3 {
		parts.Year = rest[0] + "/" + rest[1]
		rest = rest[2:]
	} else {
		parts.Year = rest[0]
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return IDParts{}, false
	}
	parts.Number = rest[0]
	rest = rest[1:]

	if len(rest) >= 2 && (rest[0] == "section" || rest[0] == "schedule") {
		parts.Provision = rest[0]
		parts.ProvisionNumber = strings.Join(rest[1:], "/")
	}
	return parts, true
}

// ParentID strips any provision suffix, returning the parent document ID.
func ParentID(id string) string {
	norm := NormalizeID(id)
	for _, marker := range []string{"/section/", "/schedule/"} {
		if idx := strings.Index(norm, marker); idx != -1 {
			return norm[:idx]
		}
	}
	return norm
}

// SectionID builds the canonical child ID for a provision.
func SectionID(parentID string, pt ProvisionType, number string) string {
	return NormalizeID(parentID) + "/" + string(pt) + "/" + number
}

// idNamespace is the fixed UUID namespace for point keys. Name-based UUIDs
// over normalized IDs make upserts idempotent.
var idNamespace = uuid.NameSpaceURL

// PointUUID derives the deterministic vector-store primary key for an ID.
func PointUUID(id string) string {
	return uuid.NewSHA1(idNamespace, []byte(NormalizeID(id))).String()
}
