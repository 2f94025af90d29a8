package parse

import (
	"strconv"
	"strings"

	"github.com/openlex/lexuk/engine/domain"
)

// categoryValues maps the portal's DocumentCategory attribute to the typed
// enumeration. "euretained" appears on retained EU instruments.
var categoryValues = map[string]domain.Category{
	"primary":    domain.CategoryPrimary,
	"secondary":  domain.CategorySecondary,
	"euretained": domain.CategoryEuropean,
	"european":   domain.CategoryEuropean,
}

// extractDocument builds the parent Document from the Dublin-Core and
// domain-namespace metadata block.
func extractDocument(root *Node) domain.Document {
	var doc domain.Document

	meta := root.Find("Metadata")
	if meta == nil {
		meta = root
	}

	if n := meta.Child("identifier"); n != nil {
		doc.URI = n.FlatText()
		doc.ID = domain.NormalizeID(doc.URI)
	}
	if n := meta.Child("title"); n != nil {
		doc.Title = n.FlatText()
	}
	if n := meta.Child("description"); n != nil {
		doc.Description = n.FlatText()
	}
	if n := meta.Child("modified"); n != nil {
		doc.ModifiedDate = n.FlatText()
	}

	if class := meta.Find("DocumentClassification"); class != nil {
		if n := class.Child("DocumentCategory"); n != nil {
			doc.Category = categoryValues[strings.ToLower(n.Attr("Value"))]
		}
		if n := class.Child("DocumentStatus"); n != nil {
			doc.Status = n.Attr("Value")
		}
	}
	if n := meta.Find("Year"); n != nil {
		doc.Year, _ = strconv.Atoi(n.Attr("Value"))
	}
	if n := meta.Find("Number"); n != nil && n.Attr("Value") != "" {
		doc.Number = n.Attr("Value")
	}
	if n := meta.Find("EnactmentDate"); n != nil {
		doc.EnactmentDate = n.Attr("Date")
	}
	if n := meta.Find("NumberOfProvisions"); n != nil {
		doc.NumberOfProvisions, _ = strconv.Atoi(n.Attr("Value"))
	}

	// Type is authoritative from the id's second path component (I2).
	if parts, ok := domain.SplitID(doc.ID); ok {
		doc.Type = parts.Type
		if doc.Year == 0 {
			doc.Year = parts.YearInt()
		}
		if doc.Number == "" {
			doc.Number = parts.Number
		}
	}

	if ext := root.Attr("RestrictExtent"); ext != "" {
		doc.Extent = domain.ParseExtent(ext)
	} else if n := meta.Find("RestrictExtent"); n != nil {
		doc.Extent = domain.ParseExtent(n.Attr("Value"))
	}

	return doc
}

// provisionNumber derives the number from the element id attribute
// ("section-1", "schedule-2.") after stripping any trailing period.
func provisionNumber(n *Node) string {
	id := strings.TrimSuffix(n.Attr("id"), ".")
	if idx := strings.LastIndexByte(id, '-'); idx != -1 {
		return id[idx+1:]
	}
	// Fall back to the IdURI's trailing segment.
	uri := n.Attr("IdURI")
	if idx := strings.LastIndexByte(uri, '/'); idx != -1 {
		return uri[idx+1:]
	}
	return ""
}

// commentaryRefs collects the ids of commentaries a provision cites.
func commentaryRefs(n *Node) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ref := range n.FindAll("CommentaryRef") {
		id := ref.Attr("Ref")
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// extractCommentaries builds the commentary map keyed by id.
func extractCommentaries(root *Node) map[string]domain.Commentary {
	out := make(map[string]domain.Commentary)
	block := root.Find("Commentaries")
	if block == nil {
		return out
	}
	for _, c := range block.FindAll("Commentary") {
		id := c.Attr("id")
		if id == "" {
			continue
		}
		out[id] = domain.Commentary{
			ID:   id,
			Type: c.Attr("Type"),
			Text: ExtractText(c),
		}
	}
	return out
}
