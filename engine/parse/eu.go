package parse

import (
	"log/slog"
	"strings"

	"github.com/openlex/lexuk/engine/domain"
)

// parseEU handles retained EU instruments. The body is an EUBody of
// Division elements; annexes play the role schedules play in UK acts.
func parseEU(root *Node, log *slog.Logger) (*Parsed, error) {
	doc := extractDocument(root)

	body := root.Find("EUBody")
	if body == nil {
		body = root.Find("Body")
	}
	if body == nil {
		return nil, domain.ErrNoBody
	}

	out := &Parsed{
		Document:     doc,
		Commentaries: extractCommentaries(root),
	}

	for _, div := range body.FindAll("Division") {
		if div.Attr("IdURI") == "" {
			continue
		}
		title := divisionTitle(div)
		pt := domain.ProvisionSection
		if isAnnex(div) {
			pt = domain.ProvisionSchedule
		}
		sec := provisionFromNode(div, doc, pt, title, div.Attr("RestrictExtent"), doc.Extent)
		if sec.Text == "" {
			log.Debug("skipping empty division", "id", sec.ID)
			continue
		}
		if pt == domain.ProvisionSchedule {
			out.Schedules = append(out.Schedules, sec)
		} else {
			out.Sections = append(out.Sections, sec)
		}
	}

	// Some retained instruments use P1 provisions instead of divisions.
	if len(out.Sections) > 0 || len(out.Schedules) > 0 {
		return out, nil
	}
	for _, p1 := range body.FindAll("P1") {
		if p1.Attr("IdURI") == "" {
			continue
		}
		sec := provisionFromNode(p1, doc, domain.ProvisionSection, "", p1.Attr("RestrictExtent"), doc.Extent)
		if sec.Text != "" {
			out.Sections = append(out.Sections, sec)
		}
	}

	return out, nil
}

func divisionTitle(div *Node) string {
	var parts []string
	if n := div.Child("Number"); n != nil {
		parts = append(parts, n.FlatText())
	}
	if n := div.Child("Title"); n != nil {
		parts = append(parts, n.FlatText())
	}
	return strings.Join(parts, " ")
}

// isAnnex reports whether a division is an annex (stored as a schedule).
func isAnnex(div *Node) bool {
	id := strings.ToLower(div.Attr("id"))
	if strings.HasPrefix(id, "annex") || strings.HasPrefix(id, "schedule") {
		return true
	}
	if n := div.Child("Number"); n != nil {
		return strings.HasPrefix(strings.ToUpper(n.FlatText()), "ANNEX")
	}
	return false
}
