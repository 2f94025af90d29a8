package parse

import (
	"log/slog"

	"github.com/openlex/lexuk/engine/domain"
)

// parseUK handles the standard CLML dialect: Primary/Secondary body with
// P1group provisions and a Schedules block.
func parseUK(root *Node, log *slog.Logger) (*Parsed, error) {
	doc := extractDocument(root)

	body := root.Find("Body")
	if body == nil {
		return nil, domain.ErrNoBody
	}

	out := &Parsed{
		Document:     doc,
		Commentaries: extractCommentaries(root),
	}

	defaultExtent := doc.Extent

	// Citable provisions carry an IdURI attribute. Nested subparagraphs are
	// walked for text but only citable elements become Section records.
	for _, group := range body.FindAll("P1group") {
		groupTitle := ""
		if t := group.Child("Title"); t != nil {
			groupTitle = t.FlatText()
		}
		groupExtent := group.Attr("RestrictExtent")

		for _, p1 := range group.FindAll("P1") {
			if p1.Attr("IdURI") == "" {
				continue
			}
			sec := provisionFromNode(p1, doc, domain.ProvisionSection, groupTitle, groupExtent, defaultExtent)
			if sec.Text == "" {
				log.Debug("skipping empty provision", "id", sec.ID)
				continue
			}
			out.Sections = append(out.Sections, sec)
		}
	}

	if scheds := root.Find("Schedules"); scheds != nil {
		for _, sch := range scheds.FindAll("Schedule") {
			if sch.Attr("IdURI") == "" {
				continue
			}
			title := ""
			if tb := sch.Find("TitleBlock"); tb != nil {
				if t := tb.Find("Title"); t != nil {
					title = t.FlatText()
				}
			}
			sec := provisionFromNode(sch, doc, domain.ProvisionSchedule, title, sch.Attr("RestrictExtent"), defaultExtent)
			if sec.Text == "" {
				continue
			}
			out.Schedules = append(out.Schedules, sec)
		}
	}

	return out, nil
}

// provisionFromNode builds a Section record from a citable element.
func provisionFromNode(n *Node, doc domain.Document, pt domain.ProvisionType, title, extentCode string, defaultExtent []domain.Extent) domain.Section {
	number := provisionNumber(n)
	id := domain.NormalizeID(n.Attr("IdURI"))
	if id == "" && number != "" {
		id = domain.SectionID(doc.ID, pt, number)
	}

	extent := defaultExtent
	if extentCode != "" {
		extent = domain.ParseExtent(extentCode)
	}

	uri := n.Attr("DocumentURI")
	if uri == "" {
		uri = n.Attr("IdURI")
	}

	return domain.Section{
		ID:            id,
		URI:           uri,
		LegislationID: doc.ID,
		Title:         title,
		Text:          ExtractText(n),
		Extent:        extent,
		ProvisionType: pt,
		Number:        number,
		CommentaryIDs: commentaryRefs(n),
	}
}
