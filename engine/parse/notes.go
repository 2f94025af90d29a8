package parse

import (
	"fmt"
	"strings"

	"github.com/openlex/lexuk/engine/domain"
)

// ParseNotes converts an explanatory-notes XML document into ordered note
// records. Each Para under the notes body becomes one record carrying the
// breadcrumb route of enclosing division headings and a stable order.
func ParseNotes(data []byte, legislationID string) ([]domain.ExplanatoryNote, error) {
	root, err := Decode(data)
	if err != nil {
		return nil, err
	}
	legislationID = domain.NormalizeID(legislationID)

	body := root.Find("EN")
	if body == nil {
		body = root.Find("ExplanatoryNotes")
	}
	if body == nil {
		body = root.Find("Body")
	}
	if body == nil {
		return nil, domain.ErrNoBody
	}

	var notes []domain.ExplanatoryNote
	order := 0
	walkNotes(body, nil, legislationID, &order, &notes)
	return notes, nil
}

func walkNotes(n *Node, route []string, legislationID string, order *int, notes *[]domain.ExplanatoryNote) {
	for _, c := range n.Children {
		switch c.Name {
		case "Division", "P1group":
			next := route
			if t := c.Child("Title"); t != nil {
				heading := t.FlatText()
				if heading != "" {
					next = append(append([]string(nil), route...), heading)
				}
			}
			walkNotes(c, next, legislationID, order, notes)
		case "Para", "P":
			text := ExtractText(c)
			if text == "" {
				continue
			}
			*order++
			note := domain.ExplanatoryNote{
				ID:            fmt.Sprintf("%s/notes/%d", legislationID, *order),
				LegislationID: legislationID,
				Route:         route,
				Order:         *order,
				NoteType:      noteType(route),
				Text:          text,
			}
			note.SectionType, note.SectionNumber = sectionRef(route)
			*notes = append(*notes, note)
		default:
			walkNotes(c, route, legislationID, order, notes)
		}
	}
}

// noteType classifies a note by its outermost heading.
func noteType(route []string) string {
	if len(route) == 0 {
		return "general"
	}
	head := strings.ToLower(route[0])
	switch {
	case strings.Contains(head, "overview"):
		return "overview"
	case strings.Contains(head, "background"):
		return "background"
	case strings.Contains(head, "commentary"):
		return "commentary"
	case strings.Contains(head, "commencement"):
		return "commencement"
	default:
		return "general"
	}
}

// sectionRef extracts a provision reference like "Section 12" or
// "Schedule 3" from the innermost heading.
func sectionRef(route []string) (string, string) {
	for i := len(route) - 1; i >= 0; i-- {
		fields := strings.Fields(route[i])
		if len(fields) < 2 {
			continue
		}
		kind := strings.ToLower(strings.TrimSuffix(fields[0], ":"))
		if kind != "section" && kind != "schedule" && kind != "part" {
			continue
		}
		num := strings.TrimRight(fields[1], ".,:")
		return kind, num
	}
	return "", ""
}
