package parse

import "strings"

// Markdown-flavored text extraction. The walk strips emphasis wrappers,
// preserves paragraph numbering, renders list items with leading bullets,
// and collapses whitespace inside each paragraph.

// inlineWrappers are formatting elements whose content is inlined as-is.
var inlineWrappers = map[string]bool{
	"Emphasis":       true,
	"Strong":         true,
	"Uppercase":      true,
	"SmallCaps":      true,
	"Superior":       true,
	"Inferior":       true,
	"Citation":       true,
	"CitationSub":    true,
	"InternalLink":   true,
	"ExternalLink":   true,
	"Term":           true,
	"Abbreviation":   true,
	"Acronym":        true,
	"Addition":       true,
	"Substitution":   true,
	"Repeal":         true,
	"CommentaryRef":  false, // reference marker, no text of its own
	"FootnoteRef":    false,
	"MarginNoteRef":  false,
}

// paraLevels are the nested provision paragraph elements. Depth drives the
// numbering style: top level "1.", nested "(a)".
var paraLevels = map[string]bool{
	"P1": true, "P2": true, "P3": true, "P4": true, "P5": true, "P6": true, "P7": true,
}

// ExtractText renders the provision body under n as plain text.
func ExtractText(n *Node) string {
	var paras []string
	walkText(n, 0, &paras)
	out := strings.Join(paras, "\n")
	return strings.TrimSpace(out)
}

func walkText(n *Node, depth int, paras *[]string) {
	for _, c := range n.Children {
		switch {
		case c.Name == "Text":
			if t := inlineText(c); t != "" {
				appendToLast(paras, t)
			}
		case c.Name == "Pnumber":
			num := collapseSpace(flatInline(c))
			if num == "" {
				continue
			}
			if depth <= 1 {
				*paras = append(*paras, num+".")
			} else {
				*paras = append(*paras, "("+num+")")
			}
		case c.Name == "ListItem":
			item := collapseSpace(flatInline(c))
			if item != "" {
				*paras = append(*paras, "- "+item)
			}
		case c.Name == "Title" || c.Name == "TitleBlock" || c.Name == "Number":
			// Headings are captured separately as section titles.
		case paraLevels[c.Name]:
			walkText(c, depth+1, paras)
		default:
			walkText(c, depth, paras)
		}
	}
}

// appendToLast continues the current paragraph when it ends with a number
// marker, otherwise starts a new one.
func appendToLast(paras *[]string, t string) {
	if len(*paras) > 0 {
		last := (*paras)[len(*paras)-1]
		if strings.HasSuffix(last, ".") && len(last) <= 4 || (strings.HasPrefix(last, "(") && strings.HasSuffix(last, ")") && len(last) <= 6) {
			(*paras)[len(*paras)-1] = last + " " + t
			return
		}
	}
	*paras = append(*paras, t)
}

// inlineText renders a Text element with inline wrappers stripped.
func inlineText(n *Node) string {
	return collapseSpace(flatInline(n))
}

// flatInline flattens character data, descending only through inline
// wrapper elements and plain containers.
func flatInline(n *Node) string {
	var b strings.Builder
	var rec func(*Node)
	rec = func(n *Node) {
		b.WriteString(n.Text)
		for _, c := range n.Children {
			if keep, known := inlineWrappers[c.Name]; known && !keep {
				continue
			}
			rec(c)
			b.WriteByte(' ')
		}
	}
	rec(n)
	return b.String()
}
