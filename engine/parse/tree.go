// Package parse converts domain XML from the legislation portal into the
// normalized document/section model. Two dialects are supported: UK CLML
// and the EU-retained variant, selected by the presence of an EURetained
// marker element.
package parse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one element of the parsed XML tree. Namespace prefixes vary
// between portal responses, so matching is by local name only.
type Node struct {
	Name     string
	Attrs    map[string]string
	Children []*Node
	Text     string // character data directly inside this element
}

// Attr returns the attribute value by local name, or "".
func (n *Node) Attr(name string) string {
	return n.Attrs[name]
}

// Find returns the first descendant (depth-first) with the local name.
func (n *Node) Find(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every descendant with the local name, document order.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
		out = append(out, c.FindAll(name)...)
	}
	return out
}

// Child returns the first direct child with the local name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FlatText returns all character data under the node, whitespace-collapsed.
func (n *Node) FlatText() string {
	var b strings.Builder
	n.flatText(&b)
	return collapseSpace(b.String())
}

func (n *Node) flatText(b *strings.Builder) {
	if n.Text != "" {
		b.WriteString(n.Text)
		b.WriteByte(' ')
	}
	for _, c := range n.Children {
		c.flatText(b)
	}
}

// Decode builds the node tree from raw XML.
func Decode(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	root := &Node{Name: "#document", Attrs: map[string]string{}}
	stack := []*Node{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{
				Name:  t.Name.Local,
				Attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				node.Attrs[a.Name.Local] = a.Value
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			cur := stack[len(stack)-1]
			cur.Text += string(t)
		}
	}
	if len(root.Children) == 0 {
		return nil, fmt.Errorf("parse: empty document")
	}
	return root.Children[0], nil
}

// collapseSpace folds runs of whitespace into single spaces and trims.
func collapseSpace(s string) string {
	var b strings.Builder
	space := true
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimRight(b.String(), " ")
}
