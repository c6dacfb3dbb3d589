package doctree

import "strings"

// DocTree is the root of a parsed attachment or rendered document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// PlainText flattens the tree into text, headings on their own lines,
// in document order.
func (t *DocTree) PlainText() string {
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			for _, s := range []string{n.Title, n.Text} {
				if s == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}

// Headings returns every section title in document order.
func (t *DocTree) Headings() []string {
	var out []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Title != "" {
				out = append(out, n.Title)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return out
}
