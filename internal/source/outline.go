package source

import (
	"strings"

	"github.com/dgallion1/techspec/internal/doctree"
)

// outline nests sections by heading level as a document is walked and
// collects body text under the innermost open section.
type outline struct {
	root  *doctree.DocNode
	stack []outlineEntry
	text  strings.Builder
}

type outlineEntry struct {
	node  *doctree.DocNode
	level int
}

func newOutline(title string) *outline {
	root := &doctree.DocNode{Title: title}
	return &outline{root: root, stack: []outlineEntry{{node: root, level: 0}}}
}

// heading opens a section at level, closing any open sections at the
// same or a deeper level.
func (o *outline) heading(level int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineEntry{node: node, level: level})
}

// paragraph queues body text for the current section.
func (o *outline) paragraph(t string) {
	if t == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(t)
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.text.String())
	o.text.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// finish moves the collected sections into tree. Text seen before the
// first heading becomes a leading untitled child.
func (o *outline) finish(tree *doctree.DocTree) {
	o.flush()
	tree.Children = o.root.Children
	if o.root.Text != "" {
		tree.Children = append([]*doctree.DocNode{{Text: o.root.Text}}, tree.Children...)
	}
}
