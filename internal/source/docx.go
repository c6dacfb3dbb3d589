package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/techspec/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files: earlier specifications attached as
// context, and rendered output read back for review.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	tree := &doctree.DocTree{Title: trimExt(filename, ".docx")}
	o := newOutline(tree.Title)

	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := paragraphText(it)
			if level := docxHeadingLevel(it); level > 0 && text != "" {
				o.heading(level, text)
				continue
			}
			o.paragraph(text)
		case *docx.Table:
			o.paragraph(tableText(it))
		}
	}
	o.finish(tree)
	return tree, nil
}

// docxHeadingLevel accepts both style IDs ("Heading2") and the display
// names Word writes for them ("heading 2").
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	level := int(style[len(style)-1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch x := rc.(type) {
			case *docx.Text:
				buf.WriteString(x.Text)
			case *docx.Tab:
				buf.WriteByte('\t')
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// tableText renders each row on its own line as "| a | b |".
func tableText(tbl *docx.Table) string {
	var lines []string
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := paragraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}
