package render

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/techspec/internal/document"
	"github.com/dgallion1/techspec/internal/docxwriter"
	"github.com/fumiama/imgsz"
)

// DocumentTitle is the fixed, unnumbered opening heading.
const DocumentTitle = "Technical Specification"

// DefaultOutputName is used when the caller gives no output path.
const DefaultOutputName = "SAP_Documentation.docx"

// ImageWidthEMU is the fixed picture width: 5 inches.
const ImageWidthEMU int64 = 5 * 914400

// ErrWrite reports that the rendered document could not be saved.
var ErrWrite = errors.New("write document")

// Input is everything the renderer needs for one document.
type Input struct {
	Title      string
	PreparedBy string
	Content    string
	ImagePaths []string
}

// renderer carries the state of a single render call.
type renderer struct {
	doc   *document.Document
	table *document.Table // open table accepting rows, nil when closed
}

// Render builds the document for in in a single top-to-bottom pass over
// the content lines. It never fails: malformed markup, mismatched table
// rows and missing or unreadable images degrade to best-effort output.
func Render(in Input) *document.Document {
	r := &renderer{doc: document.New()}

	r.heading(DocumentTitle, 0)
	r.metadata("Title: " + in.Title)
	r.metadata("Prepared By: " + in.PreparedBy)

	for _, line := range strings.Split(normalizeNewlines(in.Content), "\n") {
		r.line(line)
	}

	for _, path := range in.ImagePaths {
		if imageUsable(path) {
			r.doc.Append(&document.Image{Path: path, WidthEMU: ImageWidthEMU})
		}
	}
	return r.doc
}

// RenderFile renders in and saves it as a .docx file at outPath,
// returning the path written. Save failures wrap ErrWrite.
func RenderFile(in Input, outPath string) (string, error) {
	return Save(Render(in), outPath)
}

// Save writes an already rendered document to outPath.
func Save(doc *document.Document, outPath string) (string, error) {
	if outPath == "" {
		outPath = DefaultOutputName
	}
	if err := docxwriter.Save(outPath, doc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return outPath, nil
}

func (r *renderer) line(raw string) {
	c := Classify(raw, r.table != nil)
	if c.Type.ClosesTable() {
		r.table = nil
	}

	switch c.Type {
	case LineBlank:
	case LineHeading:
		r.heading(c.Section.Name, c.Section.Ordinal)
	case LineBullet:
		r.listItem(c.Text, false)
	case LineNumbered:
		r.listItem(c.Text, true)
	case LineTableStart, LineTableRow:
		r.tableRow(c.Cells)
	case LineParagraph:
		r.doc.Append(&document.Paragraph{Runs: FormatInline(c.Text, r.doc.Style.BodySize)})
	}
}

func (r *renderer) heading(name string, ordinal int) {
	text := name
	if ordinal > 0 {
		text = Section{Name: name, Ordinal: ordinal}.Title()
	}
	r.doc.Append(&document.Heading{
		Text:    text,
		Ordinal: ordinal,
		Size:    r.doc.Style.HeadingSize,
		Color:   r.doc.Style.HeadingColor,
	})
	r.table = nil
}

// metadata writes a literal line as a single plain run; markup in the
// caller's title or author is not interpreted.
func (r *renderer) metadata(text string) {
	r.doc.Append(&document.Paragraph{Runs: []document.Run{
		{Text: text, Emphasis: document.Plain, Size: r.doc.Style.BodySize},
	}})
	r.table = nil
}

func (r *renderer) listItem(text string, numbered bool) {
	r.doc.Append(&document.ListItem{
		Numbered: numbered,
		Runs:     FormatInline(text, r.doc.Style.BodySize),
	})
}

func (r *renderer) tableRow(texts []string) {
	size := r.doc.Style.BodySize
	cells := make([]document.Cell, len(texts))
	for i, t := range texts {
		cells[i] = document.Cell{Text: t, Bold: r.table == nil, Size: size}
	}
	if r.table == nil {
		r.table = document.NewTable(cells)
		r.doc.Append(r.table)
		return
	}
	r.table.AddRow(cells)
}

// imageUsable reports whether path is a regular file holding a picture
// the writer can embed (jpeg, png, gif or webp).
func imageUsable(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, _, err = imgsz.DecodeSize(f)
	return err == nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
