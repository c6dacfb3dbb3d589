package docxwriter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dgallion1/techspec/internal/document"
	"github.com/fumiama/go-docx"
)

// Paragraph style names written into the document. Readers such as
// source.DOCXParser use HeadingStyle to rebuild the section outline.
const (
	HeadingStyle = "Heading1"
	BulletStyle  = "ListBullet"
	NumberStyle  = "ListNumber"
)

// List indentation in twips.
const (
	listIndentLeft    = 720
	listIndentHanging = 360
)

// Write serializes doc as a .docx container.
func Write(w io.Writer, doc *document.Document) error {
	f := docx.New().UseTemplate(templateName, docx.DefaultTemplateFilesList, templateFS)

	number := 0
	for _, b := range doc.Blocks {
		if b.Kind() != document.KindNumbered {
			number = 0
		}
		switch blk := b.(type) {
		case *document.Heading:
			writeHeading(f, blk)
		case *document.Paragraph:
			p := f.AddParagraph()
			addRuns(p, blk.Runs)
		case *document.ListItem:
			if blk.Numbered {
				number++
			}
			writeListItem(f, blk, number, doc.Style.BodySize)
		case *document.Table:
			writeTable(f, blk)
		case *document.Image:
			// Unreadable or undecodable pictures are left out.
			_ = writeImage(f, blk)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("pack docx: %w", err)
	}
	return nil
}

// Save writes doc to path, creating or truncating the file.
func Save(path string, doc *document.Document) (err error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := buf.WriteTo(out); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeHeading(f *docx.Docx, h *document.Heading) {
	p := f.AddParagraph().Style(HeadingStyle)
	r := addText(p, h.Text).Bold().Color(h.Color.Hex())
	setSize(r, h.Size)
}

func writeListItem(f *docx.Docx, item *document.ListItem, number int, size float64) {
	p := f.AddParagraph()
	p.Properties = &docx.ParagraphProperties{
		Ind: &docx.Ind{Left: listIndentLeft, Hanging: listIndentHanging},
	}
	lead := "•\t"
	style := BulletStyle
	if item.Numbered {
		lead = strconv.Itoa(number) + ".\t"
		style = NumberStyle
	}
	p.Style(style)
	setSize(p.AddText(lead), size)
	addRuns(p, item.Runs)
}

func writeTable(f *docx.Docx, t *document.Table) {
	cols := t.Columns()
	if cols == 0 {
		return
	}
	tbl := f.AddTable(1+len(t.Rows), cols, 0, nil)
	rows := append([][]document.Cell{t.Header}, t.Rows...)
	for i, row := range rows {
		for j, cell := range row {
			r := addText(tbl.TableRows[i].TableCells[j].AddParagraph(), cell.Text)
			setSize(r, cell.Size)
			if cell.Bold {
				r.Bold()
			}
		}
	}
}

func writeImage(f *docx.Docx, img *document.Image) error {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return err
	}
	p := f.AddParagraph()
	run, err := p.AddInlineDrawing(data)
	if err != nil {
		items := f.Document.Body.Items
		f.Document.Body.Items = items[:len(items)-1]
		return err
	}
	for _, c := range run.Children {
		d, ok := c.(*docx.Drawing)
		if !ok || d.Inline == nil || d.Inline.Extent == nil || d.Inline.Extent.CX == 0 {
			continue
		}
		height := img.WidthEMU * d.Inline.Extent.CY / d.Inline.Extent.CX
		d.Inline.Size(img.WidthEMU, height)
	}
	return nil
}

func addRuns(p *docx.Paragraph, runs []document.Run) {
	for _, run := range runs {
		r := addText(p, run.Text)
		setSize(r, run.Size)
		switch run.Emphasis {
		case document.Bold:
			r.Bold()
		case document.Italic:
			r.Italic()
		}
	}
}

// addText adds a run whose leading and trailing spaces survive in Word.
func addText(p *docx.Paragraph, text string) *docx.Run {
	r := p.AddText(text)
	for _, c := range r.Children {
		if t, ok := c.(*docx.Text); ok {
			t.XMLSpace = "preserve"
		}
	}
	return r
}

// setSize sets the run size in points; Word stores half-points.
func setSize(r *docx.Run, points float64) {
	if points <= 0 {
		return
	}
	hp := strconv.Itoa(int(points*2 + 0.5))
	r.Size(hp).SizeCs(hp)
}
