package render

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/techspec/internal/document"
)

// body returns the blocks after the fixed opening heading and the two
// metadata paragraphs.
func body(t *testing.T, doc *document.Document) []document.Block {
	t.Helper()
	if len(doc.Blocks) < 3 {
		t.Fatalf("expected at least 3 preamble blocks, got %d", len(doc.Blocks))
	}
	return doc.Blocks[3:]
}

func TestRender_Preamble(t *testing.T) {
	doc := Render(Input{Title: "Fix **posting** job", PreparedBy: "R. Analyst"})

	if len(doc.Blocks) != 3 {
		t.Fatalf("expected only the preamble for empty content, got %d blocks", len(doc.Blocks))
	}

	h, ok := doc.Blocks[0].(*document.Heading)
	if !ok {
		t.Fatalf("expected heading first, got %T", doc.Blocks[0])
	}
	if h.Text != DocumentTitle || h.Ordinal != 0 {
		t.Errorf("expected unnumbered %q, got %q (ordinal %d)", DocumentTitle, h.Text, h.Ordinal)
	}
	if h.Size != 26 || h.Color.Hex() != "003366" {
		t.Errorf("expected 26pt 003366 heading, got %vpt %s", h.Size, h.Color.Hex())
	}

	title := doc.Blocks[1].(*document.Paragraph)
	if len(title.Runs) != 1 || title.Runs[0].Text != "Title: Fix **posting** job" {
		t.Errorf("expected literal title paragraph, got %+v", title.Runs)
	}
	author := doc.Blocks[2].(*document.Paragraph)
	if document.Text(author.Runs) != "Prepared By: R. Analyst" || author.Runs[0].Size != 12 {
		t.Errorf("unexpected author paragraph: %+v", author.Runs)
	}
}

func TestRender_TableThenHeading(t *testing.T) {
	doc := Render(Input{Content: "| A | B |\n| 1 | 2 |\nPurpose"})
	blocks := body(t, doc)
	if len(blocks) != 2 {
		t.Fatalf("expected table + heading, got %d blocks", len(blocks))
	}

	tbl, ok := blocks[0].(*document.Table)
	if !ok {
		t.Fatalf("expected table, got %T", blocks[0])
	}
	if tbl.Columns() != 2 || tbl.Header[0].Text != "A" || tbl.Header[1].Text != "B" {
		t.Errorf("unexpected header %+v", tbl.Header)
	}
	if !tbl.Header[0].Bold || tbl.Header[0].Size != 12 {
		t.Errorf("expected bold 12pt header cells, got %+v", tbl.Header[0])
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][0].Text != "1" || tbl.Rows[0][1].Text != "2" {
		t.Errorf("unexpected rows %+v", tbl.Rows)
	}
	if tbl.Rows[0][0].Bold {
		t.Error("expected data cells not bold")
	}

	h, ok := blocks[1].(*document.Heading)
	if !ok || h.Text != "1. Purpose" {
		t.Fatalf("expected heading %q, got %+v", "1. Purpose", blocks[1])
	}
}

func TestRender_TableCursorLifecycle(t *testing.T) {
	content := strings.Join([]string{
		"| A | B |",
		"",
		"| 1 | 2 |", // blank line did not close the table
		"prose closes it",
		"| C | D |", // new table
		"* bullet closes it",
		"| E |",
	}, "\n")
	doc := Render(Input{Content: content})

	if got := doc.Count(document.KindTable); got != 3 {
		t.Fatalf("expected 3 tables, got %d", got)
	}
	var tables []*document.Table
	for _, b := range doc.Blocks {
		if tbl, ok := b.(*document.Table); ok {
			tables = append(tables, tbl)
		}
	}
	if len(tables[0].Rows) != 1 {
		t.Errorf("expected first table to keep its row across the blank line, got %d rows", len(tables[0].Rows))
	}
	if tables[1].Header[0].Text != "C" || len(tables[1].Rows) != 0 {
		t.Errorf("expected second table to start fresh, got %+v", tables[1])
	}
	if tables[2].Columns() != 1 {
		t.Errorf("expected 1 column, got %d", tables[2].Columns())
	}
}

func TestRender_MismatchedTableRows(t *testing.T) {
	doc := Render(Input{Content: "| A | B |\n| 1 | 2 | 3 |\n| only |"})
	tbl := body(t, doc)[0].(*document.Table)

	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if len(tbl.Rows[0]) != 2 || tbl.Rows[0][1].Text != "2" {
		t.Errorf("expected excess cell dropped, got %+v", tbl.Rows[0])
	}
	if len(tbl.Rows[1]) != 2 || tbl.Rows[1][0].Text != "only" || tbl.Rows[1][1].Text != "" {
		t.Errorf("expected missing cell left blank, got %+v", tbl.Rows[1])
	}
}

func TestRender_DelimiterRowIsData(t *testing.T) {
	doc := Render(Input{Content: "| A | B |\n|---|---|\n| 1 | 2 |"})
	tbl := body(t, doc)[0].(*document.Table)
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][0].Text != "---" || tbl.Rows[0][1].Text != "---" {
		t.Errorf("expected separator kept as a row, got %+v", tbl.Rows[0])
	}
	if tbl.Rows[1][0].Text != "1" || tbl.Rows[1][1].Text != "2" {
		t.Errorf("unexpected second row %+v", tbl.Rows[1])
	}
}

func TestRender_BulletWithEmphasis(t *testing.T) {
	blocks := body(t, Render(Input{Content: "* **bold** item"}))
	item, ok := blocks[0].(*document.ListItem)
	if !ok || item.Numbered {
		t.Fatalf("expected bullet item, got %+v", blocks[0])
	}
	if len(item.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(item.Runs))
	}
	if item.Runs[0].Text != "bold" || item.Runs[0].Emphasis != document.Bold {
		t.Errorf("expected bold %q, got %+v", "bold", item.Runs[0])
	}
	if item.Runs[1].Text != " item" || item.Runs[1].Emphasis != document.Plain {
		t.Errorf("expected plain %q, got %+v", " item", item.Runs[1])
	}
}

func TestRender_NumberedItems(t *testing.T) {
	blocks := body(t, Render(Input{Content: "1. first\n2. second"}))
	if len(blocks) != 2 {
		t.Fatalf("expected 2 items, got %d", len(blocks))
	}
	for i, want := range []string{"first", "second"} {
		item, ok := blocks[i].(*document.ListItem)
		if !ok || !item.Numbered {
			t.Fatalf("expected numbered item, got %+v", blocks[i])
		}
		if got := document.Text(item.Runs); got != want {
			t.Errorf("item[%d]: expected %q, got %q", i, want, got)
		}
	}
}

func TestRender_SubstringHeadingMatch(t *testing.T) {
	blocks := body(t, Render(Input{Content: "See scope of work below"}))
	h, ok := blocks[0].(*document.Heading)
	if !ok {
		t.Fatalf("expected heading, got %T", blocks[0])
	}
	if h.Text != "2. Scope" || h.Ordinal != 2 {
		t.Errorf("expected %q, got %q", "2. Scope", h.Text)
	}
}

func TestRender_PlainLineRoundTrip(t *testing.T) {
	blocks := body(t, Render(Input{Content: "   The posting run completes nightly.   "}))
	p, ok := blocks[0].(*document.Paragraph)
	if !ok {
		t.Fatalf("expected paragraph, got %T", blocks[0])
	}
	if len(p.Runs) != 1 || p.Runs[0].Text != "The posting run completes nightly." || p.Runs[0].Emphasis != document.Plain {
		t.Errorf("expected one plain run equal to the trimmed line, got %+v", p.Runs)
	}
}

func TestRender_CRLFContent(t *testing.T) {
	blocks := body(t, Render(Input{Content: "Purpose\r\nfirst line\r\n"}))
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}

func writeImage(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode image: %v", err)
	}
}

func TestRender_ImagesSkipMissing(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "diagram.png")
	writeImage(t, valid)
	notImage := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(notImage, []byte("not a picture"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := Render(Input{
		Content:    "Purpose",
		ImagePaths: []string{filepath.Join(dir, "nope.png"), valid, dir, notImage},
	})
	if got := doc.Count(document.KindImage); got != 1 {
		t.Fatalf("expected exactly 1 image block, got %d", got)
	}
	img := doc.Blocks[len(doc.Blocks)-1].(*document.Image)
	if img.Path != valid || img.WidthEMU != ImageWidthEMU {
		t.Errorf("unexpected image block %+v", img)
	}
}

func TestRender_TruncatedImageSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cut.png")
	// PNG signature without an IHDR chunk.
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := Render(Input{ImagePaths: []string{path}})
	if got := doc.Count(document.KindImage); got != 0 {
		t.Errorf("expected undecodable image to be skipped, got %d blocks", got)
	}
}

func TestRenderFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spec.docx")
	path, err := RenderFile(Input{Title: "T", PreparedBy: "A", Content: "Purpose\n* item"}, out)
	if err != nil {
		t.Fatalf("RenderFile: %v", err)
	}
	if path != out {
		t.Errorf("expected path %q, got %q", out, path)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty output file, err=%v", err)
	}
}

func TestRenderFile_WriteFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "no", "such", "dir", "spec.docx")
	_, err := RenderFile(Input{Title: "T", PreparedBy: "A"}, out)
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	if !errors.Is(err, ErrWrite) {
		t.Errorf("expected ErrWrite, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected underlying not-exist error to be preserved, got %v", err)
	}
}
