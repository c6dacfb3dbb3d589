// Package source extracts text from supporting attachments (code dumps,
// error logs, email threads) so it can be folded into a generation
// prompt. It also reads rendered documents back into an outline.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/techspec/internal/doctree"
)

// ErrUnsupported is returned for attachment types with no parser.
var ErrUnsupported = errors.New("unsupported attachment type")

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions this service can read.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".log":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".eml":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".log", ".eml":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Attachment is the extracted text of one supporting file.
type Attachment struct {
	Name string
	Text string
}

// Extractor holds extraction settings shared across attachments.
type Extractor struct {
	// PDFFallbackPdftotext retries unreadable PDFs with poppler's pdftotext.
	PDFFallbackPdftotext bool
}

// Extract parses data with the default settings.
func Extract(filename string, data []byte) (Attachment, error) {
	return Extractor{}.Extract(filename, data)
}

// Extract parses data according to the filename's extension and returns
// its flattened text.
func (e Extractor) Extract(filename string, data []byte) (Attachment, error) {
	p, err := ForFile(filename)
	if err != nil {
		return Attachment{}, err
	}
	if pdf, ok := p.(*PDFParser); ok {
		pdf.FallbackPdftotext = e.PDFFallbackPdftotext
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return Attachment{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	return Attachment{Name: filename, Text: tree.PlainText()}, nil
}

func trimExt(filename string, exts ...string) string {
	base := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}
