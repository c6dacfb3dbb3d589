package document

// Emphasis is the inline style of a run.
type Emphasis int

const (
	Plain Emphasis = iota
	Bold
	Italic
)

func (e Emphasis) String() string {
	switch e {
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	}
	return "plain"
}

// Run is a contiguous span of text sharing one emphasis and point size.
type Run struct {
	Text     string
	Emphasis Emphasis
	Size     float64 // Points
}

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

// Hex returns the color as six uppercase hex digits, e.g. "003366".
func (c RGB) Hex() string {
	const digits = "0123456789ABCDEF"
	b := []byte{
		digits[c.R>>4], digits[c.R&0x0f],
		digits[c.G>>4], digits[c.G&0x0f],
		digits[c.B>>4], digits[c.B&0x0f],
	}
	return string(b)
}

// Style holds the global style defaults of a document.
type Style struct {
	BodySize     float64
	HeadingSize  float64
	HeadingColor RGB
}

// DefaultStyle is 12pt body text with 26pt dark-blue headings.
func DefaultStyle() Style {
	return Style{
		BodySize:     12,
		HeadingSize:  26,
		HeadingColor: RGB{R: 0, G: 51, B: 102},
	}
}

// BlockKind identifies the structural type of a block.
type BlockKind int

const (
	KindHeading BlockKind = iota
	KindParagraph
	KindBullet
	KindNumbered
	KindTable
	KindImage
)

func (k BlockKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindBullet:
		return "bullet"
	case KindNumbered:
		return "numbered"
	case KindTable:
		return "table"
	case KindImage:
		return "image"
	}
	return "unknown"
}

// Block is one structural unit of output.
type Block interface {
	Kind() BlockKind
}

// Heading is a bold, colored section title.
type Heading struct {
	Text    string // Visible text, e.g. "2. Scope"
	Ordinal int    // 1-based section number, 0 for unnumbered headings
	Size    float64
	Color   RGB
}

func (*Heading) Kind() BlockKind { return KindHeading }

// Paragraph is a normal body paragraph.
type Paragraph struct {
	Runs []Run
}

func (*Paragraph) Kind() BlockKind { return KindParagraph }

// ListItem is one bulleted or numbered list entry.
type ListItem struct {
	Numbered bool
	Runs     []Run
}

func (l *ListItem) Kind() BlockKind {
	if l.Numbered {
		return KindNumbered
	}
	return KindBullet
}

// Image is a picture scaled to a fixed width.
type Image struct {
	Path     string
	WidthEMU int64 // English Metric Units, 914400 per inch
}

func (*Image) Kind() BlockKind { return KindImage }

// Document is an ordered, append-only sequence of blocks.
type Document struct {
	Style  Style
	Blocks []Block
}

// New returns an empty document using the default style.
func New() *Document {
	return &Document{Style: DefaultStyle()}
}

// Append adds a block to the end of the document.
func (d *Document) Append(b Block) {
	d.Blocks = append(d.Blocks, b)
}

// Count returns the number of blocks of the given kind.
func (d *Document) Count(kind BlockKind) int {
	n := 0
	for _, b := range d.Blocks {
		if b.Kind() == kind {
			n++
		}
	}
	return n
}

// Text returns the concatenated text of a run sequence.
func Text(runs []Run) string {
	n := 0
	for _, r := range runs {
		n += len(r.Text)
	}
	buf := make([]byte, 0, n)
	for _, r := range runs {
		buf = append(buf, r.Text...)
	}
	return string(buf)
}
