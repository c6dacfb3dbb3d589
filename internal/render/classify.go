package render

import (
	"regexp"
	"strings"
)

// LineType is the block type a content line is rendered as.
type LineType int

const (
	LineBlank LineType = iota
	LineHeading
	LineBullet
	LineNumbered
	LineTableStart // table row with no table open: opens a table, row is the header
	LineTableRow   // table row appended to the open table
	LineParagraph
)

func (t LineType) String() string {
	switch t {
	case LineBlank:
		return "blank"
	case LineHeading:
		return "heading"
	case LineBullet:
		return "bullet"
	case LineNumbered:
		return "numbered"
	case LineTableStart:
		return "table_start"
	case LineTableRow:
		return "table_row"
	case LineParagraph:
		return "paragraph"
	}
	return "unknown"
}

// ClosesTable reports whether a line of this type closes an open table.
// Blank lines and table rows leave the cursor alone.
func (t LineType) ClosesTable() bool {
	switch t {
	case LineBlank, LineTableStart, LineTableRow:
		return false
	}
	return true
}

// Classification is the decision made for one line.
type Classification struct {
	Type    LineType
	Section Section  // set for LineHeading
	Text    string   // line text with any list prefix removed
	Cells   []string // set for table rows
}

var numberedPrefix = regexp.MustCompile(`^\d+\.\s+`)

// Classify decides how a single line is rendered. The line is trimmed
// first. The result depends only on the line and whether a table is
// currently open; the first matching rule wins.
func Classify(line string, tableOpen bool) Classification {
	line = strings.TrimSpace(line)
	if line == "" {
		return Classification{Type: LineBlank}
	}

	if s, ok := MatchSection(line); ok {
		return Classification{Type: LineHeading, Section: s, Text: line}
	}

	if strings.HasPrefix(line, "* ") {
		return Classification{Type: LineBullet, Text: line[2:]}
	}

	if loc := numberedPrefix.FindStringIndex(line); loc != nil {
		return Classification{Type: LineNumbered, Text: line[loc[1]:]}
	}

	if isTableRow(line) {
		typ := LineTableStart
		if tableOpen {
			typ = LineTableRow
		}
		return Classification{Type: typ, Text: line, Cells: SplitCells(line)}
	}

	return Classification{Type: LineParagraph, Text: line}
}

func isTableRow(line string) bool {
	return strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2
}

// SplitCells strips one leading and one trailing pipe from a table row,
// splits the rest on pipes and trims each cell.
func SplitCells(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}
