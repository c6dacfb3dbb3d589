package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/techspec/internal/doctree"
)

// csvBatchSize is the number of data rows grouped into one node.
const csvBatchSize = 20

// CSVParser handles CSV exports such as object lists or change logs.
// Rows are rendered as "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: trimExt(filename, ".csv")}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	rows := records[1:]
	for start := 0; start < len(rows); start += csvBatchSize {
		end := min(start+csvBatchSize, len(rows))

		var sb strings.Builder
		for _, row := range rows[start:end] {
			pairs := make([]string, len(row))
			for j, cell := range row {
				if j < len(headers) {
					pairs[j] = headers[j] + ": " + cell
				} else {
					pairs[j] = cell
				}
			}
			sb.WriteString(strings.Join(pairs, ", "))
			sb.WriteString("\n")
		}

		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", start+2, end+1), // 1-indexed, header is row 1
			Text:  strings.TrimRight(sb.String(), "\n"),
		})
	}

	return tree, nil
}
