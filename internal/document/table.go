package document

// Cell is a single table cell.
type Cell struct {
	Text string
	Bold bool
	Size float64
}

// Table is a grid whose column count is fixed by its header row.
type Table struct {
	Header []Cell
	Rows   [][]Cell
}

func (*Table) Kind() BlockKind { return KindTable }

// NewTable creates a table whose columns are the given header cells.
func NewTable(header []Cell) *Table {
	return &Table{Header: header}
}

// Columns returns the column count.
func (t *Table) Columns() int {
	return len(t.Header)
}

// AddRow appends a row, filling cells by position. Cells beyond the
// column count are dropped and missing trailing cells are left empty.
func (t *Table) AddRow(cells []Cell) {
	row := make([]Cell, t.Columns())
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}
