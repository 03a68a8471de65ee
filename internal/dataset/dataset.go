// Package dataset holds tabular address data in memory and moves it to and
// from CSV and XLSX files.
package dataset

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format identifies an on-disk encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("dataset: unsupported file extension %q", filepath.Ext(path))
	}
}

// Dataset is an ordered header plus ordered rows of string cells. The row
// index is the row's identity; every row has exactly len(Header) cells.
type Dataset struct {
	Header []string
	Rows   [][]string

	// SheetName is the XLSX sheet the data came from, reused on write.
	SheetName string
	// BOM records a UTF-8 byte order mark on CSV input so it is written back.
	BOM bool
	// Charset is the CSV text encoding; empty means UTF-8.
	Charset string

	index map[string]int
	// sheetCells holds the workbook cells the data was read from, header row
	// first, so untouched cells keep their type and format on write.
	sheetCells [][]*xlsx.Cell
}

// New builds a Dataset from a header and rows. Column names are trimmed of
// surrounding whitespace. The width is the wider of the named header and the
// widest row: cells past the last named column become unnamed columns, and
// short rows are padded with empty cells. Duplicate column names and headers
// with no named column are rejected.
func New(header []string, rows [][]string) (*Dataset, error) {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}
	named := names[:usedWidth(names)]
	if len(named) == 0 {
		return nil, eris.New("dataset: header row has no column names")
	}

	width := len(named)
	for _, row := range rows {
		if w := usedWidth(row); w > width {
			width = w
		}
	}
	header = make([]string, width)
	copy(header, named)

	idx := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if prev, dup := idx[name]; dup {
			return nil, eris.Errorf("dataset: duplicate column %q at positions %d and %d", name, prev+1, i+1)
		}
		idx[name] = i
	}

	d := &Dataset{
		Header: header,
		Rows:   make([][]string, len(rows)),
		index:  idx,
	}
	for i, row := range rows {
		d.Rows[i] = fitRow(row, len(header))
	}
	return d, nil
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether name is a column.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// EnsureColumn appends name after every existing column, with an empty cell
// in every row, when it is not already present. Existing values are never touched. It reports whether
// the column was added.
func (d *Dataset) EnsureColumn(name string) bool {
	if d.HasColumn(name) {
		return false
	}
	d.index[name] = len(d.Header)
	d.Header = append(d.Header, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], "")
	}
	return true
}

// Get returns the cell at row/column, or "" when either is missing.
func (d *Dataset) Get(row int, column string) string {
	col, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.Rows) {
		return ""
	}
	return d.Rows[row][col]
}

// Set writes the cell at row/column.
func (d *Dataset) Set(row int, column, value string) error {
	col, ok := d.index[column]
	if !ok {
		return eris.Errorf("dataset: unknown column %q", column)
	}
	if row < 0 || row >= len(d.Rows) {
		return eris.Errorf("dataset: row %d out of range [0,%d)", row, len(d.Rows))
	}
	d.Rows[row][col] = value
	return nil
}

// fitRow pads row to width. Only empty trailing cells are ever dropped since
// width covers every non-empty cell.
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// usedWidth is the row length without trailing empty cells.
func usedWidth(row []string) int {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return end
}

// sourceCells returns the workbook cells of data row i, or of the header
// when i is -1.
func (d *Dataset) sourceCells(i int) []*xlsx.Cell {
	if i+1 < 0 || i+1 >= len(d.sheetCells) {
		return nil
	}
	return d.sheetCells[i+1]
}
