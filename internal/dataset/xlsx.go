package dataset

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const defaultSheetName = "Sheet1"

// DecodeXLSX reads the first sheet of a workbook. The first row is the header.
// Cells are read as their displayed string values; the original cells are
// kept so EncodeXLSX can write unchanged ones back with their type.
func DecodeXLSX(r io.Reader) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read xlsx")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	return fromWorkbook(f)
}

func openXLSX(path string) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	return fromWorkbook(f)
}

func fromWorkbook(f *xlsx.File) (*Dataset, error) {
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	var (
		rows  [][]string
		cells [][]*xlsx.Cell
	)
	for _, row := range sheet.Rows {
		rows = append(rows, rowToStrings(row))
		if row == nil {
			cells = append(cells, nil)
			continue
		}
		cells = append(cells, row.Cells)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("dataset: sheet %q has no header row", sheet.Name)
	}

	d, err := New(rows[0], rows[1:])
	if err != nil {
		return nil, err
	}
	d.SheetName = sheet.Name
	d.sheetCells = cells
	return d, nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.String()
	}
	return cells
}

// EncodeXLSX writes the dataset as a single-sheet workbook. A cell whose
// value still matches the workbook it was loaded from is written back as
// that cell, keeping its type, number format, formula and style. Every other
// cell is a string.
func EncodeXLSX(w io.Writer, d *Dataset) error {
	f := xlsx.NewFile()
	name := d.SheetName
	if name == "" {
		name = defaultSheetName
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		// Sheet names from other tools can break xlsx naming rules.
		sheet, err = f.AddSheet(defaultSheetName)
		if err != nil {
			return eris.Wrap(err, "dataset: add sheet")
		}
	}

	writeRow(sheet.AddRow(), d.Header, d.sourceCells(-1))
	for i, r := range d.Rows {
		writeRow(sheet.AddRow(), r, d.sourceCells(i))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "dataset: write xlsx")
	}
	return nil
}

func writeRow(row *xlsx.Row, values []string, source []*xlsx.Cell) {
	for j, v := range values {
		cell := row.AddCell()
		if j < len(source) && source[j] != nil && source[j].String() == v {
			*cell = *source[j]
			cell.Row = row
			continue
		}
		cell.SetString(v)
	}
}
