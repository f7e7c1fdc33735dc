// Package rowfile reads tabular import files (CSV and XLSX) into a header
// plus string rows, for the bulk property import path.
package rowfile

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a parsed import file: one header row and zero or more data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses the file at path, dispatching on extension: .xlsx is read as a
// workbook (first sheet), everything else as CSV.
func Read(path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rowfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

// ReadCSV parses CSV content with a header line. Rows may have variable
// field counts; fields are trimmed.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("rowfile: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "rowfile: read header")
	}

	table := &Table{Header: trimAll(header)}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "rowfile: read row")
		}
		record = trimAll(record)
		if isEmpty(record) {
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// ReadXLSX parses the first sheet of a workbook. The first row is the header.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rowfile: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("rowfile: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("rowfile: %s first sheet is empty", path)
	}

	table := &Table{Header: trimAll(rowToStrings(sheet.Rows[0]))}
	for _, row := range sheet.Rows[1:] {
		cells := trimAll(rowToStrings(row))
		if isEmpty(cells) {
			continue
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

// Index maps normalized column names (lowercased, spaces to underscores) to
// positions.
func (t *Table) Index() map[string]int {
	cols := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		name = strings.ToLower(strings.TrimSpace(name))
		name = strings.ReplaceAll(name, " ", "_")
		cols[name] = i
	}
	return cols
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func trimAll(fields []string) []string {
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func isEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}
