package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"finboard/internal/core"
)

// ErrMissingColumns is returned when the header row lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// Table is a header plus data rows keyed by lower cased column name.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads the first sheet of an xlsx file or a whole csv file.
func ReadTable(r io.Reader, format core.FileFormat) (Table, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case core.FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		records, err = cr.ReadAll()
		if err != nil {
			return Table{}, fmt.Errorf("read csv: %w", err)
		}
	case core.FormatXLSX:
		records, err = readXLSX(r)
		if err != nil {
			return Table{}, err
		}
	default:
		return Table{}, fmt.Errorf("unsupported format %q", format)
	}

	if len(records) == 0 {
		return Table{}, fmt.Errorf("file is empty")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return Table{Header: header, Rows: records[1:]}, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// Require checks the header against the columns a kind needs.
func (t Table) Require(cols []string) error {
	var missing []string
	for _, c := range cols {
		if t.index(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

func (t Table) index(col string) int {
	for i, h := range t.Header {
		if h == col {
			return i
		}
	}
	return -1
}

// Value returns the trimmed cell of row for col, or "" when the row is short.
func (t Table) Value(row []string, col string) string {
	i := t.index(col)
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
