// Package tabular reads header-first tabular sources (CSV files and Excel
// workbooks) into memory.
package tabular

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is a fully materialized source: a header row and the data rows below it.
type Table struct {
	Source string
	Header []string
	Rows   []Row
}

// Row is one data row. Line is the 1-based position in the source, header included.
type Row struct {
	Line  int
	Cells []string
}

// Cell returns the i-th cell and whether the row extends that far.
func (r Row) Cell(i int) (string, bool) {
	if i < 0 || i >= len(r.Cells) {
		return "", false
	}
	return r.Cells[i], true
}

// ReadFile picks a reader from the file extension. sheet only applies to
// workbooks; empty means the first sheet.
func ReadFile(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(path)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
}
