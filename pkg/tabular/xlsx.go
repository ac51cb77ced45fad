package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads one worksheet using raw cell values, so numbers are not
// rendered through the cell's display format. Cells styled as dates or
// times are the exception: they are read as ISO 8601 text.
func ReadXLSX(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet not found: %s", sheet)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	header, err := cleanHeader(rows[0])
	if err != nil {
		return nil, err
	}

	dates, err := newDateCells(f, sheet)
	if err != nil {
		return nil, err
	}
	t := &Table{Source: path, Header: header}
	for i, cells := range rows[1:] {
		line := i + 2
		for col, v := range cells {
			if cells[col], err = dates.format(line, col+1, v); err != nil {
				return nil, err
			}
		}
		t.Rows = append(t.Rows, Row{Line: line, Cells: cells})
	}
	return t, nil
}

// dateCells decides per style index whether a numeric cell holds a date.
type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool
}

func newDateCells(f *excelize.File, sheet string) (*dateCells, error) {
	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, err
	}
	d := &dateCells{f: f, sheet: sheet, styles: map[int]bool{}}
	if props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d, nil
}

func (d *dateCells) format(row, col int, v string) (string, error) {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < 0 {
		return v, nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	idx, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil {
		return "", err
	}
	isDate, ok := d.styles[idx]
	if !ok {
		// Workbooks without a style table report an invalid index.
		if style, err := d.f.GetStyle(idx); err == nil {
			isDate = isDateStyle(style)
		}
		d.styles[idx] = isDate
	}
	if !isDate {
		return v, nil
	}
	tm, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return v, nil
	}
	switch {
	case serial < 1:
		return tm.Format(time.TimeOnly), nil
	case tm.Hour() == 0 && tm.Minute() == 0 && tm.Second() == 0:
		return tm.Format(time.DateOnly), nil
	default:
		return tm.Format("2006-01-02T15:04:05"), nil
	}
}

func isDateStyle(s *excelize.Style) bool {
	if s.CustomNumFmt != nil {
		return isDateFormatCode(*s.CustomNumFmt)
	}
	n := s.NumFmt
	return (n >= 14 && n <= 22) || (n >= 27 && n <= 36) || (n >= 45 && n <= 47) ||
		(n >= 50 && n <= 58) || (n >= 71 && n <= 81)
}

// isDateFormatCode reports whether a custom number format renders a date or
// time. Quoted literals, escaped characters and bracketed sections such as
// colors are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ydhs")
}
