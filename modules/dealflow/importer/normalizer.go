package importer

import (
	"math"
	"strconv"
	"strings"

	"github.com/iota-uz/dealflow/modules/dealflow/domain/aggregates/fund"
	"github.com/iota-uz/dealflow/pkg/tabular"
)

const (
	ReasonMissingOrganizationColumn = "missing organization column"
	ReasonBlankOrganization         = "blank organization name"
)

// sentinels are placeholder cells that mean "no value". Keys are lower-case.
var sentinels = map[string]struct{}{
	"nan":  {},
	"n/a":  {},
	"n.a.": {},
	"na":   {},
	"-":    {},
	"--":   {},
	"null": {},
	"none": {},
	"#n/a": {},
}

// Record is a normalized source row ready to be written.
type Record struct {
	Index        int
	Line         int
	Organization string
	Attributes   map[fund.Field]fund.Value
	// Warnings counts numeric cells that did not parse and were dropped.
	Warnings int
}

type Normalizer struct {
	binding *Binding
}

func NewNormalizer(b *Binding) *Normalizer {
	return &Normalizer{binding: b}
}

// Normalize turns one row into a Record or a *SkipError.
func (n *Normalizer) Normalize(index int, row tabular.Row) (Record, error) {
	skip := func(reason string) (Record, error) {
		return Record{}, &SkipError{Index: index, Line: row.Line, Reason: reason}
	}

	raw, ok := row.Cell(n.binding.organization)
	if !ok {
		return skip(ReasonMissingOrganizationColumn)
	}
	name, present := cleanCell(raw)
	if !present {
		return skip(ReasonBlankOrganization)
	}

	rec := Record{
		Index:        index,
		Line:         row.Line,
		Organization: name,
		Attributes:   make(map[fund.Field]fund.Value, len(n.binding.columns)),
	}
	for _, col := range n.binding.columns {
		raw, ok := row.Cell(col.index)
		if !ok {
			continue
		}
		s, present := cleanCell(raw)
		if !present {
			continue
		}
		if col.kind == fund.KindText {
			rec.Attributes[col.field] = fund.Text(s)
			continue
		}
		f, ok := parseNumber(s)
		if !ok {
			rec.Warnings++
			continue
		}
		rec.Attributes[col.field] = fund.Number(f)
	}
	for _, f := range n.binding.required {
		if _, ok := rec.Attributes[f]; !ok {
			return skip("missing required field " + string(f))
		}
	}
	return rec, nil
}

// cleanCell trims s and reports whether anything meaningful is left.
func cleanCell(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, ok := sentinels[strings.ToLower(s)]; ok {
		return "", false
	}
	return s, true
}

// parseNumber accepts grouping commas and a trailing percent or multiple sign.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if t := strings.TrimRight(s, "%xX"); len(s)-len(t) <= 1 {
		s = t
	}
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
