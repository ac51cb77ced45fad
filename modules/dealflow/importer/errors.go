package importer

import (
	"fmt"
	"strings"
)

// ConfigError reports a column layout that does not fit the source header.
// It is raised before anything is written.
type ConfigError struct {
	Missing    []string
	Duplicates []string
	Unknown    []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, "ambiguous columns: "+strings.Join(e.Duplicates, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown fields: "+strings.Join(e.Unknown, ", "))
	}
	return "column layout does not match source: " + strings.Join(parts, "; ")
}

func (e *ConfigError) empty() bool {
	return len(e.Missing) == 0 && len(e.Duplicates) == 0 && len(e.Unknown) == 0
}

// SkipError explains why a source row produced no record.
type SkipError struct {
	Index  int    `json:"index"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("row %d (line %d) skipped: %s", e.Index, e.Line, e.Reason)
}

// RunError aborts a run. Manifest lists the work committed before the failure.
type RunError struct {
	State    State
	RowIndex int
	Line     int
	Err      error
	Manifest *Manifest
}

func (e *RunError) Error() string {
	if e.RowIndex >= 0 {
		return fmt.Sprintf("import aborted while %s at row %d (line %d): %v", e.State, e.RowIndex, e.Line, e.Err)
	}
	return fmt.Sprintf("import aborted while %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
