// Package export renders a show's cue sheet to PDF and DOCX.
package export

import (
	"errors"
	"time"

	"cuemesh/api/internal/cue"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Request contains parameters for an export operation
type Request struct {
	ShowID           string
	Format           Format
	FilterDepartment string // empty = all departments
	IncludeEvents    bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// CueRow is one line of the exported cue sheet. Targets is the rendered
// label for the sheet; TargetSet is the normalized shape and is what the
// department filter resolves against.
type CueRow struct {
	Type      string
	Title     string
	Details   string
	Targets   string
	TargetSet cue.Targets
	Priority  string
	Status    string
	GoAt      *time.Time
	AckCount  int
	ConfCount int
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
)
