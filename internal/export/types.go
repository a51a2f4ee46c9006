// Package export produces lead list exports in CSV and XLSX formats.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Scope describes which slice of the lead list is being exported.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeFiltered Scope = "filtered"
)

// Request contains parameters for an export operation
type Request struct {
	TenantID string
	Format   Format
	Scope    Scope
	Status   string
	Tier     string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrEmptyInput indicates there were no leads to export.
	ErrEmptyInput = errors.New("export input is empty")
	// ErrUnsupportedFormat indicates an unknown export format was requested.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
