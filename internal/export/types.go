// Package export renders event reports to PDF and DOCX.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

func (f Format) Valid() bool {
	return f == FormatPDF || f == FormatDOCX
}

// Request contains parameters for an export operation
type Request struct {
	EventID string
	Format  Format
	// Upload stores the result in object storage when a bucket is configured.
	Upload bool
}

// Result contains the export output. URL and Key are set when the report was
// uploaded; Data is always populated.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	Key      string
	URL      string
	URLTTL   time.Duration
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat is returned for formats other than pdf and docx.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
