package ingest

import (
	"path/filepath"
	"strings"
)

// Source identifies where in an API exchange a field was observed.
type Source string

const (
	SourceRequest  Source = "request"
	SourceResponse Source = "response"
	SourceHeaders  Source = "headers"
	SourceUnknown  Source = "unknown"
)

// SourceOf derives the source from the first segment of a dotted path.
func SourceOf(fieldPath string) Source {
	switch {
	case strings.HasPrefix(fieldPath, "request."):
		return SourceRequest
	case strings.HasPrefix(fieldPath, "response."):
		return SourceResponse
	case strings.HasPrefix(fieldPath, "headers."):
		return SourceHeaders
	default:
		return SourceUnknown
	}
}

// FieldObservation is one field path with a small sample of observed
// values. Observations are ephemeral: built per input record, consumed
// by a single classification run, never persisted.
type FieldObservation struct {
	Path   string   `json:"path"`
	Source Source   `json:"source"`
	Values []string `json:"values"`
}

// FinalKey returns the text after the last path separator, the lookup
// key every classification rule operates on.
func (o FieldObservation) FinalKey() string {
	if i := strings.LastIndex(o.Path, "."); i >= 0 {
		return o.Path[i+1:]
	}
	return o.Path
}

// FileFormat identifies a supported input format
type FileFormat string

const (
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
	FormatCSV     FileFormat = "csv"
	FormatUnknown FileFormat = "unknown"
)

// DetectFileFormat detects the input format from the file extension
func DetectFileFormat(path string) FileFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".parquet":
		return FormatParquet
	case ".csv":
		return FormatCSV
	default:
		return FormatUnknown
	}
}
