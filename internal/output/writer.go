// Package output serializes harvested listings to files.
package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/propharvest/internal/listing"
)

// Format represents output format types.
type Format string

const (
	FormatXLSX  Format = "xlsx"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatXLSX, FormatJSON, FormatJSONL, FormatYAML}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// DefaultSheetName is the worksheet that receives records in xlsx output.
const DefaultSheetName = "Properties"

// Writer handles record serialization.
type Writer interface {
	// Write outputs a single record.
	Write(rec listing.Record) error

	// WriteAll outputs multiple records.
	WriteAll(recs []listing.Record) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
	sheet  string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// WithSheetName sets the xlsx worksheet name.
func WithSheetName(name string) WriterOption {
	return func(c *writerConfig) {
		c.sheet = name
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
		sheet:  DefaultSheetName,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatXLSX:
		return NewXLSXWriter(w, cfg.sheet), nil
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
