package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/propharvest/internal/listing"
)

// YAMLWriter writes records as a YAML sequence.
type YAMLWriter struct {
	w    *bufio.Writer
	recs []listing.Record
	done bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{
		w:    bufio.NewWriter(w),
		recs: make([]listing.Record, 0),
	}
}

// Write buffers a single record.
func (w *YAMLWriter) Write(rec listing.Record) error {
	w.recs = append(w.recs, rec)
	return nil
}

// WriteAll buffers multiple records.
func (w *YAMLWriter) WriteAll(recs []listing.Record) error {
	w.recs = append(w.recs, recs...)
	return nil
}

// Flush writes the buffered records as YAML.
func (w *YAMLWriter) Flush() error {
	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)

	if err := encoder.Encode(w.recs); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	w.recs = w.recs[:0]
	w.done = true
	return w.w.Flush()
}

// Close flushes anything not yet written.
func (w *YAMLWriter) Close() error {
	if w.done && len(w.recs) == 0 {
		return nil
	}
	return w.Flush()
}
