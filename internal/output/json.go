package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/propharvest/internal/listing"
)

// JSONWriter writes records as one JSON array.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
	recs   []listing.Record
	done   bool
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
		recs:   make([]listing.Record, 0),
	}
}

// Write buffers a single record.
func (w *JSONWriter) Write(rec listing.Record) error {
	w.recs = append(w.recs, rec)
	return nil
}

// WriteAll buffers multiple records.
func (w *JSONWriter) WriteAll(recs []listing.Record) error {
	w.recs = append(w.recs, recs...)
	return nil
}

// Flush writes the buffered records as a JSON array. An empty set is
// written as [].
func (w *JSONWriter) Flush() error {
	var output []byte
	var err error

	if w.pretty {
		output, err = json.MarshalIndent(w.recs, "", w.indent)
	} else {
		output, err = json.Marshal(w.recs)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	w.recs = w.recs[:0]
	w.done = true
	return w.w.Flush()
}

// Close flushes anything not yet written.
func (w *JSONWriter) Close() error {
	if w.done && len(w.recs) == 0 {
		return nil
	}
	return w.Flush()
}

// JSONLWriter writes newline-delimited JSON (JSONL), one record per line.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write writes a single record as a JSON line.
func (w *JSONLWriter) Write(rec listing.Record) error {
	output, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}

	return w.w.Flush()
}

// WriteAll writes multiple records as JSON lines.
func (w *JSONLWriter) WriteAll(recs []listing.Record) error {
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
