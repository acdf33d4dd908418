package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jmylchreest/propharvest/internal/listing"
)

// XLSXWriter writes records as rows of a single worksheet, preceded by a
// header row of column names. The workbook is produced on Flush.
type XLSXWriter struct {
	w     io.Writer
	sheet string
	recs  []listing.Record
	done  bool
}

// NewXLSXWriter creates an xlsx writer targeting the named sheet.
func NewXLSXWriter(w io.Writer, sheet string) *XLSXWriter {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &XLSXWriter{
		w:     w,
		sheet: sheet,
		recs:  make([]listing.Record, 0),
	}
}

// Write buffers a single record.
func (w *XLSXWriter) Write(rec listing.Record) error {
	w.recs = append(w.recs, rec)
	return nil
}

// WriteAll buffers multiple records.
func (w *XLSXWriter) WriteAll(recs []listing.Record) error {
	w.recs = append(w.recs, recs...)
	return nil
}

// Flush builds the workbook and writes it out. A workbook is a single
// document, so only the first Flush produces output.
func (w *XLSXWriter) Flush() error {
	if w.done {
		return nil
	}
	w.done = true

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := w.setRow(f, 1, listing.Record{}.Columns()); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(w.sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range w.recs {
		if err := w.setRow(f, i+2, rec.Values()); err != nil {
			return err
		}
	}

	if err := f.Write(w.w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(w.sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// Close flushes the workbook.
func (w *XLSXWriter) Close() error {
	return w.Flush()
}
