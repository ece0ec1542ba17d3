package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter writes Records as CSV. The header is the union of every
// record's columns in first-seen order, so rows are buffered until Flush.
// No records produce no output.
type CSVWriter struct {
	w       io.Writer
	records []Record
	done    bool
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// Write buffers a record. data must implement Record.
func (w *CSVWriter) Write(data any) error {
	rec, ok := data.(Record)
	if !ok {
		return fmt.Errorf("csv output needs a record, got %T", data)
	}
	w.records = append(w.records, rec)
	return nil
}

// WriteAll buffers multiple records.
func (w *CSVWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the header and all rows.
func (w *CSVWriter) Flush() error {
	if w.done || len(w.records) == 0 {
		return nil
	}

	var header []string
	seen := make(map[string]bool)
	for _, rec := range w.records {
		for _, col := range rec.CSVColumns() {
			if !seen[col] {
				seen[col] = true
				header = append(header, col)
			}
		}
	}

	cw := csv.NewWriter(w.w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range w.records {
		for i, col := range header {
			row[i] = rec.CSVValue(col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	w.done = true
	return nil
}

// Close flushes the writer.
func (w *CSVWriter) Close() error {
	return w.Flush()
}
