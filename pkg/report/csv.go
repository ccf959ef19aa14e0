package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	logio "github.com/hed1ad/logsentry/pkg/io"
)

var _ logio.Writer = (*CSVWriter)(nil)

// CSVWriter exports results with the same columns as the table.
type CSVWriter struct {
	closer io.Closer
	w      *csv.Writer
}

// CreateCSV creates (or truncates) path and writes the header row.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	w, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewCSVWriter writes the header row to out. Close flushes but does not close out.
func NewCSVWriter(out io.Writer) (*CSVWriter, error) {
	w := &CSVWriter{w: csv.NewWriter(out)}
	if err := w.w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return w, nil
}

// Write appends one row.
func (w *CSVWriter) Write(result logio.Result) error {
	if err := w.w.Write(resultRow(result)); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	return nil
}

// WriteAll appends rows.
func (w *CSVWriter) WriteAll(results []logio.Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file created by CreateCSV.
func (w *CSVWriter) Close() error {
	w.w.Flush()
	err := w.w.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}
