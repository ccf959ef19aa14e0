// Package csv provides header-aware CSV reading for labelled tables.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingColumn is returned when a requested header is absent.
var ErrMissingColumn = errors.New("missing column")

// Reader reads rows from CSV files.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	trimSpace bool
	headers   []string
	index     map[string]int
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithComma sets the field delimiter.
func WithComma(c rune) Option {
	return func(r *Reader) {
		r.reader.Comma = c
	}
}

// WithTrimSpace trims surrounding whitespace from every field.
func WithTrimSpace(trim bool) Option {
	return func(r *Reader) {
		r.trimSpace = trim
	}
}

// NewReader opens filename and creates a reader over it.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewStreamReader creates a reader over an open stream. Close is a no-op.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(src, nil, opts)
}

func newReader(src io.Reader, closer io.Closer, opts []Option) (*Reader, error) {
	r := &Reader{
		closer:    closer,
		reader:    csv.NewReader(src),
		hasHeader: true,
		trimSpace: true,
	}
	r.reader.FieldsPerRecord = -1

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, errors.New("read header: empty file")
			}
			return nil, fmt.Errorf("read header: %w", err)
		}
		r.headers = r.clean(headers)
		r.index = make(map[string]int, len(r.headers))
		for i, h := range r.headers {
			r.index[strings.ToLower(h)] = i
		}
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Column returns the index of a header, matched case-insensitively.
func (r *Reader) Column(name string) (int, error) {
	i, ok := r.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	return i, nil
}

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() ([]string, error) {
	record, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	return r.clean(record), nil
}

// ReadAll returns every remaining row.
func (r *Reader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// Line returns the input line of the most recently read row.
func (r *Reader) Line() int {
	line, _ := r.reader.FieldPos(0)
	return line
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) clean(record []string) []string {
	if !r.trimSpace {
		return record
	}
	for i, v := range record {
		record[i] = strings.TrimSpace(v)
	}
	return record
}
