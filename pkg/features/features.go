// Package features turns per-client request counters into the numeric
// feature vectors consumed by the detectors.
package features

import (
	"errors"
	"fmt"
	"sort"
)

// Dimension is the length of every feature vector produced by this package.
const Dimension = 3

// Feature indices inside a vector.
const (
	TotalRequests = iota
	ErrorRate
	UniquePathCount
)

// ErrInvalidCounters is wrapped by every ValidationError.
var ErrInvalidCounters = errors.New("invalid counters")

// Counters holds the raw aggregates collected for one client.
type Counters struct {
	// Total is the number of requests seen from the client.
	Total int
	// Errors is the number of those requests answered with a 4xx or 5xx status.
	Errors int
	// Paths is the set of distinct request paths. Nil when the parser
	// does not track paths.
	Paths map[string]struct{}
}

// AddPath records a requested path, allocating the set on first use.
func (c *Counters) AddPath(path string) {
	if c.Paths == nil {
		c.Paths = make(map[string]struct{})
	}
	c.Paths[path] = struct{}{}
}

// ClientRecord is the feature view of one client.
type ClientRecord struct {
	ID              string
	TotalRequests   int
	ErrorRate       float64
	UniquePathCount int
}

// Vector returns the record as (total_requests, error_rate, unique_path_count).
func (r ClientRecord) Vector() []float64 {
	return []float64{
		float64(r.TotalRequests),
		r.ErrorRate,
		float64(r.UniquePathCount),
	}
}

// ValidationError reports counters that cannot describe real traffic.
type ValidationError struct {
	ID      string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("client %q: %s: %s", e.ID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidCounters
}

// Validate checks a single set of counters.
func Validate(id string, c Counters) error {
	switch {
	case c.Total < 0:
		return &ValidationError{ID: id, Field: "total", Message: fmt.Sprintf("negative count %d", c.Total)}
	case c.Errors < 0:
		return &ValidationError{ID: id, Field: "errors", Message: fmt.Sprintf("negative count %d", c.Errors)}
	case c.Errors > c.Total:
		return &ValidationError{
			ID:      id,
			Field:   "errors",
			Message: fmt.Sprintf("%d errors exceed %d total requests", c.Errors, c.Total),
		}
	}
	return nil
}

// Extract validates the counters and converts them into records sorted by
// client identifier. An empty input yields an empty, non-nil slice.
func Extract(counters map[string]Counters) ([]ClientRecord, error) {
	ids := make([]string, 0, len(counters))
	for id := range counters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]ClientRecord, 0, len(ids))
	for _, id := range ids {
		c := counters[id]
		if err := Validate(id, c); err != nil {
			return nil, err
		}

		var errorRate float64
		if c.Total > 0 {
			errorRate = float64(c.Errors) / float64(c.Total)
		}

		records = append(records, ClientRecord{
			ID:              id,
			TotalRequests:   c.Total,
			ErrorRate:       errorRate,
			UniquePathCount: len(c.Paths),
		})
	}

	return records, nil
}

// Matrix stacks the feature vectors of records in order.
func Matrix(records []ClientRecord) [][]float64 {
	data := make([][]float64, len(records))
	for i, r := range records {
		data[i] = r.Vector()
	}
	return data
}

// Names returns the names of the vector components.
func Names() []string {
	return []string{
		"total_requests",
		"error_rate",
		"unique_path_count",
	}
}
