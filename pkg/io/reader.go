// Package io defines the ingestion and result-writing contracts shared by
// log parsers, packet readers and report writers.
package io

import "github.com/hed1ad/logsentry/pkg/features"

// Reader is the interface for sources of per-client request counters.
type Reader interface {
	// Read consumes the whole source and returns counters keyed by client address.
	Read() (map[string]features.Counters, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing per-client results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close flushes and releases resources.
	Close() error
}

// Result is one reported client.
type Result struct {
	ID         string  `json:"ip_address"`
	Total      int     `json:"total_requests"`
	Errors     int     `json:"errors"`
	Anomalous  bool    `json:"anomalous"`
	Score      float64 `json:"score"`
	AbuseScore int     `json:"abuse_score"`
	Country    string  `json:"country"`
}

// Merge adds the counters of src into dst, creating entries as needed.
func Merge(dst, src map[string]features.Counters) {
	for id, c := range src {
		cur := dst[id]
		cur.Total += c.Total
		cur.Errors += c.Errors
		for p := range c.Paths {
			cur.AddPath(p)
		}
		dst[id] = cur
	}
}
