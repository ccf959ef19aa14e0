package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/logsentry/pkg/detection"
	"github.com/hed1ad/logsentry/pkg/enrichment"
	"github.com/hed1ad/logsentry/pkg/features"
	logio "github.com/hed1ad/logsentry/pkg/io"
	"github.com/hed1ad/logsentry/pkg/io/accesslog"
	"github.com/hed1ad/logsentry/pkg/io/pcap"
)

var errNoInput = errors.New("no input: pass an access log with -f or a capture with --pcap")

// loadCounters aggregates an access log and/or a packet capture.
func (a *app) loadCounters(logPath, capturePath string) (map[string]features.Counters, error) {
	if logPath == "" && capturePath == "" {
		return nil, errNoInput
	}

	counters := make(map[string]features.Counters)
	if logPath != "" {
		c, stats, err := accesslog.ParseFile(logPath, accesslog.WithPaths(a.cfg.Parser.TrackPaths))
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("file", logPath).
			Int("lines", stats.Lines).
			Int("skipped", stats.Skipped).
			Int("clients", len(c)).
			Msg("access log parsed")
		logio.Merge(counters, c)
	}

	if capturePath != "" {
		r, err := pcap.NewFileReader(capturePath, pcap.WithPaths(a.cfg.Parser.TrackPaths))
		if err != nil {
			return nil, err
		}
		defer r.Close()

		c, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("read capture: %w", err)
		}
		stats := r.Stats()
		log.Info().
			Str("file", capturePath).
			Int("packets", stats.Packets).
			Int("requests", stats.Requests).
			Int("clients", len(c)).
			Msg("capture decoded")
		logio.Merge(counters, c)
	}

	return counters, nil
}

func totalEntries(counters map[string]features.Counters) int {
	n := 0
	for _, c := range counters {
		n += c.Total
	}
	return n
}

// buildResults joins counters with scores and reputations, if any.
func buildResults(counters map[string]features.Counters, res *detection.Result, threshold float64,
	reps map[string]enrichment.Reputation) []logio.Result {
	var flagged detection.IDSet
	if res != nil {
		flagged = res.Classify(threshold)
	}

	results := make([]logio.Result, 0, len(counters))
	for id, c := range counters {
		r := logio.Result{ID: id, Total: c.Total, Errors: c.Errors, Country: enrichment.UnknownCountry}
		if res != nil {
			r.Score = res.Scores[id]
			r.Anomalous = flagged.Has(id)
		}
		if rep, ok := reps[id]; ok {
			r.AbuseScore = rep.AbuseScore
			r.Country = rep.Country
		}
		results = append(results, r)
	}
	return results
}
