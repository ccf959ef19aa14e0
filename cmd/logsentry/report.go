package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/logsentry/pkg/detection"
	"github.com/hed1ad/logsentry/pkg/enrichment"
	"github.com/hed1ad/logsentry/pkg/features"
	logio "github.com/hed1ad/logsentry/pkg/io"
	"github.com/hed1ad/logsentry/pkg/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		logPath   string
		capture   string
		outPath   string
		cachePath string
		score     bool
		enrich    bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise requests and errors per client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			counters, err := a.loadCounters(logPath, capture)
			if err != nil {
				return err
			}

			var res *detection.Result
			if score {
				res, err = detection.NewEngine(a.cfg.DetectorOptions()).Detect(counters)
				if err != nil {
					return err
				}
			}

			if cachePath == "" && enrich {
				cachePath = a.cfg.Reputation.DBPath
			}

			var reps map[string]enrichment.Reputation
			if cachePath != "" {
				reps, err = cachedReputations(cmd.Context(), cachePath, a.cfg.Reputation.RequestsPerSecond, counters)
				if err != nil {
					return err
				}
			}

			results := buildResults(counters, res, a.cfg.Detection.Threshold, reps)
			report.SortByErrors(results)

			table := report.NewTableWriter(cmd.OutOrStdout(), "ATTACKER REPORT")
			if err := table.WriteAll(results); err != nil {
				return err
			}
			if err := table.Close(); err != nil {
				return err
			}

			if outPath != "" {
				if err := exportCSV(outPath, results); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report exported to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "file", "f", "", "Apache access log")
	cmd.Flags().StringVar(&capture, "pcap", "", "packet capture with HTTP traffic")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "export the report as CSV")
	cmd.Flags().StringVar(&cachePath, "reputation-db", "", "reputation cache to enrich from")
	cmd.Flags().BoolVar(&enrich, "enrich", false, "enrich from the configured reputation cache")
	cmd.Flags().BoolVar(&score, "score", false, "also score clients with the detector")
	return cmd
}

// cachedReputations reads reputations from the cache only. Uncached
// addresses are reported as unknown.
func cachedReputations(ctx context.Context, path string, perSecond float64,
	counters map[string]features.Counters) (map[string]enrichment.Reputation, error) {
	cache, err := enrichment.OpenCache(path)
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	ips := make([]string, 0, len(counters))
	for id := range counters {
		ips = append(ips, id)
	}
	sort.Strings(ips)

	reps, err := enrichment.NewEnricher(cache, enrichment.WithRate(perSecond)).LookupAll(ctx, ips)
	if err != nil {
		return nil, err
	}
	log.Info().Int("clients", len(reps)).Str("cache", path).Msg("reputation attached")
	return reps, nil
}

func exportCSV(path string, results []logio.Result) error {
	w, err := report.CreateCSV(path)
	if err != nil {
		return err
	}
	if err := w.WriteAll(results); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
