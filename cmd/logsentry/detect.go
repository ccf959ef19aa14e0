package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/logsentry/pkg/detection"
	logio "github.com/hed1ad/logsentry/pkg/io"
	"github.com/hed1ad/logsentry/pkg/report"
)

func newDetectCmd(a *app) *cobra.Command {
	var (
		logPath   string
		capture   string
		threshold float64
		modelPath string
		outPath   string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Score clients and list the anomalous ones",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Detection.Threshold
			}

			counters, err := a.loadCounters(logPath, capture)
			if err != nil {
				return err
			}

			res, err := detection.NewEngine(a.cfg.DetectorOptions()).Detect(counters)
			if err != nil {
				return err
			}

			results := buildResults(counters, res, threshold, nil)
			report.SortByScore(results)

			shown := results
			if !all {
				shown = anomalousOnly(results)
			}
			log.Info().
				Int("clients", len(results)).
				Int("anomalous", len(anomalousOnly(results))).
				Float64("threshold", threshold).
				Msg("detection complete")

			table := report.NewTableWriter(cmd.OutOrStdout(), "ANOMALOUS CLIENTS")
			if err := table.WriteAll(shown); err != nil {
				return err
			}
			if err := table.Close(); err != nil {
				return err
			}

			if modelPath != "" {
				data, err := res.Model.Save()
				if err != nil {
					return fmt.Errorf("save model: %w", err)
				}
				if err := os.WriteFile(modelPath, data, 0o644); err != nil {
					return fmt.Errorf("write model: %w", err)
				}
				log.Info().Str("file", modelPath).Msg("model saved")
			}

			if outPath != "" {
				return exportCSV(outPath, results)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "file", "f", "", "Apache access log")
	cmd.Flags().StringVar(&capture, "pcap", "", "packet capture with HTTP traffic")
	cmd.Flags().Float64Var(&threshold, "threshold", detection.DefaultThreshold, "decision score below which clients are anomalous")
	cmd.Flags().StringVar(&modelPath, "save-model", "", "write the fitted model to this file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "export every scored client as CSV")
	cmd.Flags().BoolVar(&all, "all", false, "list every client, not only anomalous ones")
	return cmd
}

func anomalousOnly(results []logio.Result) []logio.Result {
	var out []logio.Result
	for _, r := range results {
		if r.Anomalous {
			out = append(out, r)
		}
	}
	return out
}
