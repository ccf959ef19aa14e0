package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hed1ad/logsentry/pkg/detection"
	"github.com/hed1ad/logsentry/pkg/evaluation"
	"github.com/hed1ad/logsentry/pkg/report"
)

func newTuneCmd(a *app) *cobra.Command {
	var (
		logPath    string
		capture    string
		truthPath  string
		thresholds []float64
		maxFPR     float64
	)

	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Sweep thresholds and recommend one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("thresholds") {
				thresholds = a.cfg.Evaluation.Thresholds
			}
			if !cmd.Flags().Changed("max-fpr") {
				maxFPR = a.cfg.Evaluation.MaxFPR
			}
			if len(thresholds) == 0 {
				return errors.New("no thresholds to evaluate")
			}

			counters, err := a.loadCounters(logPath, capture)
			if err != nil {
				return err
			}
			truth, err := evaluation.LoadGroundTruth(truthPath)
			if err != nil {
				return err
			}

			// One fit, many thresholds.
			res, err := detection.NewEngine(a.cfg.DetectorOptions()).Detect(counters)
			if err != nil {
				return err
			}

			points := evaluation.Sweep(res.Scores, truth, thresholds)
			best, ok := evaluation.Best(points, maxFPR)
			recommended := -1
			if ok {
				for i, p := range points {
					if p.Threshold == best.Threshold {
						recommended = i
						break
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.TitleStyle.Render("THRESHOLD TUNING RESULTS"))
			fmt.Fprintln(out, report.SweepTable(points, recommended))
			if !ok {
				fmt.Fprintf(out, "No threshold keeps the false positive rate at or below %.1f%%\n", maxFPR)
				return nil
			}
			fmt.Fprintf(out, "Recommended threshold: %.2f (TPR %.1f%%, FPR %.1f%%, max FPR %.1f%%)\n",
				best.Threshold, best.Counts.TruePositiveRate(), best.Counts.FalsePositiveRate(), maxFPR)
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "file", "f", "", "Apache access log")
	cmd.Flags().StringVar(&capture, "pcap", "", "packet capture with HTTP traffic")
	cmd.Flags().StringVar(&truthPath, "truth", "ground_truth_labels.csv", "ground truth CSV (IP Address, Label)")
	cmd.Flags().Float64SliceVar(&thresholds, "thresholds", evaluation.DefaultThresholds(), "thresholds to evaluate")
	cmd.Flags().Float64Var(&maxFPR, "max-fpr", 5, "highest acceptable false positive rate in percent")
	return cmd
}
