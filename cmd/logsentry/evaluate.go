package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/logsentry/pkg/detection"
	"github.com/hed1ad/logsentry/pkg/evaluation"
	"github.com/hed1ad/logsentry/pkg/instrument"
	"github.com/hed1ad/logsentry/pkg/report"
)

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		logPath     string
		capture     string
		truthPath   string
		threshold   float64
		metricsPath string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure detection accuracy and throughput against ground truth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Detection.Threshold
			}

			counters, err := a.loadCounters(logPath, capture)
			if err != nil {
				return err
			}
			truth, err := evaluation.LoadGroundTruth(truthPath)
			if err != nil {
				return err
			}

			engine := detection.NewEngine(a.cfg.DetectorOptions())
			recorder := instrument.NewRecorder()

			var res *detection.Result
			m, err := recorder.Measure(totalEntries(counters), func() error {
				var derr error
				res, derr = engine.Detect(counters)
				return derr
			})
			if err != nil {
				return err
			}

			predicted := res.Classify(threshold)
			counts := evaluation.Evaluate(predicted, truth)
			missed, alarms := evaluation.Misclassified(predicted, truth)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, report.TitleStyle.Render("PROCESSING PERFORMANCE"))
			fmt.Fprintf(out, "Run: %s\n", m.RunID)
			fmt.Fprintf(out, "Total log entries analysed: %d\n", m.Entries)
			fmt.Fprintf(out, "Processing time: %.3f seconds\n", m.Elapsed.Seconds())
			fmt.Fprintf(out, "Throughput: %.2f entries/second\n\n", m.Throughput)

			fmt.Fprintln(out, report.TitleStyle.Render(fmt.Sprintf("PERFORMANCE METRICS (threshold %.2f)", threshold)))
			fmt.Fprintf(out, "True Positives: %d/%d attacks detected\n", counts.TruePositives, counts.Attacks())
			fmt.Fprintf(out, "False Negatives: %d/%d attacks missed\n", counts.FalseNegatives, counts.Attacks())
			fmt.Fprintf(out, "False Positives: %d/%d benign clients flagged\n", counts.FalsePositives, counts.Benign())
			fmt.Fprintf(out, "True Negatives: %d/%d benign clients ignored\n", counts.TrueNegatives, counts.Benign())
			fmt.Fprintln(out, report.ConfusionTable(counts))

			printMisclassified(out, "MISSED ATTACKS (false negatives)", missed, res.Scores)
			printMisclassified(out, "FALSE ALARMS (false positives)", alarms, res.Scores)

			if metricsPath != "" {
				if err := prometheus.WriteToTextfile(metricsPath, recorder.Registry()); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logPath, "file", "f", "", "Apache access log")
	cmd.Flags().StringVar(&capture, "pcap", "", "packet capture with HTTP traffic")
	cmd.Flags().StringVar(&truthPath, "truth", "ground_truth_labels.csv", "ground truth CSV (IP Address, Label)")
	cmd.Flags().Float64Var(&threshold, "threshold", detection.DefaultThreshold, "decision score below which clients are anomalous")
	cmd.Flags().StringVar(&metricsPath, "metrics-file", "", "write Prometheus metrics in text format to this file")
	return cmd
}

func printMisclassified(out io.Writer, title string, ids []string, scores detection.ScoreMap) {
	fmt.Fprintf(out, "\n%s:\n", title)
	if len(ids) == 0 {
		fmt.Fprintln(out, "\tnone")
		return
	}
	for _, id := range ids {
		fmt.Fprintf(out, "\t%s (score: %.3f)\n", id, scores[id])
	}
}
