package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hed1ad/logsentry/pkg/fixtures"
)

func newGenerateCmd(_ *app) *cobra.Command {
	var (
		logPath     string
		truthPath   string
		capturePath string
		seed        int64
		normalUsers int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a labelled synthetic dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := fixtures.DefaultConfig()
			cfg.Seed = seed
			cfg.NormalUsers = normalUsers

			d, err := fixtures.Generate(cfg)
			if err != nil {
				return err
			}
			if err := d.WriteFiles(logPath, truthPath); err != nil {
				return err
			}
			if capturePath != "" {
				if err := d.WriteCaptureFile(capturePath); err != nil {
					return err
				}
			}

			log.Info().
				Int64("seed", seed).
				Int("entries", len(d.Entries)).
				Int("clients", len(d.Clients)).
				Msg("dataset generated")
			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d log entries for %d clients\n", len(d.Entries), len(d.Clients))
			fmt.Fprintf(cmd.OutOrStdout(), "Logs written to %s\nGround truth written to %s\n", logPath, truthPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "test_access.log", "access log to write")
	cmd.Flags().StringVar(&truthPath, "truth", "ground_truth_labels.csv", "ground truth CSV to write")
	cmd.Flags().StringVar(&capturePath, "pcap", "", "also write the traffic as a packet capture")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&normalUsers, "normal-users", 0, "number of normal benign users (0 draws 8 to 13)")
	return cmd
}
