package main

import (
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/HerbHall/mdpanel/internal/app"
)

var errProbeFailed = errors.New("probe: at least one detector fetch failed")

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Run one refresh cycle and print the result as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			cfg.Detector.URL, err = app.ResolveDetectorURL(ctx, cfg, logger)
			if err != nil {
				return err
			}

			rep, err := app.Probe(ctx, cfg, logger)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if rep.Failed() {
				return errProbeFailed
			}
			return nil
		},
	}
}
