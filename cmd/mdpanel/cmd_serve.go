package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/app"
	"github.com/HerbHall/mdpanel/internal/version"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("mdpanel starting", zap.String("version", version.Short()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Detector.URL, err = app.ResolveDetectorURL(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("resolve detector: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return a.Run(ctx)
}
