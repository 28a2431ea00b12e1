// Command mdpanel is the dashboard client for a Wi-Fi max detector.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/app"
	"github.com/HerbHall/mdpanel/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mdpanel",
		Short:         "Live dashboard for a Wi-Fi max detector",
		Long:          "mdpanel polls a max detector's HTTP API, serves a live status page on the local network and relays alarms to MQTT.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	root.AddCommand(
		newServeCmd(),
		newProbeCmd(),
		newDiscoverCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration and builds the matching logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mdpanel:", err)
		os.Exit(1)
	}
}
