package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HerbHall/mdpanel/internal/discovery"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List detectors announced over mDNS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			found, err := discovery.Discover(cmd.Context(), discovery.Config{
				Service:        cfg.Discovery.Service,
				InstancePrefix: cfg.Discovery.InstancePrefix,
				Timeout:        cfg.Discovery.Timeout,
			}, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no detectors found")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tHOST\tURL")
			for _, c := range found {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Host, c.BaseURL)
			}
			return tw.Flush()
		},
	}
}
