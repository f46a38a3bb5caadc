package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "weddinghub",
		Short: "Wedding video submission service",
		Long: `WeddingHub accepts wedding videos through a multi-step submission wizard,
stores the video and thumbnail, and publishes the metadata to a browsable feed.

Settings come from config.yaml, a .env file and WEDDINGHUB_* environment variables.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default ./config.yaml)")

	cmd.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return cmd
}
