package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// path config.yaml
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	root := &cobra.Command{
		Use:          "neurally",
		Short:        "Clinical speech assessment",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWindow(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "path to config.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "window",
			Short: "Open the assessment window (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWindow(cmd.Context(), configPath)
			},
		},
		newAnalyzeCmd(&configPath),
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply history table migrations to the configured database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), configPath)
			},
		},
	)
	return root
}
