package main

import (
	"github.com/spf13/cobra"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
)

// newRootCmd creates the root coordinator command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "coordinator",
		Short:         "Distributed 2D Riemann integration coordinator",
		Long:          "coordinator splits an integration domain into strips, hands them to workers\nover a shared queue and aggregates their partial sums.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			config.AppConfig = cfg
			logger.InitCoordinatorLogger()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.CloseLogger()
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/.env", "path to the .env file")

	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newRunsCmd(),
		newHashPasswordCmd(),
	)

	return cmd
}
