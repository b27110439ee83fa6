package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/db"
	"parallel-integrator/internal/orchestrator"
)

// newRunsCmd creates the "coordinator runs" command group.
func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := db.InitDB(config.AppConfig.DBPath); err != nil {
				return err
			}
			defer db.CloseDB()

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSTATUS\tWORKERS\tEQUATION\tRESULT\tCREATED")
			for _, run := range runs {
				result := "-"
				if run.Result != nil {
					result = orchestrator.FormatResult(*run.Result)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", run.RunID, run.Status, run.WorkerCount,
					run.Equation, result, run.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its partial results as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.InitDB(config.AppConfig.DBPath); err != nil {
				return err
			}
			defer db.CloseDB()

			run, err := db.GetRunByID(args[0])
			if err != nil {
				return fmt.Errorf("runs show: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		},
	}
}
