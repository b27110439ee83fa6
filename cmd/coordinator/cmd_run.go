package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/db"
	"parallel-integrator/internal/orchestrator"
	"parallel-integrator/internal/provision"
)

// newRunCmd creates the "coordinator run" subcommand.
func newRunCmd() *cobra.Command {
	var (
		taskPath string
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one integration from a task file",
		Long:  "Load the task description, bring the worker pool up, integrate and write\noutput.txt and benchmark.txt into OUTPUT_DIR.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.AppConfig
			if taskPath == "" {
				taskPath = cfg.TaskFile
			}

			task, err := config.LoadTask(taskPath)
			if err != nil {
				return err
			}
			if workers > 0 {
				task.WorkerCount = workers
			}
			count, err := task.ResolveWorkerCount(cfg.WorkerCount)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coordinator, closeAll, err := buildCoordinator(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			outcome, err := coordinator.Run(ctx, orchestrator.Request{Task: task, Workers: count})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Final Result = %s\n", orchestrator.FormatResult(outcome.Aggregate))
			fmt.Fprintf(out, "Benchmark Data = elapsed %.3fs, cpu diff %.3f%%, memory %d bytes\n",
				outcome.Report.ElapsedTimeSec, outcome.Report.CPUUsagePercentDiff, outcome.Report.MemoryUsageBytes)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskPath, "task", "", "task description file (default TASK_FILE)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count, overrides the task file and WORKER_COUNT")
	return cmd
}

// buildCoordinator opens run history, starts the compose queue service when
// needed, then connects the broker and sets up the worker pool.
func buildCoordinator(ctx context.Context, cfg *config.Config) (*orchestrator.Coordinator, func(), error) {
	if err := db.InitDB(cfg.DBPath); err != nil {
		return nil, nil, fmt.Errorf("init database: %w", err)
	}

	if err := provision.StartQueueService(ctx, cfg); err != nil {
		db.CloseDB()
		return nil, nil, err
	}

	broker, closeBroker, err := orchestrator.OpenBroker(ctx, cfg)
	if err != nil {
		db.CloseDB()
		return nil, nil, err
	}
	closeAll := func() {
		closeBroker()
		db.CloseDB()
	}

	provisioner, err := provision.New(cfg, broker)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	opts, err := orchestrator.OptionsFromConfig(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	return orchestrator.NewCoordinator(broker, provisioner, opts), closeAll, nil
}
