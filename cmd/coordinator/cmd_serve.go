package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/orchestrator"
)

// newServeCmd creates the "coordinator serve" subcommand.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP",
		Long:  "Start the HTTP API: operator login, starting runs and reading run history.\nRuns execute one at a time against the configured worker pool.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.AppConfig

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			coordinator, closeAll, err := buildCoordinator(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeAll()

			runner := orchestrator.NewRunner(coordinator, cfg.WorkerCount)
			orchestrator.RunnerInstance = runner

			r := mux.NewRouter()
			orchestrator.RegisterRoutes(r)

			httpServer := &http.Server{
				Addr:              ":" + cfg.ServerPort,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Log.Infow("HTTP server started", "port", cfg.ServerPort)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
				logger.Log.Infow("Shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Log.Errorw("HTTP server shutdown", "error", err)
			}
			runner.Wait()
			return nil
		},
	}
}
