package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"parallel-integrator/internal/agent"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
)

func main() {
	config.InitConfig("configs/.env")
	logger.InitWorkerLogger()
	defer logger.CloseLogger()

	logger.LogINFO("Worker started")
	defer logger.LogINFO("Worker stopped")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.StartAgent(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.LogERROR("Worker failed: " + err.Error())
		logger.CloseLogger()
		os.Exit(1)
	}
}
