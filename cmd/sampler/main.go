package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"parallel-integrator/internal/benchmark"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
)

// Сэмплер запускается координатором без аргументов: stdin принимает stop,
// stdout несет протокол, последняя строка которого JSON отчет
func main() {
	config.InitConfig("configs/.env")
	logger.InitSamplerLogger(config.AppConfig.LogLevel)
	defer logger.CloseLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	probe, err := benchmark.NewSystemProbe(config.AppConfig.SamplerTargetPID)
	if err != nil {
		logger.Log.Errorw("Failed to start probe", "error", err)
		os.Exit(1)
	}

	if err := benchmark.RunSampler(ctx, os.Stdin, os.Stdout, probe, config.AppConfig.SamplerInterval); err != nil {
		logger.Log.Errorw("Sampler failed", "error", err)
		os.Exit(1)
	}
}
