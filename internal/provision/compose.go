package provision

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Compose управляет контейнерами воркеров через docker-compose
type Compose struct {
	command []string
	service string
}

func NewCompose(command, service string) (*Compose, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: compose command: %v", protocol.ErrConfiguration, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: compose command is empty", protocol.ErrConfiguration)
	}
	if service == "" {
		return nil, fmt.Errorf("%w: compose service is empty", protocol.ErrConfiguration)
	}
	return &Compose{command: args, service: service}, nil
}

// Up выполняет up -d --scale <service>=N
func (c *Compose) Up(ctx context.Context, workers int) error {
	logger.Log.Infow("Starting workers", "count", workers, "service", c.service)
	return c.run(ctx, "up", "-d", "--scale", fmt.Sprintf("%s=%d", c.service, workers))
}

// Down останавливает и удаляет только контейнеры воркеров. Сервис очередей
// из того же файла продолжает работать для следующих прогонов.
func (c *Compose) Down(ctx context.Context) error {
	logger.Log.Infow("Stopping workers", "service", c.service)
	return c.run(ctx, "rm", "-s", "-f", c.service)
}

// Start поднимает перечисленные сервисы в фоне
func (c *Compose) Start(ctx context.Context, services ...string) error {
	logger.Log.Infow("Starting services", "services", services)
	return c.run(ctx, append([]string{"up", "-d"}, services...)...)
}

// StartQueueService поднимает Redis из compose-файла воркеров и ждет, пока он
// начнет отвечать. Нужен только для связки compose + redis, иначе ничего не делает.
func StartQueueService(ctx context.Context, cfg *config.Config) error {
	if cfg.Provisioner != config.ProvisionerCompose || cfg.QueueBackend != config.BackendRedis || cfg.ComposeQueueService == "" {
		return nil
	}

	c, err := NewCompose(cfg.ComposeCommand, cfg.ComposeService)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, cfg.ComposeQueueService); err != nil {
		return fmt.Errorf("%w: start %s: %v", protocol.ErrQueueUnavailable, cfg.ComposeQueueService, err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
	waitCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()
	for {
		broker, err := queue.NewRedisBroker(waitCtx, addr, cfg.RedisDB)
		if err == nil {
			return broker.Close()
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s did not come up after %s: %v", protocol.ErrQueueUnavailable, cfg.ComposeQueueService, cfg.ReadyTimeout, err)
		case <-time.After(cfg.PollInterval):
		}
	}
}

func (c *Compose) run(ctx context.Context, args ...string) error {
	full := append(append([]string(nil), c.command[1:]...), args...)
	cmd := exec.CommandContext(ctx, c.command[0], full...)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logger.Log.Debugw("Compose output", "args", full, "output", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", c.command[0], strings.Join(full, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
