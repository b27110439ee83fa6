package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/grpc"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Connect подключает воркера к сервису очередей выбранного бэкенда.
// Бэкенд memory живет только внутри процесса координатора.
func Connect(ctx context.Context, cfg *config.Config) (queue.Broker, error) {
	switch cfg.QueueBackend {
	case config.BackendRedis:
		addr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
		logger.Log.Infow("Connecting to Redis", "address", addr)
		broker, err := queue.NewRedisBroker(ctx, addr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return broker, nil
	case config.BackendGRPC:
		logger.Log.Infow("Connecting to gRPC queue service", "address", cfg.QueueGRPCAddress)
		client, err := grpc.NewGRPCQueueClient(ctx, cfg.QueueGRPCAddress)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: queue backend %q is not reachable from a worker process", protocol.ErrConfiguration, cfg.QueueBackend)
	}
}

// ResolveWorkerID берет идентификатор из WORKER_ID, затем из HOSTNAME
// (имя контейнера), иначе генерирует случайный
func ResolveWorkerID(configured string) string {
	if configured != "" {
		return configured
	}
	if host := os.Getenv("HOSTNAME"); host != "" {
		return host
	}
	return "worker-" + uuid.NewString()[:8]
}
