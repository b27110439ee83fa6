package orchestrator

import (
	"context"
	"fmt"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/grpc"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// OpenBroker открывает брокер координатора. Для бэкенда grpc координатор
// сам держит очереди в памяти и отдает их воркерам по gRPC; возвращаемая
// функция останавливает сервер и закрывает брокер.
func OpenBroker(ctx context.Context, cfg *config.Config) (queue.Broker, func(), error) {
	switch cfg.QueueBackend {
	case config.BackendRedis:
		addr := fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)
		broker, err := queue.NewRedisBroker(ctx, addr, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Infow("Connected to Redis", "address", addr)
		return broker, func() { broker.Close() }, nil

	case config.BackendGRPC:
		broker := queue.NewMemoryBroker()
		server, addr, err := grpc.StartGRPCServer(cfg.QueueGRPCAddress, broker)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", protocol.ErrQueueUnavailable, err)
		}
		logger.Log.Infow("Queue service listening", "address", addr.String())
		return broker, func() {
			server.Stop()
			broker.Close()
		}, nil

	case config.BackendMemory:
		broker := queue.NewMemoryBroker()
		return broker, func() { broker.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown queue backend %q", protocol.ErrConfiguration, cfg.QueueBackend)
	}
}
