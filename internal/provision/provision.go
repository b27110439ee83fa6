package provision

import (
	"context"
	"fmt"

	"parallel-integrator/internal/agent"
	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Provisioner поднимает и останавливает пул воркеров
type Provisioner interface {
	Up(ctx context.Context, workers int) error
	Down(ctx context.Context) error
}

// New выбирает способ поднятия пула по конфигурации. broker нужен только
// локальному пулу, который работает с брокером координатора напрямую.
func New(cfg *config.Config, broker queue.Broker) (Provisioner, error) {
	switch cfg.Provisioner {
	case config.ProvisionerCompose:
		return NewCompose(cfg.ComposeCommand, cfg.ComposeService)
	case config.ProvisionerLocal:
		mode, err := barrier.ParseMode(cfg.BarrierMode)
		if err != nil {
			return nil, err
		}
		return NewLocal(broker, cfg.Channels(), mode, agent.Options{
			PollInterval:   cfg.PollInterval,
			ReleaseTimeout: cfg.ReleaseTimeout,
		}), nil
	case config.ProvisionerNone:
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provisioner %q", protocol.ErrConfiguration, cfg.Provisioner)
	}
}

// None пул управляется снаружи, например воркеры уже запущены
type None struct{}

func (None) Up(_ context.Context, workers int) error {
	logger.Log.Infow("Workers are managed externally", "expected", workers)
	return nil
}

func (None) Down(context.Context) error {
	return nil
}
