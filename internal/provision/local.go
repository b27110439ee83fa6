package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"parallel-integrator/internal/agent"
	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Local запускает воркеров горутинами в процессе координатора
type Local struct {
	broker   queue.Broker
	channels protocol.Channels
	mode     barrier.Mode
	opts     agent.Options

	mu     sync.Mutex
	agents []*agent.Agent
	group  *errgroup.Group
	cancel context.CancelFunc
}

func NewLocal(broker queue.Broker, channels protocol.Channels, mode barrier.Mode, opts agent.Options) *Local {
	return &Local{broker: broker, channels: channels, mode: mode, opts: opts}
}

// Up запускает workers воркеров. Идентификаторы уникальны между прогонами,
// поэтому старые персональные токены барьера не достаются новым воркерам.
func (l *Local) Up(ctx context.Context, workers int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.group != nil {
		return fmt.Errorf("local pool is already running")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)
	prefix := "local-" + uuid.NewString()[:8]

	l.agents = make([]*agent.Agent, 0, workers)
	for i := 0; i < workers; i++ {
		b := barrier.New(l.broker, l.channels, l.mode, l.opts.PollInterval)
		a := agent.New(fmt.Sprintf("%s-%d", prefix, i), l.broker, l.channels, b, l.opts)
		l.agents = append(l.agents, a)
		group.Go(func() error {
			err := a.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	l.group = group
	l.cancel = cancel
	logger.Log.Infow("Local workers started", "count", workers, "prefix", prefix)
	return nil
}

// Agents воркеры текущего пула
func (l *Local) Agents() []*agent.Agent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*agent.Agent(nil), l.agents...)
}

// Down отменяет оставшихся воркеров и ждет их завершения не дольше ctx
func (l *Local) Down(ctx context.Context) error {
	l.mu.Lock()
	group, cancel := l.group, l.cancel
	l.group, l.cancel = nil, nil
	l.mu.Unlock()

	if group == nil {
		return nil
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: local workers did not stop: %v", protocol.ErrTimeout, ctx.Err())
	}
}
