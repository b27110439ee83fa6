package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/integrand"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Options таймауты воркера
type Options struct {
	// PollInterval длина одного блокирующего ожидания на очереди задач
	PollInterval time.Duration
	// ReleaseTimeout сколько ждать разрешения на старт после взятия задачи
	ReleaseTimeout time.Duration
}

// Agent воркер: берет полосы из очереди задач, ждет стартового барьера,
// считает частичную сумму и публикует ее в очередь результатов
type Agent struct {
	id       string
	broker   queue.Broker
	channels protocol.Channels
	barrier  *barrier.Barrier
	opts     Options

	state     atomic.Int32
	completed atomic.Int64
	programs  map[string]*integrand.Program
}

func New(id string, broker queue.Broker, channels protocol.Channels, b *barrier.Barrier, opts Options) *Agent {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	a := &Agent{
		id:       id,
		broker:   broker,
		channels: channels,
		barrier:  b,
		opts:     opts,
		programs: make(map[string]*integrand.Program),
	}
	a.state.Store(int32(Starting))
	return a
}

func (a *Agent) ID() string {
	return a.id
}

// State текущее состояние воркера, безопасно читать из других горутин
func (a *Agent) State() State {
	return State(a.state.Load())
}

// Completed сколько результатов опубликовал воркер
func (a *Agent) Completed() int64 {
	return a.completed.Load()
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
}

// Run обрабатывает очередь задач до команды shutdown или отмены ctx.
// Испорченные элементы очереди пропускаются, ошибка брокера завершает воркера.
func (a *Agent) Run(ctx context.Context) error {
	defer a.setState(Terminated)

	if err := a.announce(ctx, a.channels.Ready, protocol.EventReady, nil); err != nil {
		return err
	}
	logger.Log.Infow("Worker started", "worker_id", a.id, "barrier", a.barrier.Mode())

	for {
		a.setState(WaitingForTask)
		payload, err := queue.PopWait(ctx, a.broker, a.channels.Tasks, a.opts.PollInterval, 0)
		if err != nil {
			return err
		}

		entry, err := protocol.DecodeTaskEntry(payload)
		if err != nil {
			logger.Log.Errorw("Skipping task entry", "worker_id", a.id, "error", err)
			continue
		}

		if entry.IsShutdown() {
			logger.Log.Infow("Shutdown received", "worker_id", a.id, "completed", a.Completed())
			return a.announce(ctx, a.channels.Done, protocol.EventStopped, nil)
		}

		if err := a.handle(ctx, *entry.Task); err != nil {
			return err
		}
	}
}

func (a *Agent) handle(ctx context.Context, task protocol.TaskSpec) error {
	a.setState(WaitingForRelease)
	logger.Log.Infow("Task received", "worker_id", a.id, "slice", task.Slice, "run_id", task.RunID)

	if a.barrier.NeedsClaims() {
		if err := a.barrier.Reset(ctx, a.id); err != nil {
			return fmt.Errorf("reset release channel: %w", err)
		}
		slice := task.Slice
		if err := a.announce(ctx, a.channels.Claims, protocol.EventClaimed, &slice); err != nil {
			return err
		}
	}

	if err := a.barrier.Wait(ctx, a.id, a.opts.ReleaseTimeout); err != nil {
		if errors.Is(err, protocol.ErrTimeout) {
			logger.Log.Errorw("Start signal not received", "worker_id", a.id, "slice", task.Slice, "error", err)
			return a.publish(ctx, task, 0, err)
		}
		return err
	}

	a.setState(Computing)
	started := time.Now()
	value, err := a.compute(ctx, task)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		logger.Log.Errorw("Evaluation failed", "worker_id", a.id, "slice", task.Slice, "error", err)
	} else {
		logger.Log.Infow("Slice computed", "worker_id", a.id, "slice", task.Slice,
			"partial_result", value, "took", time.Since(started))
	}
	return a.publish(ctx, task, value, err)
}

func (a *Agent) compute(ctx context.Context, task protocol.TaskSpec) (float64, error) {
	program, ok := a.programs[task.Equation]
	if !ok {
		var err error
		program, err = integrand.Compile(task.Equation)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", protocol.ErrEvaluation, err)
		}
		a.programs[task.Equation] = program
	}
	return Integrate(ctx, program, task)
}

func (a *Agent) publish(ctx context.Context, task protocol.TaskSpec, value float64, taskErr error) error {
	result := protocol.PartialResult{
		WorkerID:      a.id,
		PartialResult: value,
		Slice:         task.Slice,
		RunID:         task.RunID,
	}
	if taskErr != nil {
		result.PartialResult = 0
		result.Error = taskErr.Error()
	}

	payload, err := protocol.Encode(result)
	if err != nil {
		return err
	}
	if err := a.broker.Push(ctx, a.channels.Results, payload); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	a.completed.Add(1)
	return nil
}

func (a *Agent) announce(ctx context.Context, channel string, event protocol.Event, slice *int) error {
	payload, err := protocol.Encode(protocol.Announcement{WorkerID: a.id, Event: event, Slice: slice})
	if err != nil {
		return err
	}
	if err := a.broker.Push(ctx, channel, payload); err != nil {
		return fmt.Errorf("announce %s: %w", event, err)
	}
	return nil
}

// StartAgent запускает одного воркера по настройкам из config.AppConfig
// и блокируется до команды shutdown или отмены ctx
func StartAgent(ctx context.Context) error {
	cfg := config.AppConfig

	mode, err := barrier.ParseMode(cfg.BarrierMode)
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	broker, err := Connect(connectCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer broker.Close()

	id := ResolveWorkerID(cfg.WorkerID)
	channels := cfg.Channels()
	a := New(id, broker, channels, barrier.New(broker, channels, mode, cfg.PollInterval), Options{
		PollInterval:   cfg.PollInterval,
		ReleaseTimeout: cfg.ReleaseTimeout,
	})
	return a.Run(ctx)
}
