package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/benchmark"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/db"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/partition"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/provision"
	"parallel-integrator/internal/queue"
)

// Sampler запущенный замер ресурсов
type Sampler interface {
	Stop(ctx context.Context) (protocol.BenchmarkReport, error)
	Kill()
}

// SamplerFunc запускает замер ресурсов на время прогона
type SamplerFunc func() (Sampler, error)

// Options настройки координатора
type Options struct {
	Channels        protocol.Channels
	Mode            barrier.Mode
	PollInterval    time.Duration
	ReadyTimeout    time.Duration
	ReleaseTimeout  time.Duration
	ResultTimeout   time.Duration
	ShutdownTimeout time.Duration
	OutputDir       string
	// AwaitReady ждать объявлений ready после поднятия пула. Выключается,
	// когда воркеры запущены заранее и их объявления уже не застать.
	AwaitReady bool
	Sampler    SamplerFunc
}

// OptionsFromConfig собирает настройки из конфигурации процесса. Сэмплер
// наблюдает за памятью самого координатора.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	mode, err := barrier.ParseMode(cfg.BarrierMode)
	if err != nil {
		return Options{}, err
	}

	command := cfg.SamplerCommand
	env := []string{
		"SAMPLER_TARGET_PID=" + strconv.Itoa(os.Getpid()),
		"SAMPLER_INTERVAL_MS=" + strconv.FormatInt(cfg.SamplerInterval.Milliseconds(), 10),
	}

	return Options{
		Channels:        cfg.Channels(),
		Mode:            mode,
		PollInterval:    cfg.PollInterval,
		ReadyTimeout:    cfg.ReadyTimeout,
		ReleaseTimeout:  cfg.ReleaseTimeout,
		ResultTimeout:   cfg.ResultTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		OutputDir:       cfg.OutputDir,
		AwaitReady:      cfg.Provisioner != config.ProvisionerNone,
		Sampler: func() (Sampler, error) {
			session, err := benchmark.Start(command, env...)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
	}, nil
}

// Request описание одного прогона
type Request struct {
	RunID   string
	Task    config.Task
	Workers int
}

// Outcome итог успешного прогона
type Outcome struct {
	RunID     string
	Aggregate float64
	Partials  []protocol.PartialResult
	Report    protocol.BenchmarkReport
}

// Coordinator проводит прогон: раздает полосы, открывает стартовый барьер,
// собирает частичные результаты, останавливает воркеров и сохраняет итог
type Coordinator struct {
	broker      queue.Broker
	provisioner provision.Provisioner
	opts        Options
}

func NewCoordinator(broker queue.Broker, provisioner provision.Provisioner, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Coordinator{broker: broker, provisioner: provisioner, opts: opts}
}

// Run выполняет Begin и Execute
func (c *Coordinator) Run(ctx context.Context, req Request) (Outcome, error) {
	req, err := c.Begin(req)
	if err != nil {
		return Outcome{}, err
	}
	return c.Execute(ctx, req)
}

// Begin проверяет задачу и число воркеров, назначает идентификатор прогона
// и записывает прогон в историю. До очереди дело не доходит.
func (c *Coordinator) Begin(req Request) (Request, error) {
	if err := req.Task.Validate(); err != nil {
		return Request{}, err
	}
	if req.Workers < 1 {
		return Request{}, fmt.Errorf("%w: worker count must be at least 1, got %d", protocol.ErrConfiguration, req.Workers)
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	err := recordCreate(&db.Run{
		RunID:       req.RunID,
		Equation:    req.Task.Equation,
		XStart:      req.Task.XStart,
		XEnd:        req.Task.XEnd,
		YStart:      req.Task.YStart,
		YEnd:        req.Task.YEnd,
		Step:        req.Task.Step,
		WorkerCount: req.Workers,
		BarrierMode: string(c.opts.Mode),
	})
	if err != nil {
		return Request{}, err
	}
	return req, nil
}

// Execute проводит подготовленный прогон. Первая ошибка прерывает прогон:
// сэмплер убивается, пул останавливается, прогон помечается как error.
func (c *Coordinator) Execute(ctx context.Context, req Request) (outcome Outcome, err error) {
	var (
		provisioned bool
		sampler     Sampler
	)
	defer func() {
		if err == nil {
			return
		}
		logger.Log.Errorw("Run aborted", "run_id", req.RunID, "error", err)
		if sampler != nil {
			sampler.Kill()
		}
		if provisioned {
			c.teardown(req.Workers)
		}
		recordFail(req.RunID, err)
	}()

	tasks, err := partition.Split(partition.Domain{
		Equation: req.Task.Equation,
		XStart:   req.Task.XStart,
		XEnd:     req.Task.XEnd,
		YStart:   req.Task.YStart,
		YEnd:     req.Task.YEnd,
		Step:     req.Task.Step,
		RunID:    req.RunID,
	}, req.Workers)
	if err != nil {
		return Outcome{}, err
	}

	ch := c.opts.Channels
	logger.Log.Infow("Run started", "run_id", req.RunID, "equation", req.Task.Equation,
		"workers", req.Workers, "barrier", c.opts.Mode)

	if err := c.broker.Purge(ctx, ch.All()...); err != nil {
		return Outcome{}, fmt.Errorf("purge channels: %w", err)
	}

	provisioned = true
	if err := c.provisioner.Up(ctx, req.Workers); err != nil {
		return Outcome{}, fmt.Errorf("provision workers: %w", err)
	}

	var ready []protocol.Announcement
	if c.opts.AwaitReady {
		if ready, err = c.awaitAnnouncements(ctx, ch.Ready, protocol.EventReady, req.Workers, c.opts.ReadyTimeout); err != nil {
			return Outcome{}, err
		}
		logger.Log.Infow("Workers ready", "count", len(ready))
	}

	for _, task := range tasks {
		payload, err := protocol.Encode(task)
		if err != nil {
			return Outcome{}, err
		}
		if err := c.broker.Push(ctx, ch.Tasks, payload); err != nil {
			return Outcome{}, fmt.Errorf("push task %d: %w", task.Slice, err)
		}
	}
	logger.Log.Infow("Tasks pushed", "count", len(tasks))
	recordRunning(req.RunID)

	if c.opts.Sampler != nil {
		started, startErr := c.opts.Sampler()
		if startErr != nil {
			return Outcome{}, fmt.Errorf("start sampler: %w", startErr)
		}
		sampler = started
	}

	if err := c.release(ctx, req.Workers, ready); err != nil {
		return Outcome{}, err
	}

	collector := NewCollector(req.RunID, req.Workers)
	if err := c.collectResults(ctx, collector); err != nil {
		return Outcome{}, err
	}
	aggregate, _ := collector.Aggregate()
	logger.Log.Infow("All partial results collected", "run_id", req.RunID, "result", aggregate)

	var report protocol.BenchmarkReport
	if sampler != nil {
		stopCtx, cancel := context.WithTimeout(ctx, c.opts.ShutdownTimeout)
		report, err = sampler.Stop(stopCtx)
		cancel()
		sampler = nil
		if err != nil {
			return Outcome{}, fmt.Errorf("benchmark: %w", err)
		}
	}

	c.shutdownWorkers(ctx, req.Workers)
	provisioned = false
	if err := c.provisioner.Down(ctx); err != nil {
		logger.Log.Errorw("Failed to stop workers", "error", err)
	}

	outcome = Outcome{
		RunID:     req.RunID,
		Aggregate: aggregate,
		Partials:  collector.Partials(),
		Report:    report,
	}
	if err := persistOutput(c.opts.OutputDir, aggregate, report); err != nil {
		return Outcome{}, err
	}
	if err := recordFinish(req.RunID, outcome); err != nil {
		return Outcome{}, err
	}

	logger.Log.Infow("Run completed", "run_id", req.RunID, "result", aggregate,
		"elapsed_time_sec", report.ElapsedTimeSec, "memory_usage_bytes", report.MemoryUsageBytes)
	return outcome, nil
}

// release открывает стартовый барьер. В широковещательном режиме сначала
// ждет, пока каждый воркер подтвердит захват задачи.
func (c *Coordinator) release(ctx context.Context, workers int, ready []protocol.Announcement) error {
	b := barrier.New(c.broker, c.opts.Channels, c.opts.Mode, c.opts.PollInterval)

	var ids []string
	if b.NeedsClaims() {
		claims, err := c.awaitAnnouncements(ctx, c.opts.Channels.Claims, protocol.EventClaimed, workers, c.opts.ReleaseTimeout)
		if err != nil {
			return err
		}
		for _, a := range claims {
			ids = append(ids, a.WorkerID)
		}
	} else {
		for _, a := range ready {
			ids = append(ids, a.WorkerID)
		}
		for len(ids) < workers {
			ids = append(ids, "worker-"+strconv.Itoa(len(ids)))
		}
	}

	if err := b.Release(ctx, ids); err != nil {
		return err
	}
	logger.Log.Infow("Sent start signal to workers", "count", len(ids), "barrier", b.Mode())
	return nil
}

// collectResults читает очередь результатов, пока не соберет все полосы
// или не истечет ResultTimeout
func (c *Coordinator) collectResults(ctx context.Context, collector *Collector) error {
	deadline := time.Now().Add(c.opts.ResultTimeout)
	for !collector.Complete() {
		left := time.Until(deadline)
		if left <= 0 {
			return c.resultTimeout(collector)
		}

		payload, err := queue.PopWait(ctx, c.broker, c.opts.Channels.Results, c.opts.PollInterval, left)
		if errors.Is(err, queue.ErrEmpty) {
			return c.resultTimeout(collector)
		}
		if err != nil {
			return err
		}

		result, err := protocol.DecodePartialResult(payload)
		if err != nil {
			logger.Log.Errorw("Skipping result", "error", err)
			continue
		}
		if err := collector.Add(result); err != nil {
			if errors.Is(err, protocol.ErrEvaluation) {
				return err
			}
			logger.Log.Warnw("Skipping result", "worker_id", result.WorkerID, "error", err)
			continue
		}
		logger.Log.Infow("Partial result received", "worker_id", result.WorkerID,
			"slice", result.Slice, "partial_result", result.PartialResult,
			"received", collector.Received(), "expected", collector.want)
	}
	return nil
}

func (c *Coordinator) resultTimeout(collector *Collector) error {
	return fmt.Errorf("%w: received %d of %d partial results after %s",
		protocol.ErrTimeout, collector.Received(), collector.want, c.opts.ResultTimeout)
}

// awaitAnnouncements ждет want различных воркеров с событием event
func (c *Coordinator) awaitAnnouncements(ctx context.Context, channel string, event protocol.Event, want int, timeout time.Duration) ([]protocol.Announcement, error) {
	seen := make(map[string]bool, want)
	announcements := make([]protocol.Announcement, 0, want)
	deadline := time.Now().Add(timeout)

	for len(announcements) < want {
		left := time.Until(deadline)
		var payload string
		err := queue.ErrEmpty
		if left > 0 {
			payload, err = queue.PopWait(ctx, c.broker, channel, c.opts.PollInterval, left)
		}
		if errors.Is(err, queue.ErrEmpty) {
			return announcements, fmt.Errorf("%w: received %d of %d %s announcements after %s",
				protocol.ErrTimeout, len(announcements), want, event, timeout)
		}
		if err != nil {
			return announcements, err
		}

		a, err := protocol.DecodeAnnouncement(payload)
		if err != nil || a.Event != event {
			logger.Log.Warnw("Skipping announcement", "channel", channel, "payload", payload, "error", err)
			continue
		}
		if seen[a.WorkerID] {
			continue
		}
		seen[a.WorkerID] = true
		announcements = append(announcements, a)
		logger.Log.Debugw("Announcement received", "worker_id", a.WorkerID, "event", a.Event)
	}
	return announcements, nil
}

// shutdownWorkers отправляет по одной команде shutdown на воркера и ждет
// подтверждений. Нехватка подтверждений только логируется.
func (c *Coordinator) shutdownWorkers(ctx context.Context, workers int) {
	payload, err := protocol.Encode(protocol.ControlMessage{Command: protocol.CommandShutdown})
	if err != nil {
		logger.Log.Errorw("Failed to encode shutdown", "error", err)
		return
	}
	for i := 0; i < workers; i++ {
		if err := c.broker.Push(ctx, c.opts.Channels.Tasks, payload); err != nil {
			logger.Log.Errorw("Failed to send shutdown", "error", err)
			return
		}
	}

	stopped, err := c.awaitAnnouncements(ctx, c.opts.Channels.Done, protocol.EventStopped, workers, c.opts.ShutdownTimeout)
	if err != nil {
		logger.Log.Warnw("Not all workers confirmed shutdown", "stopped", len(stopped), "expected", workers, "error", err)
		return
	}
	logger.Log.Infow("Workers stopped", "count", len(stopped))
}

// teardown останавливает пул после прерванного прогона без учета ctx прогона
func (c *Coordinator) teardown(workers int) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownTimeout)
	defer cancel()

	payload, _ := protocol.Encode(protocol.ControlMessage{Command: protocol.CommandShutdown})
	for i := 0; i < workers; i++ {
		if err := c.broker.Push(ctx, c.opts.Channels.Tasks, payload); err != nil {
			break
		}
	}
	if err := c.provisioner.Down(ctx); err != nil {
		logger.Log.Errorw("Failed to stop workers after abort", "error", err)
	}
}
