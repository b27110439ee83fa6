package orchestrator

import (
	"context"
	"sync"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/logger"
)

// RunnerInstance используется HTTP обработчиками
var RunnerInstance *Runner

// Runner запускает прогоны в фоне, не больше одного одновременно:
// прогоны делят одни и те же каналы очереди и пул воркеров
type Runner struct {
	coordinator    *Coordinator
	defaultWorkers int

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewRunner(coordinator *Coordinator, defaultWorkers int) *Runner {
	return &Runner{coordinator: coordinator, defaultWorkers: defaultWorkers}
}

// Start проверяет задачу, записывает прогон и запускает его в фоне.
// Возвращает ErrRunInProgress, если предыдущий прогон еще идет.
func (r *Runner) Start(ctx context.Context, task config.Task) (string, error) {
	workers, err := task.ResolveWorkerCount(r.defaultWorkers)
	if err != nil {
		return "", err
	}
	if !r.mu.TryLock() {
		return "", ErrRunInProgress
	}

	req, err := r.coordinator.Begin(Request{Task: task, Workers: workers})
	if err != nil {
		r.mu.Unlock()
		return "", err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.mu.Unlock()
		if _, err := r.coordinator.Execute(ctx, req); err != nil {
			logger.Log.Errorw("Background run failed", "run_id", req.RunID, "error", err)
		}
	}()
	return req.RunID, nil
}

// Wait ждет завершения запущенного прогона
func (r *Runner) Wait() {
	r.wg.Wait()
}
