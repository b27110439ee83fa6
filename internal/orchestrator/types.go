package orchestrator

import (
	"errors"
	"fmt"
	"sync"

	"parallel-integrator/internal/protocol"
)

// Errors
var (
	ErrForeignResult   = errors.New("result belongs to another run")
	ErrDuplicateResult = errors.New("duplicate result for slice")
	ErrUnknownSlice    = errors.New("result for unknown slice")
	ErrRunInProgress   = errors.New("another run is in progress")
)

// Collector собирает частичные результаты одного прогона по номерам полос
type Collector struct {
	mu       sync.Mutex
	runID    string
	want     int
	received map[int]protocol.PartialResult
}

func NewCollector(runID string, want int) *Collector {
	return &Collector{runID: runID, want: want, received: make(map[int]protocol.PartialResult, want)}
}

// Add принимает результат. Чужой прогон, неизвестная полоса и повтор
// отклоняются, результат с ошибкой воркера превращается в ErrEvaluation.
func (c *Collector) Add(result protocol.PartialResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result.RunID != c.runID {
		return fmt.Errorf("%w: %q", ErrForeignResult, result.RunID)
	}
	if result.Slice < 0 || result.Slice >= c.want {
		return fmt.Errorf("%w: %d", ErrUnknownSlice, result.Slice)
	}
	if _, ok := c.received[result.Slice]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateResult, result.Slice)
	}
	if result.Error != "" {
		return fmt.Errorf("%w: worker %s failed slice %d: %s", protocol.ErrEvaluation, result.WorkerID, result.Slice, result.Error)
	}
	c.received[result.Slice] = result
	return nil
}

// Received сколько полос уже получено
func (c *Collector) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func (c *Collector) Complete() bool {
	return c.Received() == c.want
}

// Aggregate сумма по полосам в порядке их номеров, так что округление не
// зависит от порядка прихода. Пока собраны не все полосы, ok == false.
func (c *Collector) Aggregate() (sum float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.received) != c.want {
		return 0, false
	}
	for i := 0; i < c.want; i++ {
		sum += c.received[i].PartialResult
	}
	return sum, true
}

// Partials результаты в порядке полос
func (c *Collector) Partials() []protocol.PartialResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	partials := make([]protocol.PartialResult, 0, len(c.received))
	for i := 0; i < c.want; i++ {
		if p, ok := c.received[i]; ok {
			partials = append(partials, p)
		}
	}
	return partials
}
