package queue

import (
	"context"
	"sync"
	"time"
)

type memoryQueue struct {
	items []string
	// закрывается и заменяется при каждом Push, будит всех ждущих
	notify chan struct{}
}

// MemoryBroker брокер в памяти процесса. Используется локальным пулом
// воркеров, gRPC-сервисом очередей и в тестах.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]*memoryQueue)}
}

func (m *MemoryBroker) queue(channel string) *memoryQueue {
	q, ok := m.queues[channel]
	if !ok {
		q = &memoryQueue{notify: make(chan struct{})}
		m.queues[channel] = q
	}
	return q
}

func (m *MemoryBroker) Push(ctx context.Context, channel string, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queue(channel)
	q.items = append(q.items, payload)
	close(q.notify)
	q.notify = make(chan struct{})
	return nil
}

func (m *MemoryBroker) Pop(ctx context.Context, channel string, timeout time.Duration) (string, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		m.mu.Lock()
		q := m.queue(channel)
		if len(q.items) > 0 {
			payload := q.items[0]
			q.items = q.items[1:]
			m.mu.Unlock()
			return payload, nil
		}
		notify := q.notify
		m.mu.Unlock()

		select {
		case <-notify:
		case <-timer:
			return "", ErrEmpty
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (m *MemoryBroker) Purge(ctx context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channel := range channels {
		if q, ok := m.queues[channel]; ok {
			q.items = nil
		}
	}
	return nil
}

// Len количество сообщений в канале
func (m *MemoryBroker) Len(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[channel]; ok {
		return len(q.items)
	}
	return 0
}

func (m *MemoryBroker) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryBroker) Close() error {
	return nil
}
