package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty ожидание Pop истекло, а сообщение так и не появилось
var ErrEmpty = errors.New("queue is empty")

// Broker общий FIFO-сервис очередей. Push добавляет в хвост, Pop блокирует
// не дольше timeout (timeout <= 0 ждет до отмены ctx) и забирает голову.
// Каждое сообщение достается ровно одному потребителю.
type Broker interface {
	Push(ctx context.Context, channel string, payload string) error
	Pop(ctx context.Context, channel string, timeout time.Duration) (string, error)
	Purge(ctx context.Context, channels ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// PopWait ждет сообщение порциями по poll до истечения total. Нулевой total
// означает ожидание без ограничения, но отмена ctx всегда прерывает ожидание.
func PopWait(ctx context.Context, b Broker, channel string, poll, total time.Duration) (string, error) {
	var deadline time.Time
	if total > 0 {
		deadline = time.Now().Add(total)
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		wait := poll
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return "", ErrEmpty
			}
			if left < wait {
				wait = left
			}
		}

		payload, err := b.Pop(ctx, channel, wait)
		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrEmpty) {
			return "", err
		}
	}
}
