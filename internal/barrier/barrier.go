package barrier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

// Mode способ доставки разрешения на старт
type Mode string

const (
	// Counting один общий FIFO: каждый воркер забирает один токен, кто первый
	// успел. Нехватка токенов оставляет воркеров ждать, потерянный токен
	// ничем не компенсируется.
	Counting Mode = "counting"
	// Broadcast персональный канал на каждого воркера: токен нельзя забрать
	// чужому воркеру, все разрешения уходят подряд после того, как каждый
	// воркер подтвердил, что держит задачу.
	Broadcast Mode = "broadcast"
)

// ParseMode разбирает режим из конфигурации
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Counting, Broadcast:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: unknown barrier mode %q", protocol.ErrConfiguration, s)
	}
}

// Barrier стартовый барьер поверх брокера очередей
type Barrier struct {
	broker   queue.Broker
	channels protocol.Channels
	mode     Mode
	poll     time.Duration
}

func New(broker queue.Broker, channels protocol.Channels, mode Mode, poll time.Duration) *Barrier {
	if poll <= 0 {
		poll = time.Second
	}
	return &Barrier{broker: broker, channels: channels, mode: mode, poll: poll}
}

func (b *Barrier) Mode() Mode {
	return b.mode
}

// NeedsClaims сообщает, должны ли воркеры подтверждать захват задачи
func (b *Barrier) NeedsClaims() bool {
	return b.mode == Broadcast
}

// Release выдает по одному разрешению на каждого воркера из workerIDs.
// В режиме Counting важно только их количество.
func (b *Barrier) Release(ctx context.Context, workerIDs []string) error {
	for _, id := range workerIDs {
		channel := b.channels.Barrier
		if b.mode == Broadcast {
			channel = b.channels.ReleaseFor(id)
		}
		if err := b.broker.Push(ctx, channel, protocol.ReleaseToken); err != nil {
			return fmt.Errorf("release %s: %w", id, err)
		}
	}
	return nil
}

// Wait блокирует воркера до получения разрешения, но не дольше timeout.
// Содержимое токена не проверяется.
func (b *Barrier) Wait(ctx context.Context, workerID string, timeout time.Duration) error {
	channel := b.channels.Barrier
	if b.mode == Broadcast {
		channel = b.channels.ReleaseFor(workerID)
	}
	_, err := queue.PopWait(ctx, b.broker, channel, b.poll, timeout)
	if errors.Is(err, queue.ErrEmpty) {
		return fmt.Errorf("%w: no release token on %s after %s", protocol.ErrTimeout, channel, timeout)
	}
	return err
}

// Reset очищает персональный канал воркера перед подтверждением захвата.
// Имена воркеров повторяются между прогонами, и токен прерванного прогона
// иначе отпустил бы воркера раньше остальных.
func (b *Barrier) Reset(ctx context.Context, workerID string) error {
	if b.mode != Broadcast {
		return nil
	}
	return b.broker.Purge(ctx, b.channels.ReleaseFor(workerID))
}
