package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parallel-integrator/internal/protocol"
)

// RedisBroker очереди поверх списков Redis: RPUSH в хвост, BLPOP с головы
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker подключается к Redis и проверяет соединение. Повторных
// попыток нет: недоступность сервиса фатальна для прогона.
func NewRedisBroker(ctx context.Context, addr string, db int) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		DB:                    db,
		ContextTimeoutEnabled: true,
	})
	b := &RedisBroker{client: client}
	if err := b.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return b, nil
}

// NewRedisBrokerFromClient оборачивает готовый клиент
func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (r *RedisBroker) Push(ctx context.Context, channel string, payload string) error {
	if err := r.client.RPush(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %v", protocol.ErrQueueUnavailable, channel, err)
	}
	return nil
}

// Pop ждет не дольше timeout. BLPOP считает в секундах, поэтому ожидание
// короче секунды округляется до секунды. Нулевой timeout ждет до отмены ctx.
func (r *RedisBroker) Pop(ctx context.Context, channel string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		for {
			payload, err := r.Pop(ctx, channel, time.Second)
			if !errors.Is(err, ErrEmpty) {
				return payload, err
			}
		}
	}
	if timeout < time.Second {
		timeout = time.Second
	}
	result, err := r.client.BLPop(ctx, timeout, channel).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrEmpty
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: blpop %s: %v", protocol.ErrQueueUnavailable, channel, err)
	}
	// BLPOP возвращает пару (ключ, значение)
	if len(result) != 2 {
		return "", fmt.Errorf("%w: unexpected blpop reply of %d elements", protocol.ErrMalformedMessage, len(result))
	}
	return result[1], nil
}

func (r *RedisBroker) Purge(ctx context.Context, channels ...string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, channels...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", protocol.ErrQueueUnavailable, err)
	}
	return nil
}

func (r *RedisBroker) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrQueueUnavailable, err)
	}
	return nil
}

func (r *RedisBroker) Close() error {
	return r.client.Close()
}
