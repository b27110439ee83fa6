package barrier_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/protocol"
	"parallel-integrator/internal/queue"
)

func TestParseMode(t *testing.T) {
	m, err := barrier.ParseMode("broadcast")
	require.NoError(t, err)
	assert.Equal(t, barrier.Broadcast, m)

	_, err = barrier.ParseMode("gossip")
	assert.ErrorIs(t, err, protocol.ErrConfiguration)
}

func TestBroadcast_ReleasesEveryWorker(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	b := barrier.New(broker, protocol.NewChannels("t"), barrier.Broadcast, 10*time.Millisecond)
	workers := []string{"w1", "w2", "w3"}

	var released atomic.Int32
	var wg sync.WaitGroup
	for _, id := range workers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := b.Wait(ctx, id, time.Second); err == nil {
				released.Add(1)
			}
		}(id)
	}

	require.NoError(t, b.Release(ctx, workers))
	wg.Wait()
	assert.Equal(t, int32(3), released.Load())
}

// Персональный токен не может забрать другой воркер
func TestBroadcast_TokenCannotBeStolen(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	b := barrier.New(broker, protocol.NewChannels(""), barrier.Broadcast, 10*time.Millisecond)

	require.NoError(t, b.Release(ctx, []string{"w1"}))

	err := b.Wait(ctx, "intruder", 50*time.Millisecond)
	assert.ErrorIs(t, err, protocol.ErrTimeout)

	require.NoError(t, b.Wait(ctx, "w1", 50*time.Millisecond))
}

// Нехватка токенов в режиме Counting оставляет лишнего воркера ждать
func TestCounting_ShortfallBlocks(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	channels := protocol.NewChannels("")
	b := barrier.New(broker, channels, barrier.Counting, 10*time.Millisecond)

	require.NoError(t, b.Release(ctx, []string{"only-one"}))
	assert.Equal(t, 1, broker.Len(channels.Barrier))

	errs := make(chan error, 2)
	for _, id := range []string{"w1", "w2"} {
		go func(id string) { errs <- b.Wait(ctx, id, 100*time.Millisecond) }(id)
	}

	var ok, timedOut int
	for i := 0; i < 2; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, protocol.ErrTimeout)
			timedOut++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, timedOut)
}

// Токен, оставшийся от прерванного прогона, не отпускает воркера с тем же именем
func TestBroadcast_ResetDropsStaleToken(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	channels := protocol.NewChannels("")
	b := barrier.New(broker, channels, barrier.Broadcast, 10*time.Millisecond)

	require.NoError(t, b.Release(ctx, []string{"w1", "w2"}))
	require.NoError(t, b.Reset(ctx, "w1"))
	assert.Equal(t, 0, broker.Len(channels.ReleaseFor("w1")))
	assert.Equal(t, 1, broker.Len(channels.ReleaseFor("w2")))

	err := b.Wait(ctx, "w1", 50*time.Millisecond)
	assert.ErrorIs(t, err, protocol.ErrTimeout)

	require.NoError(t, b.Release(ctx, []string{"w1"}))
	assert.NoError(t, b.Wait(ctx, "w1", time.Second))
}

// В режиме Counting общий канал не принадлежит воркеру и не очищается
func TestCounting_ResetKeepsSharedTokens(t *testing.T) {
	ctx := context.Background()
	broker := queue.NewMemoryBroker()
	channels := protocol.NewChannels("")
	b := barrier.New(broker, channels, barrier.Counting, 10*time.Millisecond)

	require.NoError(t, b.Release(ctx, []string{"w1"}))
	require.NoError(t, b.Reset(ctx, "w1"))
	assert.Equal(t, 1, broker.Len(channels.Barrier))
}
