package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/config"
	"parallel-integrator/internal/protocol"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.QueueBackend)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, 7, cfg.WorkerCount)
	assert.Equal(t, config.BarrierBroadcast, cfg.BarrierMode)
	assert.Equal(t, config.ProvisionerCompose, cfg.Provisioner)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "task_queue", cfg.Channels().Tasks)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("WORKER_COUNT=3\nQUEUE_NAMESPACE=lab\n"), 0644))
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("BARRIER_MODE", "counting")
	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("WORKER_COUNT", "5")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, config.BarrierCounting, cfg.BarrierMode)
	assert.Equal(t, "lab:result_queue", cfg.Channels().Results)

	// godotenv.Load выставил переменную в окружении процесса
	os.Unsetenv("QUEUE_NAMESPACE")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Zero workers", "WORKER_COUNT", "0"},
		{"Not a number", "REDIS_PORT", "redis"},
		{"Unknown backend", "QUEUE_BACKEND", "kafka"},
		{"Unknown barrier", "BARRIER_MODE", "gossip"},
		{"Zero poll", "POLL_INTERVAL_MS", "0"},
		{"Memory backend with compose", "QUEUE_BACKEND", "memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load("")
			assert.ErrorIs(t, err, protocol.ErrConfiguration)
		})
	}
}

func TestParseTask(t *testing.T) {
	task, err := config.ParseTask([]byte(`{"equation":"x*y","x_start":0,"x_end":2,"y_start":-1,"y_end":1,"step":0.5,"worker_count":4}`))
	require.NoError(t, err)
	assert.Equal(t, "x*y", task.Equation)
	assert.Equal(t, -1.0, task.YStart)
	assert.Equal(t, 4, task.WorkerCount)

	n, err := task.ResolveWorkerCount(7)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestParseTask_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Empty step", `{"equation":"1","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0}`},
		{"Negative step", `{"equation":"1","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":-1}`},
		{"Equal x bounds", `{"equation":"1","x_start":1,"x_end":1,"y_start":0,"y_end":1,"step":0.1}`},
		{"Reversed y bounds", `{"equation":"1","x_start":0,"x_end":1,"y_start":1,"y_end":0,"step":0.1}`},
		{"Missing equation", `{"x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0.1}`},
		{"Unknown variable", `{"equation":"z","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0.1}`},
		{"Floor division", `{"equation":"x // 2","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0.1}`},
		{"Negative workers", `{"equation":"1","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0.1,"worker_count":-2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseTask([]byte(tt.body))
			assert.ErrorIs(t, err, protocol.ErrConfiguration)
		})
	}
}

func TestResolveWorkerCount(t *testing.T) {
	task := config.Task{}
	n, err := task.ResolveWorkerCount(7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = task.ResolveWorkerCount(0)
	assert.ErrorIs(t, err, protocol.ErrConfiguration)
}

func TestLoadTask_MissingFile(t *testing.T) {
	_, err := config.LoadTask(filepath.Join(t.TempDir(), "task.json"))
	assert.ErrorIs(t, err, protocol.ErrConfiguration)
}
