package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"parallel-integrator/internal/logger"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := logger.Log
	logger.Log = logger.New(zapcore.AddSync(&buf), level)
	t.Cleanup(func() { logger.Log = previous })
	return &buf
}

func TestLogHelpers(t *testing.T) {
	buf := capture(t, "info")

	logger.LogINFO("Worker started")
	logger.LogERROR("Worker failed: queue unavailable")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "\tINFO\t")
	assert.Contains(t, lines[0], "Worker started")
	assert.Contains(t, lines[1], "\tERROR\t")
	assert.Contains(t, lines[1], "Worker failed: queue unavailable")
}

func TestNew_Level(t *testing.T) {
	buf := capture(t, "warn")

	logger.Log.Infow("hidden")
	logger.Log.Warnw("shown", "slice", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "slice")
}

// Неизвестный уровень откатывается на info
func TestNew_UnknownLevel(t *testing.T) {
	buf := capture(t, "loud")

	logger.Log.Debugw("debug line")
	logger.Log.Infow("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}
