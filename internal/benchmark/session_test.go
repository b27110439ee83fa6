package benchmark_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/benchmark"
	"parallel-integrator/internal/protocol"
)

// TestHelperProcess не тест: его запускает helperCommand как дочерний
// процесс сэмплера
func TestHelperProcess(t *testing.T) {
	switch os.Getenv("BENCHMARK_HELPER_MODE") {
	case "sampler":
		probe := &fakeProbe{cpu: []float64{1, 3}, rss: []uint64{2048}}
		if err := benchmark.RunSampler(context.Background(), os.Stdin, os.Stdout, probe, 0); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	case "garbage":
		fmt.Println("[Benchmark] Measurement started...")
		fmt.Println("not a report")
		os.Exit(0)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	}
}

func helperCommand() string {
	return fmt.Sprintf("%q -test.run=^TestHelperProcess$", os.Args[0])
}

func TestSession_StopParsesLastLine(t *testing.T) {
	session, err := benchmark.Start(helperCommand(), "BENCHMARK_HELPER_MODE=sampler")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := session.Stop(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, report.CPUUsagePercentDiff, 1e-9)
	assert.Equal(t, uint64(2048), report.MemoryUsageBytes)
	assert.Contains(t, session.Output()[0], "Measurement started")
}

func TestSession_MalformedReport(t *testing.T) {
	session, err := benchmark.Start(helperCommand(), "BENCHMARK_HELPER_MODE=garbage")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = session.Stop(ctx)
	assert.ErrorIs(t, err, protocol.ErrMalformedMessage)
}

func TestSession_StopTimeoutKills(t *testing.T) {
	session, err := benchmark.Start(helperCommand(), "BENCHMARK_HELPER_MODE=hang")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = session.Stop(ctx)
	assert.ErrorIs(t, err, protocol.ErrTimeout)
}

func TestStart_BadCommand(t *testing.T) {
	_, err := benchmark.Start("")
	assert.ErrorIs(t, err, protocol.ErrConfiguration)

	_, err = benchmark.Start(`"unterminated`)
	assert.ErrorIs(t, err, protocol.ErrConfiguration)

	_, err = benchmark.Start("/nonexistent/sampler-binary")
	assert.Error(t, err)
}
