package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/orchestrator"
	"parallel-integrator/internal/protocol"
)

func TestCollector(t *testing.T) {
	c := orchestrator.NewCollector("run", 3)

	_, ok := c.Aggregate()
	assert.False(t, ok)

	// приходят не по порядку
	require.NoError(t, c.Add(protocol.PartialResult{WorkerID: "b", PartialResult: 1e16, Slice: 1, RunID: "run"}))
	require.NoError(t, c.Add(protocol.PartialResult{WorkerID: "c", PartialResult: -1e16, Slice: 2, RunID: "run"}))

	assert.ErrorIs(t, c.Add(protocol.PartialResult{Slice: 1, RunID: "run"}), orchestrator.ErrDuplicateResult)
	assert.ErrorIs(t, c.Add(protocol.PartialResult{Slice: 0, RunID: "other"}), orchestrator.ErrForeignResult)
	assert.ErrorIs(t, c.Add(protocol.PartialResult{Slice: 3, RunID: "run"}), orchestrator.ErrUnknownSlice)
	assert.ErrorIs(t, c.Add(protocol.PartialResult{Slice: -1, RunID: "run"}), orchestrator.ErrUnknownSlice)
	assert.False(t, c.Complete())
	assert.Equal(t, 2, c.Received())

	require.NoError(t, c.Add(protocol.PartialResult{WorkerID: "a", PartialResult: 1, Slice: 0, RunID: "run"}))
	assert.True(t, c.Complete())

	// сумма в порядке полос: (1 + 1e16) - 1e16 == 0 в float64
	sum, ok := c.Aggregate()
	require.True(t, ok)
	assert.Equal(t, 0.0, sum)

	partials := c.Partials()
	require.Len(t, partials, 3)
	assert.Equal(t, "a", partials[0].WorkerID)
	assert.Equal(t, "c", partials[2].WorkerID)
}

func TestCollector_WorkerError(t *testing.T) {
	c := orchestrator.NewCollector("run", 1)
	err := c.Add(protocol.PartialResult{WorkerID: "a", Slice: 0, RunID: "run", Error: "division by zero"})
	assert.ErrorIs(t, err, protocol.ErrEvaluation)
	assert.Equal(t, 0, c.Received())
}

func TestFormatResult(t *testing.T) {
	// сложение во время выполнения, константы Go складывает точно
	a, b := 0.1, 0.2
	tests := []struct {
		in   float64
		want string
	}{
		{4, "4.0"},
		{-2, "-2.0"},
		{0, "0.0"},
		{a + b, "0.30000000000000004"},
		{1e16, "1e+16"},
		{1.5e-5, "1.5e-05"},
		{123456.789, "123456.789"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orchestrator.FormatResult(tt.in))
	}
}
