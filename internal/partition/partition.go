package partition

import (
	"fmt"

	"parallel-integrator/internal/protocol"
)

// Domain полная область интегрирования и общие параметры
type Domain struct {
	Equation string
	XStart   float64
	XEnd     float64
	YStart   float64
	YEnd     float64
	Step     float64
	RunID    string
}

// Split делит [XStart, XEnd) на workerCount полос равной ширины, по одной на
// воркера. Границы считаются по одной формуле, поэтому конец полосы i в
// точности равен началу полосы i+1, а последняя полоса заканчивается ровно в
// XEnd. Стоимость полос не учитывается.
func Split(d Domain, workerCount int) ([]protocol.TaskSpec, error) {
	if workerCount < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1, got %d", protocol.ErrConfiguration, workerCount)
	}

	width := (d.XEnd - d.XStart) / float64(workerCount)
	bound := func(i int) float64 {
		if i == workerCount {
			return d.XEnd
		}
		return d.XStart + float64(i)*width
	}

	tasks := make([]protocol.TaskSpec, workerCount)
	for i := range tasks {
		tasks[i] = protocol.TaskSpec{
			Equation: d.Equation,
			XStart:   bound(i),
			XEnd:     bound(i + 1),
			YStart:   d.YStart,
			YEnd:     d.YEnd,
			Step:     d.Step,
			Slice:    i,
			RunID:    d.RunID,
		}
	}
	return tasks, nil
}
