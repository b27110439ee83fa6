package agent

import (
	"context"
	"fmt"

	"parallel-integrator/internal/integrand"
	"parallel-integrator/internal/protocol"
)

// Integrate считает левую сумму Римана f(x, y) * step² по полосе задачи.
// Обе оси полуоткрыты: точки x = XStart + i*step < XEnd и
// y = YStart + j*step < YEnd. Узлы считаются от индекса, а не накоплением
// шага, чтобы ошибка округления не добавляла лишний столбец.
func Integrate(ctx context.Context, program *integrand.Program, task protocol.TaskSpec) (float64, error) {
	if task.Step <= 0 {
		return 0, fmt.Errorf("%w: step must be positive, got %g", protocol.ErrMalformedMessage, task.Step)
	}

	area := task.Step * task.Step
	total := 0.0
	for i := 0; ; i++ {
		x := task.XStart + float64(i)*task.Step
		if x >= task.XEnd {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for j := 0; ; j++ {
			y := task.YStart + float64(j)*task.Step
			if y >= task.YEnd {
				break
			}
			value, err := program.Eval(x, y)
			if err != nil {
				return 0, err
			}
			total += value * area
		}
	}
	return total, nil
}
