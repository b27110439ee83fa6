package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"parallel-integrator/internal/integrand"
	"parallel-integrator/internal/protocol"
)

var validate = validator.New()

// Task описание задачи интегрирования (task.json)
type Task struct {
	Equation    string  `json:"equation" validate:"required"`
	XStart      float64 `json:"x_start"`
	XEnd        float64 `json:"x_end" validate:"gtfield=XStart"`
	YStart      float64 `json:"y_start"`
	YEnd        float64 `json:"y_end" validate:"gtfield=YStart"`
	Step        float64 `json:"step" validate:"gt=0"`
	WorkerCount int     `json:"worker_count,omitempty" validate:"gte=0"`
}

// LoadTask читает и проверяет описание задачи из файла
func LoadTask(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, fmt.Errorf("%w: read task file: %v", protocol.ErrConfiguration, err)
	}
	return ParseTask(data)
}

// ParseTask разбирает и проверяет описание задачи. Все обязательные поля
// должны присутствовать, уравнение должно компилироваться.
func ParseTask(data []byte) (Task, error) {
	entry, err := protocol.DecodeTaskEntry(string(data))
	if err != nil {
		return Task{}, fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
	}
	if entry.Task == nil {
		return Task{}, fmt.Errorf("%w: task description is a control message", protocol.ErrConfiguration)
	}

	var extra struct {
		WorkerCount int `json:"worker_count"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return Task{}, fmt.Errorf("%w: worker_count: %v", protocol.ErrConfiguration, err)
	}

	task := Task{
		Equation:    entry.Task.Equation,
		XStart:      entry.Task.XStart,
		XEnd:        entry.Task.XEnd,
		YStart:      entry.Task.YStart,
		YEnd:        entry.Task.YEnd,
		Step:        entry.Task.Step,
		WorkerCount: extra.WorkerCount,
	}
	if err := task.Validate(); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Validate проверяет границы, шаг и синтаксис уравнения
func (t Task) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
	}
	if _, err := integrand.Compile(t.Equation); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
	}
	return nil
}

// ResolveWorkerCount возвращает число воркеров из задачи или из конфигурации
func (t Task) ResolveWorkerCount(fallback int) (int, error) {
	n := t.WorkerCount
	if n == 0 {
		n = fallback
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: worker count must be at least 1, got %d", protocol.ErrConfiguration, n)
	}
	return n, nil
}
