package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandShutdown единственная управляющая команда очереди задач
const CommandShutdown = "shutdown"

// ReleaseToken содержимое токена стартового барьера. Воркеры его не читают,
// важен только факт появления сообщения.
const ReleaseToken = "start"

// TaskSpec представляет собой полосу области интегрирования для одного воркера
type TaskSpec struct {
	Equation string  `json:"equation"`
	XStart   float64 `json:"x_start"`
	XEnd     float64 `json:"x_end"`
	YStart   float64 `json:"y_start"`
	YEnd     float64 `json:"y_end"`
	Step     float64 `json:"step"`
	Slice    int     `json:"slice"`
	RunID    string  `json:"run_id,omitempty"`
}

// ControlMessage управляющее сообщение в очереди задач
type ControlMessage struct {
	Command string `json:"command"`
}

// PartialResult представляет собой результат одного воркера по одной полосе
type PartialResult struct {
	WorkerID      string  `json:"worker_id"`
	PartialResult float64 `json:"partial_result"`
	Slice         int     `json:"slice"`
	RunID         string  `json:"run_id,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// BenchmarkReport отчет сэмплера ресурсов за прогон
type BenchmarkReport struct {
	ElapsedTimeSec      float64 `json:"elapsed_time_sec"`
	CPUUsagePercentDiff float64 `json:"cpu_usage_percent_diff"`
	MemoryUsageBytes    uint64  `json:"memory_usage_bytes"`
}

// Event тип объявления воркера
type Event string

const (
	EventReady   Event = "ready"   // воркер запущен и слушает очередь задач
	EventClaimed Event = "claimed" // воркер взял задачу и ждет разрешения на старт
	EventStopped Event = "stopped" // воркер получил shutdown и завершается
)

// Valid сообщает, является ли e известным событием
func (e Event) Valid() bool {
	switch e {
	case EventReady, EventClaimed, EventStopped:
		return true
	default:
		return false
	}
}

// Announcement сообщение воркера координатору о смене жизненного цикла
type Announcement struct {
	WorkerID string `json:"worker_id"`
	Event    Event  `json:"event"`
	Slice    *int   `json:"slice,omitempty"`
}

// TaskEntry элемент очереди задач: либо задача, либо управляющая команда
type TaskEntry struct {
	Task    *TaskSpec
	Control *ControlMessage
}

// IsShutdown сообщает, является ли элемент командой завершения
func (e TaskEntry) IsShutdown() bool {
	return e.Control != nil && e.Control.Command == CommandShutdown
}

// wireTask используется для проверки наличия обязательных полей
type wireTask struct {
	Command  *string  `json:"command"`
	Equation *string  `json:"equation"`
	XStart   *float64 `json:"x_start"`
	XEnd     *float64 `json:"x_end"`
	YStart   *float64 `json:"y_start"`
	YEnd     *float64 `json:"y_end"`
	Step     *float64 `json:"step"`
	Slice    int      `json:"slice"`
	RunID    string   `json:"run_id"`
}

// DecodeTaskEntry разбирает элемент очереди задач. Каждый элемент сначала
// проверяется на поле command и только потом трактуется как TaskSpec.
func DecodeTaskEntry(payload string) (TaskEntry, error) {
	var w wireTask
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return TaskEntry{}, fmt.Errorf("%w: task entry: %v", ErrMalformedMessage, err)
	}

	if w.Command != nil {
		if *w.Command != CommandShutdown {
			return TaskEntry{}, fmt.Errorf("%w: unknown command %q", ErrMalformedMessage, *w.Command)
		}
		return TaskEntry{Control: &ControlMessage{Command: *w.Command}}, nil
	}

	var missing []string
	if w.Equation == nil {
		missing = append(missing, "equation")
	}
	if w.XStart == nil {
		missing = append(missing, "x_start")
	}
	if w.XEnd == nil {
		missing = append(missing, "x_end")
	}
	if w.YStart == nil {
		missing = append(missing, "y_start")
	}
	if w.YEnd == nil {
		missing = append(missing, "y_end")
	}
	if w.Step == nil {
		missing = append(missing, "step")
	}
	if len(missing) > 0 {
		return TaskEntry{}, fmt.Errorf("%w: task entry missing %s", ErrMalformedMessage, strings.Join(missing, ", "))
	}

	return TaskEntry{Task: &TaskSpec{
		Equation: *w.Equation,
		XStart:   *w.XStart,
		XEnd:     *w.XEnd,
		YStart:   *w.YStart,
		YEnd:     *w.YEnd,
		Step:     *w.Step,
		Slice:    w.Slice,
		RunID:    w.RunID,
	}}, nil
}

// DecodePartialResult разбирает сообщение из очереди результатов
func DecodePartialResult(payload string) (PartialResult, error) {
	var w struct {
		WorkerID      *string  `json:"worker_id"`
		PartialResult *float64 `json:"partial_result"`
		Slice         int      `json:"slice"`
		RunID         string   `json:"run_id"`
		Error         string   `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return PartialResult{}, fmt.Errorf("%w: partial result: %v", ErrMalformedMessage, err)
	}
	if w.WorkerID == nil || (w.PartialResult == nil && w.Error == "") {
		return PartialResult{}, fmt.Errorf("%w: partial result missing worker_id or partial_result", ErrMalformedMessage)
	}

	r := PartialResult{WorkerID: *w.WorkerID, Slice: w.Slice, RunID: w.RunID, Error: w.Error}
	if w.PartialResult != nil {
		r.PartialResult = *w.PartialResult
	}
	return r, nil
}

// DecodeAnnouncement разбирает объявление воркера
func DecodeAnnouncement(payload string) (Announcement, error) {
	var a Announcement
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return Announcement{}, fmt.Errorf("%w: announcement: %v", ErrMalformedMessage, err)
	}
	if a.WorkerID == "" || !a.Event.Valid() {
		return Announcement{}, fmt.Errorf("%w: announcement %q", ErrMalformedMessage, payload)
	}
	return a, nil
}

// DecodeBenchmarkReport разбирает последнюю строку вывода сэмплера
func DecodeBenchmarkReport(line string) (BenchmarkReport, error) {
	var w struct {
		ElapsedTimeSec      *float64 `json:"elapsed_time_sec"`
		CPUUsagePercentDiff *float64 `json:"cpu_usage_percent_diff"`
		MemoryUsageBytes    *uint64  `json:"memory_usage_bytes"`
	}
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return BenchmarkReport{}, fmt.Errorf("%w: benchmark report: %v", ErrMalformedMessage, err)
	}
	if w.ElapsedTimeSec == nil || w.CPUUsagePercentDiff == nil || w.MemoryUsageBytes == nil {
		return BenchmarkReport{}, fmt.Errorf("%w: benchmark report %q is incomplete", ErrMalformedMessage, line)
	}
	return BenchmarkReport{
		ElapsedTimeSec:      *w.ElapsedTimeSec,
		CPUUsagePercentDiff: *w.CPUUsagePercentDiff,
		MemoryUsageBytes:    *w.MemoryUsageBytes,
	}, nil
}

// Encode сериализует сообщение в строку для очереди
func Encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
