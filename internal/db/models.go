package db

import (
	"time"
)

// Run представляет один прогон интегрирования
type Run struct {
	ID                  int64           `json:"id"`
	RunID               string          `json:"run_id"`
	Equation            string          `json:"equation"`
	XStart              float64         `json:"x_start"`
	XEnd                float64         `json:"x_end"`
	YStart              float64         `json:"y_start"`
	YEnd                float64         `json:"y_end"`
	Step                float64         `json:"step"`
	WorkerCount         int             `json:"worker_count"`
	BarrierMode         string          `json:"barrier_mode"`
	Status              string          `json:"status"`
	Result              *float64        `json:"result"`
	ElapsedTimeSec      *float64        `json:"elapsed_time_sec"`
	CPUUsagePercentDiff *float64        `json:"cpu_usage_percent_diff"`
	MemoryUsageBytes    *int64          `json:"memory_usage_bytes"`
	ErrorMessage        *string         `json:"error_message"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Partials            []PartialResult `json:"partials,omitempty"`
}

// PartialResult результат одной полосы
type PartialResult struct {
	Slice         int     `json:"slice"`
	WorkerID      string  `json:"worker_id"`
	PartialResult float64 `json:"partial_result"`
}

// Статусы прогона
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)
