package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parallel-integrator/internal/protocol"
)

var (
	ErrRunNotFound = errors.New("run not found")
)

// CreateRun сохраняет новый прогон в статусе pending
func CreateRun(run *Run) error {
	res, err := DB.Exec(
		`INSERT INTO runs (run_id, equation, x_start, x_end, y_start, y_end, step,
         worker_count, barrier_mode, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Equation, run.XStart, run.XEnd, run.YStart, run.YEnd, run.Step,
		run.WorkerCount, run.BarrierMode, StatusPending,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	run.Status = StatusPending
	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	return nil
}

func updateStatus(runID, status string) error {
	res, err := DB.Exec(
		`UPDATE runs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		status, runID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// MarkRunning переводит прогон в статус running после раздачи задач
func MarkRunning(runID string) error {
	return updateStatus(runID, StatusRunning)
}

// FinishRun сохраняет итог, отчет сэмплера и частичные результаты одной транзакцией
func FinishRun(runID string, result float64, report protocol.BenchmarkReport, partials []protocol.PartialResult) error {
	tx, err := DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE runs SET status = ?, result = ?, elapsed_time_sec = ?, cpu_usage_percent_diff = ?,
         memory_usage_bytes = ?, error_message = NULL, updated_at = CURRENT_TIMESTAMP
         WHERE run_id = ?`,
		StatusCompleted, result, report.ElapsedTimeSec, report.CPUUsagePercentDiff,
		int64(report.MemoryUsageBytes), runID,
	)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}

	for _, p := range partials {
		if _, err := tx.Exec(
			`INSERT INTO partial_results (run_id, slice, worker_id, partial_result) VALUES (?, ?, ?, ?)`,
			runID, p.Slice, p.WorkerID, p.PartialResult,
		); err != nil {
			return fmt.Errorf("save partial result %d: %w", p.Slice, err)
		}
	}

	return tx.Commit()
}

// FailRun переводит прогон в статус error с сообщением
func FailRun(runID, message string) error {
	res, err := DB.Exec(
		`UPDATE runs SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		StatusError, message, runID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const runColumns = `id, run_id, equation, x_start, x_end, y_start, y_end, step, worker_count,
         barrier_mode, status, result, elapsed_time_sec, cpu_usage_percent_diff,
         memory_usage_bytes, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var result, elapsed, cpu sql.NullFloat64
	var memory sql.NullInt64
	var errorMessage sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&run.ID, &run.RunID, &run.Equation, &run.XStart, &run.XEnd, &run.YStart, &run.YEnd,
		&run.Step, &run.WorkerCount, &run.BarrierMode, &run.Status, &result, &elapsed, &cpu,
		&memory, &errorMessage, &createdAtStr, &updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if result.Valid {
		run.Result = &result.Float64
	}
	if elapsed.Valid {
		run.ElapsedTimeSec = &elapsed.Float64
	}
	if cpu.Valid {
		run.CPUUsagePercentDiff = &cpu.Float64
	}
	if memory.Valid {
		run.MemoryUsageBytes = &memory.Int64
	}
	if errorMessage.Valid {
		run.ErrorMessage = &errorMessage.String
	}

	if run.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRunByID возвращает прогон вместе с частичными результатами
func GetRunByID(runID string) (*Run, error) {
	run, err := scanRun(DB.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	rows, err := DB.Query(
		`SELECT slice, worker_id, partial_result FROM partial_results WHERE run_id = ? ORDER BY slice`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p PartialResult
		if err := rows.Scan(&p.Slice, &p.WorkerID, &p.PartialResult); err != nil {
			return nil, err
		}
		run.Partials = append(run.Partials, p)
	}
	return run, rows.Err()
}

// ListRuns возвращает последние прогоны, новые первыми
func ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := DB.Query(`SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// parseTime понимает и RFC3339 (так драйвер отдает DATETIME), и формат SQL
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time '%s': %v", s, err)
	}
	return t, nil
}
