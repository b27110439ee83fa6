package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"parallel-integrator/internal/db"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
)

// Файлы результатов в OUTPUT_DIR
const (
	OutputFile    = "output.txt"
	BenchmarkFile = "benchmark.txt"
)

// История прогонов пишется, только если база открыта

func recordCreate(run *db.Run) error {
	if db.DB == nil {
		return nil
	}
	if err := db.CreateRun(run); err != nil {
		return fmt.Errorf("ошибка создания прогона в БД: %w", err)
	}
	return nil
}

func recordRunning(runID string) {
	if db.DB == nil {
		return
	}
	if err := db.MarkRunning(runID); err != nil {
		logger.Log.Errorw("Failed to mark run as running", "run_id", runID, "error", err)
	}
}

func recordFinish(runID string, outcome Outcome) error {
	if db.DB == nil {
		return nil
	}
	if err := db.FinishRun(runID, outcome.Aggregate, outcome.Report, outcome.Partials); err != nil {
		return fmt.Errorf("ошибка сохранения результата в БД: %w", err)
	}
	return nil
}

func recordFail(runID string, cause error) {
	if db.DB == nil {
		return
	}
	if err := db.FailRun(runID, cause.Error()); err != nil {
		logger.Log.Errorw("Failed to mark run as failed", "run_id", runID, "error", err)
	}
}

// FormatResult печатает число в кратчайшей записи: целые
// значения с ".0", очень большие и малые в экспоненциальной записи
func FormatResult(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// persistOutput пишет output.txt и benchmark.txt
func persistOutput(dir string, aggregate float64, report protocol.BenchmarkReport) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, OutputFile), []byte(FormatResult(aggregate)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", OutputFile, err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, BenchmarkFile), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", BenchmarkFile, err)
	}
	return nil
}
