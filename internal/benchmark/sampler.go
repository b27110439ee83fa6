package benchmark

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
)

// StopCommand строка, по которой сэмплер завершает замер
const StopCommand = "stop"

type snapshot struct {
	at  time.Time
	cpu float64
	rss uint64
}

func take(probe Probe) snapshot {
	s := snapshot{at: time.Now()}
	var err error
	if s.cpu, err = probe.CPUPercent(); err != nil {
		logger.Log.Warnw("CPU sample failed", "error", err)
	}
	if s.rss, err = probe.RSS(); err != nil {
		logger.Log.Warnw("Memory sample failed", "error", err)
	}
	return s
}

// RunSampler процесс сэмплера: замер при старте, ожидание строки stop
// (или конца ввода), замер в конце и отчет. Последняя строка вывода всегда
// JSON BenchmarkReport. При interval > 0 печатает промежуточные строки
// и учитывает их в пиковой памяти.
func RunSampler(ctx context.Context, in io.Reader, out io.Writer, probe Probe, interval time.Duration) error {
	start := take(probe)
	fmt.Fprintln(out, "[Benchmark] Measurement started...")
	fmt.Fprintln(out, "[Benchmark] CPU/Memory usage measurement will end when 'stop' is received from the coordinator.")

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if strings.TrimSpace(scanner.Text()) == StopCommand {
				return
			}
		}
		logger.Log.Infow("Input closed without stop, finishing measurement")
	}()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	peak := start.rss
wait:
	for {
		select {
		case <-stop:
			break wait
		case <-ctx.Done():
			break wait
		case <-tick:
			rss, err := probe.RSS()
			if err != nil {
				logger.Log.Warnw("Memory sample failed", "error", err)
				continue
			}
			peak = max(peak, rss)
			fmt.Fprintf(out, "[Benchmark] Running for %.3f s, memory %d bytes\n", time.Since(start.at).Seconds(), rss)
		}
	}

	end := take(probe)
	report := protocol.BenchmarkReport{
		ElapsedTimeSec:      end.at.Sub(start.at).Seconds(),
		CPUUsagePercentDiff: end.cpu - start.cpu,
		MemoryUsageBytes:    max(peak, end.rss),
	}

	fmt.Fprintf(out, "[Benchmark] Elapsed time (seconds): %.3f\n", report.ElapsedTimeSec)
	fmt.Fprintf(out, "[Benchmark] CPU usage diff (rough %%): %.3f\n", report.CPUUsagePercentDiff)
	fmt.Fprintf(out, "[Benchmark] Memory usage (bytes): %d\n", report.MemoryUsageBytes)

	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
