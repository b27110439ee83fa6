package benchmark

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// Probe источник замеров ресурсов
type Probe interface {
	// CPUPercent доля user+system в процентах с момента предыдущего вызова
	CPUPercent() (float64, error)
	// RSS резидентная память наблюдаемого процесса в байтах
	RSS() (uint64, error)
}

// SystemProbe снимает загрузку CPU всей машины и RSS одного процесса
type SystemProbe struct {
	mu   sync.Mutex
	last cpu.TimesStat
	proc *process.Process
}

// NewSystemProbe наблюдает процесс pid, при pid <= 0 сам сэмплер.
// Базовый замер CPU снимается сразу, первый CPUPercent считает от него.
func NewSystemProbe(pid int) (*SystemProbe, error) {
	if pid <= 0 {
		pid = os.Getpid()
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("watch process %d: %w", pid, err)
	}

	p := &SystemProbe{proc: proc}
	if p.last, err = cpuTotals(); err != nil {
		return nil, err
	}
	return p, nil
}

func cpuTotals() (cpu.TimesStat, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return cpu.TimesStat{}, fmt.Errorf("read cpu times: %w", err)
	}
	if len(times) == 0 {
		return cpu.TimesStat{}, fmt.Errorf("read cpu times: no data")
	}
	return times[0], nil
}

func allTime(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq +
		t.Softirq + t.Steal + t.Guest + t.GuestNice
}

func (p *SystemProbe) CPUPercent() (float64, error) {
	now, err := cpuTotals()
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.last
	p.last = now

	total := allTime(now) - allTime(prev)
	if total <= 0 {
		return 0, nil
	}
	user := (now.User - prev.User) / total * 100
	system := (now.System - prev.System) / total * 100
	return user + system, nil
}

func (p *SystemProbe) RSS() (uint64, error) {
	info, err := p.proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("read memory info: %w", err)
	}
	return info.RSS, nil
}
