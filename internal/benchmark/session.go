package benchmark

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/shlex"

	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
)

// Session запущенный процесс сэмплера
type Session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu    sync.Mutex
	lines []string
	read  chan struct{}

	stopOnce sync.Once
}

// Start запускает сэмплер. command разбивается по правилам shell,
// env добавляется к окружению текущего процесса.
func Start(command string, env ...string) (*Session, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: sampler command: %v", protocol.ErrConfiguration, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: sampler command is empty", protocol.ErrConfiguration)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(cmd.Environ(), env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start sampler %q: %w", args[0], err)
	}

	s := &Session{cmd: cmd, stdin: stdin, read: make(chan struct{})}
	go s.collect(stdout)
	logger.Log.Infow("Sampler started", "pid", cmd.Process.Pid)
	return s, nil
}

func (s *Session) collect(stdout io.Reader) {
	defer close(s.read)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Log.Debugw("Sampler output", "line", line)
		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()
	}
}

// Output строки, прочитанные из stdout сэмплера на данный момент
func (s *Session) Output() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Stop отправляет stop, дочитывает вывод до конца и разбирает последнюю
// непустую строку как BenchmarkReport. Если ctx истекает раньше, процесс
// убивается.
func (s *Session) Stop(ctx context.Context) (protocol.BenchmarkReport, error) {
	var writeErr error
	s.stopOnce.Do(func() {
		_, writeErr = io.WriteString(s.stdin, StopCommand+"\n")
		s.stdin.Close()
	})
	if writeErr != nil {
		logger.Log.Warnw("Failed to send stop to sampler", "error", writeErr)
	}

	select {
	case <-s.read:
	case <-ctx.Done():
		s.Kill()
		return protocol.BenchmarkReport{}, fmt.Errorf("%w: sampler did not finish: %v", protocol.ErrTimeout, ctx.Err())
	}

	if err := s.cmd.Wait(); err != nil {
		return protocol.BenchmarkReport{}, fmt.Errorf("sampler exited: %w", err)
	}
	return parseReport(s.Output())
}

// Kill принудительно завершает сэмплер, используется при прерывании прогона
func (s *Session) Kill() {
	s.stopOnce.Do(func() { s.stdin.Close() })
	if s.cmd.ProcessState != nil {
		return
	}
	if err := s.cmd.Process.Kill(); err != nil {
		logger.Log.Debugw("Sampler kill", "error", err)
	}
	<-s.read
	_ = s.cmd.Wait()
}

func parseReport(lines []string) (protocol.BenchmarkReport, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return protocol.DecodeBenchmarkReport(line)
	}
	return protocol.BenchmarkReport{}, fmt.Errorf("%w: sampler produced no output", protocol.ErrMalformedMessage)
}
