package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "serve", "runs", "hash-password"} {
		assert.True(t, names[want], want)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := execute(t, "hash-password", "secret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
}

func TestRunCmd_MemoryBackend(t *testing.T) {
	dir := t.TempDir()
	taskPath := filepath.Join(dir, "task.json")
	require.NoError(t, os.WriteFile(taskPath,
		[]byte(`{"equation":"x*y","x_start":0,"x_end":2,"y_start":0,"y_end":2,"step":1}`), 0644))

	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("PROVISIONER", "local")
	t.Setenv("WORKER_COUNT", "2")
	t.Setenv("POLL_INTERVAL_MS", "10")
	t.Setenv("OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("DB_PATH", filepath.Join(dir, "runs.db"))
	t.Setenv("SAMPLER_COMMAND", "sampler-that-does-not-exist")

	_, err := execute(t, "--config", filepath.Join(dir, "missing.env"), "run", "--task", taskPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampler")

	out, err := execute(t, "--config", filepath.Join(dir, "missing.env"), "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "error")
}
