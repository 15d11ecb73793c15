package worker

// This test suite uses MockExecutor to simulate worker CLI subprocess
// execution. Tests NEVER run the real claude/gemini/codex binaries or make
// API calls; all output is pre-configured mock data. stubLookPath pins the
// availability probe so results do not depend on what the host has
// installed.

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
)

// MockExecutor is a test implementation of CommandExecutor. It returns
// pre-configured output without running anything.
type MockExecutor struct {
	StdoutData []byte
	StderrData []byte
	Err        error

	// Delay makes Execute wait, honoring context cancellation, so timeout
	// behavior can be exercised.
	Delay time.Duration

	// CapturedCmd stores the last executed command for verification.
	CapturedCmd *exec.Cmd
	Calls       int
}

func (m *MockExecutor) Execute(ctx context.Context, cmd *exec.Cmd) ([]byte, []byte, error) {
	m.Calls++
	m.CapturedCmd = cmd

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	return m.StdoutData, m.StderrData, m.Err
}

// stubLookPath overrides the PATH probe for the duration of one test.
// Binaries named in found resolve; everything else is reported missing.
// Tests using this must not run in parallel.
func stubLookPath(t *testing.T, found ...string) {
	t.Helper()

	lookup := make(map[string]bool, len(found))
	for _, bin := range found {
		lookup[bin] = true
	}

	original := lookPath
	lookPath = func(bin string) (string, error) {
		if lookup[bin] {
			return "/usr/local/bin/" + bin, nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = original })
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testWorkerConfig() *config.WorkerConfig {
	return &config.WorkerConfig{
		Timeout:       constants.DefaultWorkerTimeout,
		FallbackOrder: []string{"claude", "gemini", "codex"},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
