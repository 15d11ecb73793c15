package worker

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/domain"
)

func TestNewClaudeRunner(t *testing.T) {
	t.Run("available when binary is on PATH", func(t *testing.T) {
		stubLookPath(t, "claude")
		r := NewClaudeRunner(testWorkerConfig(), &MockExecutor{}, testLogger())

		assert.Equal(t, domain.WorkerClaude, r.Name())
		assert.True(t, r.Available())
	})

	t.Run("unavailable when binary is missing", func(t *testing.T) {
		stubLookPath(t)
		r := NewClaudeRunner(testWorkerConfig(), &MockExecutor{}, testLogger())

		assert.False(t, r.Available())
	})
}

func TestClaudeRunner_BuildCommand(t *testing.T) {
	stubLookPath(t, "claude")
	r := NewClaudeRunner(testWorkerConfig(), &MockExecutor{}, testLogger())

	vault := t.TempDir()
	req := &domain.WorkerRequest{Prompt: "draft the reply", WorkingDir: vault}
	cmd := r.buildCommand(context.Background(), req)

	assert.Equal(t, []string{
		"claude",
		"--print",
		"--dangerously-skip-permissions",
		"--output-format", "text",
		"--max-turns", "20",
		"--add-dir", vault,
	}, cmd.Args)

	require.NotNil(t, cmd.Stdin, "prompt must travel over stdin, not argv")
	stdin, err := io.ReadAll(cmd.Stdin)
	require.NoError(t, err)
	assert.Equal(t, "draft the reply", string(stdin))

	assert.NotContains(t, cmd.Args, "draft the reply", "prompt must not appear on the command line")
}

func TestClaudeRunner_Run(t *testing.T) {
	stubLookPath(t, "claude")
	vault := t.TempDir()

	mock := &MockExecutor{StdoutData: []byte("TASK COMPLETE")}
	r := NewClaudeRunner(testWorkerConfig(), mock, testLogger())

	result, err := r.Run(context.Background(), &domain.WorkerRequest{Prompt: "do the thing", WorkingDir: vault})

	require.NoError(t, err)
	assert.Equal(t, domain.WorkerClaude, result.Worker)
	assert.Equal(t, "TASK COMPLETE", result.Output)

	require.NotNil(t, mock.CapturedCmd)
	assert.Equal(t, vault, mock.CapturedCmd.Dir)

	stdin, readErr := io.ReadAll(mock.CapturedCmd.Stdin)
	require.NoError(t, readErr)
	assert.Equal(t, "do the thing", string(stdin))
}
