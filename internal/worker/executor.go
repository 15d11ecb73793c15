package worker

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandExecutor abstracts subprocess execution for testability. Tests
// swap in a mock so runner behavior can be verified without the real CLI
// binaries installed.
type CommandExecutor interface {
	// Execute runs the command and returns captured stdout, stderr and the
	// execution error, if any.
	Execute(ctx context.Context, cmd *exec.Cmd) (stdout, stderr []byte, err error)
}

// DefaultExecutor runs commands for real.
type DefaultExecutor struct{}

// Execute runs the command with separate stdout and stderr capture. The
// streams stay separate because rate-limit classification needs to inspect
// both, and stderr alone when the CLI dies before printing anything.
func (e *DefaultExecutor) Execute(_ context.Context, cmd *exec.Cmd) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Interface compliance check
var _ CommandExecutor = (*DefaultExecutor)(nil)
