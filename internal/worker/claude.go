package worker

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
)

// claudeMaxTurns caps the agentic loop inside a single claude invocation
// so a confused session cannot burn a whole timeout window.
const claudeMaxTurns = 20

// ClaudeRunner drives the claude CLI in non-interactive print mode.
type ClaudeRunner struct {
	base baseRunner
}

// NewClaudeRunner creates a runner for the claude CLI. Pass a nil executor
// to run subprocesses for real.
func NewClaudeRunner(cfg *config.WorkerConfig, executor CommandExecutor, logger zerolog.Logger) *ClaudeRunner {
	return &ClaudeRunner{
		base: newBaseRunner(domain.WorkerClaude, cfg, executor, logger),
	}
}

// Name returns the CLI this runner drives.
func (r *ClaudeRunner) Name() domain.Worker {
	return r.base.name
}

// Available reports whether the claude binary was found on PATH.
func (r *ClaudeRunner) Available() bool {
	return r.base.Available()
}

// Run executes the prompt through the claude CLI.
func (r *ClaudeRunner) Run(ctx context.Context, req *domain.WorkerRequest) (*domain.WorkerResult, error) {
	return r.base.run(ctx, req, r.buildCommand)
}

// buildCommand constructs the claude invocation. The prompt goes over
// stdin because command lines have length limits the prompt can exceed,
// and --add-dir grants the session access to the vault it is working in.
func (r *ClaudeRunner) buildCommand(ctx context.Context, req *domain.WorkerRequest) *exec.Cmd {
	args := []string{
		"--print",
		"--dangerously-skip-permissions",
		"--output-format", "text",
		"--max-turns", strconv.Itoa(claudeMaxTurns),
		"--add-dir", req.WorkingDir,
	}

	cmd := exec.CommandContext(ctx, domain.WorkerClaude.String(), args...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	return cmd
}

// Interface compliance check
var _ Runner = (*ClaudeRunner)(nil)
