package worker

import (
	"context"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
)

// CodexRunner drives the codex CLI in one-shot exec mode.
type CodexRunner struct {
	base baseRunner
}

// NewCodexRunner creates a runner for the codex CLI. Pass a nil executor
// to run subprocesses for real.
func NewCodexRunner(cfg *config.WorkerConfig, executor CommandExecutor, logger zerolog.Logger) *CodexRunner {
	return &CodexRunner{
		base: newBaseRunner(domain.WorkerCodex, cfg, executor, logger),
	}
}

// Name returns the CLI this runner drives.
func (r *CodexRunner) Name() domain.Worker {
	return r.base.name
}

// Available reports whether the codex binary was found on PATH.
func (r *CodexRunner) Available() bool {
	return r.base.Available()
}

// Run executes the prompt through the codex CLI.
func (r *CodexRunner) Run(ctx context.Context, req *domain.WorkerRequest) (*domain.WorkerResult, error) {
	return r.base.run(ctx, req, r.buildCommand)
}

// buildCommand constructs the codex invocation. The workspace-write
// sandbox lets the session edit files under --cd (the vault) and nothing
// else.
func (r *CodexRunner) buildCommand(ctx context.Context, req *domain.WorkerRequest) *exec.Cmd {
	args := []string{
		"exec",
		"--sandbox", "workspace-write",
		"--cd", req.WorkingDir,
		req.Prompt,
	}
	return exec.CommandContext(ctx, domain.WorkerCodex.String(), args...)
}

// Interface compliance check
var _ Runner = (*CodexRunner)(nil)
