package worker

import (
	"context"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
)

// GeminiRunner drives the gemini CLI in non-interactive prompt mode.
type GeminiRunner struct {
	base baseRunner
}

// NewGeminiRunner creates a runner for the gemini CLI. Pass a nil executor
// to run subprocesses for real.
func NewGeminiRunner(cfg *config.WorkerConfig, executor CommandExecutor, logger zerolog.Logger) *GeminiRunner {
	return &GeminiRunner{
		base: newBaseRunner(domain.WorkerGemini, cfg, executor, logger),
	}
}

// Name returns the CLI this runner drives.
func (r *GeminiRunner) Name() domain.Worker {
	return r.base.name
}

// Available reports whether the gemini binary was found on PATH.
func (r *GeminiRunner) Available() bool {
	return r.base.Available()
}

// Run executes the prompt through the gemini CLI.
func (r *GeminiRunner) Run(ctx context.Context, req *domain.WorkerRequest) (*domain.WorkerResult, error) {
	return r.base.run(ctx, req, r.buildCommand)
}

// buildCommand constructs the gemini invocation. The CLI takes the prompt
// as a -p argument and works relative to the command's directory, which
// the shared run flow sets to the vault.
func (r *GeminiRunner) buildCommand(ctx context.Context, req *domain.WorkerRequest) *exec.Cmd {
	return exec.CommandContext(ctx, domain.WorkerGemini.String(), "-p", req.Prompt)
}

// Interface compliance check
var _ Runner = (*GeminiRunner)(nil)
