package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// lookPath resolves a binary on PATH. Package variable so availability
// probes do not depend on the host machine in tests.
//
//nolint:gochecknoglobals // Required for test mocking
var lookPath = exec.LookPath

// nestedSessionEnvVars are stripped from worker child environments. A CLI
// that sees these refuses to start inside what it thinks is one of its own
// sessions, which would wedge every invocation the daemon makes.
var nestedSessionEnvVars = []string{ //nolint:gochecknoglobals // static strip list
	"CLAUDECODE",
	"CLAUDE_CODE_ENTRYPOINT",
}

// buildFunc constructs the provider-specific command for one invocation.
type buildFunc func(ctx context.Context, req *domain.WorkerRequest) *exec.Cmd

// baseRunner carries what every CLI runner shares: the availability probe,
// timeout resolution, child environment scrubbing and the execute flow.
// Provider runners embed it and supply only their buildFunc.
type baseRunner struct {
	name      domain.Worker
	available bool
	timeout   time.Duration
	executor  CommandExecutor
	logger    zerolog.Logger
}

// newBaseRunner probes PATH for the worker binary once. The probe result
// is fixed for the runner's lifetime; installing a CLI mid-run requires a
// daemon restart to be picked up.
func newBaseRunner(name domain.Worker, cfg *config.WorkerConfig, executor CommandExecutor, logger zerolog.Logger) baseRunner {
	if executor == nil {
		executor = &DefaultExecutor{}
	}

	timeout := constants.DefaultWorkerTimeout
	keyVar := ""
	if cfg != nil {
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
		keyVar = cfg.GetAPIKeyEnvVar(name.String())
	}

	b := baseRunner{
		name:     name,
		timeout:  timeout,
		executor: executor,
		logger:   logger,
	}

	if _, err := lookPath(name.String()); err != nil {
		logger.Debug().Str("worker", name.String()).Msg("worker binary not found on PATH")
		return b
	}
	b.available = true

	// The binary existing is the availability signal. A missing API key is
	// only worth a note because most CLIs carry their own session auth.
	if keyVar != "" && os.Getenv(keyVar) == "" {
		logger.Debug().
			Str("worker", name.String()).
			Str("env_var", keyVar).
			Msg("worker API key environment variable is unset")
	}

	return b
}

// Available reports the result of the construction-time PATH probe.
func (b *baseRunner) Available() bool {
	return b.available
}

// resolveTimeout applies the per-request override, falling back to the
// configured worker timeout.
func (b *baseRunner) resolveTimeout(req *domain.WorkerRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return b.timeout
}

// run validates the request, executes the provider command under a
// deadline and packages the captured output. On failure the result is
// still returned alongside the error so ClassifyFailure can inspect it.
func (b *baseRunner) run(ctx context.Context, req *domain.WorkerRequest, build buildFunc) (*domain.WorkerResult, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	if !b.available {
		return nil, fmt.Errorf("worker '%s' binary is not installed: %w", b.name, opserrors.ErrNoWorkerAvailable)
	}

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	timeout := b.resolveTimeout(req)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := build(runCtx, req)
	cmd.Env = childEnv()
	if cmd.Dir == "" {
		cmd.Dir = req.WorkingDir
	}

	b.logger.Debug().
		Str("worker", b.name.String()).
		Int("prompt_bytes", len(req.Prompt)).
		Dur("timeout", timeout).
		Msg("invoking worker")

	start := time.Now()
	stdout, stderr, err := b.executor.Execute(runCtx, cmd)

	result := &domain.WorkerResult{
		Worker:     b.name,
		Output:     string(stdout),
		Stderr:     string(stderr),
		ExitCode:   exitCode(err),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		// The parent context ending means the daemon is shutting down, not
		// that the worker failed.
		if ctxErr := ctxutil.Canceled(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("worker '%s' timed out after %s: %w", b.name, timeout, opserrors.ErrWorkerTimeout)
		}
		return result, fmt.Errorf("worker '%s' execution failed: %w", b.name, err)
	}

	b.logger.Debug().
		Str("worker", b.name.String()).
		Int64("duration_ms", result.DurationMs).
		Int("output_bytes", len(result.Output)).
		Msg("worker completed")

	return result, nil
}

// childEnv returns the daemon's environment minus the nested-session
// markers.
func childEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if ok && isNestedSessionVar(name) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isNestedSessionVar(name string) bool {
	for _, v := range nestedSessionEnvVars {
		if name == v {
			return true
		}
	}
	return false
}

// exitCode extracts the subprocess exit code from an execution error.
// -1 means the process never ran or was killed before exiting.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
