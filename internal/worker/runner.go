// Package worker drives the external reasoning-worker CLIs (claude,
// gemini, codex) that do the actual thinking for a task. Each CLI gets a
// Runner that knows its binary, its argument conventions and whether it is
// installed; the Selector walks the configured fallback order so the
// engine never cares which vendor is behind the prompt.
//
// IMPORTANT: This package may import internal/config, internal/constants,
// internal/ctxutil, internal/domain, and internal/errors. It MUST NOT
// import internal/vault, internal/engine, or internal/cli.
package worker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// Runner executes prompts through one reasoning-worker CLI.
//
// Context should be used to control timeouts and cancellation. Run checks
// ctx.Done() before spawning and the subprocess inherits the deadline.
type Runner interface {
	// Name returns the CLI this runner drives.
	Name() domain.Worker

	// Available reports whether the binary was found on PATH when the
	// runner was built. Availability does not change at runtime.
	Available() bool

	// Run executes one invocation and returns the captured result. The
	// result carries output even when err is non-nil so callers can
	// classify the failure.
	Run(ctx context.Context, req *domain.WorkerRequest) (*domain.WorkerResult, error)
}

// BuildRunners constructs one runner per configured fallback entry, in
// order. Unknown names are skipped with a warning so a config typo
// degrades to a shorter fallback chain instead of taking the daemon down.
func BuildRunners(cfg *config.WorkerConfig, executor CommandExecutor, logger zerolog.Logger) []Runner {
	order := fallbackOrder(cfg)

	runners := make([]Runner, 0, len(order))
	for _, name := range order {
		switch domain.Worker(name) {
		case domain.WorkerClaude:
			runners = append(runners, NewClaudeRunner(cfg, executor, logger))
		case domain.WorkerGemini:
			runners = append(runners, NewGeminiRunner(cfg, executor, logger))
		case domain.WorkerCodex:
			runners = append(runners, NewCodexRunner(cfg, executor, logger))
		default:
			logger.Warn().Str("worker", name).Msg("unknown worker in fallback order, skipping")
		}
	}
	return runners
}

// fallbackOrder returns the preferred agent followed by the configured
// fallback chain, deduplicated. An empty config yields the default order.
func fallbackOrder(cfg *config.WorkerConfig) []string {
	var order []string
	if cfg != nil {
		if cfg.Agent != "" {
			order = append(order, cfg.Agent)
		}
		for _, name := range cfg.FallbackOrder {
			if !containsName(order, name) {
				order = append(order, name)
			}
		}
	}
	if len(order) > 0 {
		return order
	}

	defaults := domain.DefaultFallbackOrder()
	order = make([]string, 0, len(defaults))
	for _, w := range defaults {
		order = append(order, w.String())
	}
	return order
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Selector hands the engine the runners that can actually execute, in
// fallback order.
type Selector struct {
	runners []Runner
	logger  zerolog.Logger
}

// NewSelector creates a selector over the given runners. Availability of
// each runner is logged once here so an operator can see at startup which
// CLIs the daemon can reach.
func NewSelector(runners []Runner, logger zerolog.Logger) *Selector {
	for _, r := range runners {
		logger.Info().
			Str("worker", r.Name().String()).
			Bool("available", r.Available()).
			Msg("worker runner configured")
	}
	return &Selector{runners: runners, logger: logger}
}

// Select returns the first available runner in fallback order.
func (s *Selector) Select() (Runner, error) {
	for _, r := range s.runners {
		if r.Available() {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no worker binary from the fallback order is installed: %w", opserrors.ErrNoWorkerAvailable)
}

// Available returns the available runners in fallback order. The engine
// advances through this slice when a worker reports a usage limit.
func (s *Selector) Available() []Runner {
	avail := make([]Runner, 0, len(s.runners))
	for _, r := range s.runners {
		if r.Available() {
			avail = append(avail, r)
		}
	}
	return avail
}
