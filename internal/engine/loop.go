// Package engine contains the orchestration core: the bounded persistence
// loop that drives a reasoning worker at one task until there is evidence
// of completion, and the controller that polls Intake, claims tasks and
// recovers in-flight work after a crash.
//
// IMPORTANT: This package may import internal/vault, internal/worker,
// internal/config, internal/constants, internal/ctxutil, internal/domain,
// and internal/errors. It MUST NOT import internal/cli or
// internal/dispatch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/vault"
	"github.com/mrz1836/opsdesk/internal/worker"
)

// timeSleep wraps time.After so tests can collapse loop pauses.
//
//nolint:gochecknoglobals // Required for test mocking
var timeSleep = time.After

// Loop drives one claimed task through repeated worker invocations until
// completion evidence appears or the iteration budget runs out.
type Loop struct {
	vault         *vault.Manager
	selector      *worker.Selector
	maxIterations int
	checkInterval time.Duration
	workerTimeout time.Duration
	strict        bool
	logger        zerolog.Logger
}

// LoopOption configures optional Loop settings.
type LoopOption func(*Loop)

// WithMaxIterations bounds worker invocations per task.
func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithCheckInterval sets the pause between loop iterations.
func WithCheckInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.checkInterval = d
		}
	}
}

// WithWorkerTimeout bounds a single worker invocation.
func WithWorkerTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.workerTimeout = d
		}
	}
}

// WithStrictCompletion requires explicit completion evidence. A clean
// worker exit with no evidence then consumes an iteration instead of
// completing the task.
func WithStrictCompletion(strict bool) LoopOption {
	return func(l *Loop) {
		l.strict = strict
	}
}

// NewLoop creates a persistence loop over the given vault and workers.
func NewLoop(vm *vault.Manager, selector *worker.Selector, logger zerolog.Logger, opts ...LoopOption) *Loop {
	l := &Loop{
		vault:         vm,
		selector:      selector,
		maxIterations: constants.DefaultMaxIterations,
		checkInterval: constants.DefaultCheckInterval,
		workerTimeout: constants.DefaultWorkerTimeout,
		logger:        logger,
	}

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoopOptionsFromConfig maps worker config onto loop options.
func LoopOptionsFromConfig(cfg *config.WorkerConfig) []LoopOption {
	if cfg == nil {
		return nil
	}
	return []LoopOption{
		WithMaxIterations(cfg.MaxIterations),
		WithCheckInterval(cfg.CheckInterval),
		WithWorkerTimeout(cfg.Timeout),
		WithStrictCompletion(cfg.StrictCompletion),
	}
}

// Run executes the loop for one claimed task. The prompt is reused
// verbatim on every iteration; idempotence comes from the plan directive
// inside it. On timeout or iteration exhaustion the task is moved to
// Failed before the error returns.
func (l *Loop) Run(ctx context.Context, task *domain.Task, prompt string) (*domain.LoopResult, error) {
	runners := l.selector.Available()
	if len(runners) == 0 {
		return nil, fmt.Errorf("cannot run task '%s': %w", task.ID, opserrors.ErrNoWorkerAvailable)
	}

	req := &domain.WorkerRequest{
		Prompt:     prompt,
		WorkingDir: l.vault.Root(),
		Timeout:    l.workerTimeout,
	}

	current := 0
	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		// Check for cancellation at entry
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}

		l.logger.Info().
			Str("task", task.ID).
			Int("iteration", iteration).
			Int("max_iterations", l.maxIterations).
			Str("worker", runners[current].Name().String()).
			Msg("loop iteration starting")

		result, runErr := l.runIteration(ctx, req, runners, &current)

		if runErr == nil {
			outcome, found := l.detectCompletion(ctx, task, result.Output)
			if found {
				l.logger.Info().
					Str("task", task.ID).
					Str("outcome", string(outcome)).
					Int("iteration", iteration).
					Msg("task completion detected")
				return l.loopResult(outcome, result, iteration), nil
			}

			if !l.strict {
				// Re-running an identical prompt against a worker that
				// already acted would duplicate outbound work, so a clean
				// exit is trusted even without evidence.
				l.logger.Warn().
					Str("task", task.ID).
					Int("iteration", iteration).
					Msg("no completion evidence, trusting clean worker exit")
				return l.loopResult(domain.OutcomeAssumedComplete, result, iteration), nil
			}

			l.logger.Info().
				Str("task", task.ID).
				Int("iteration", iteration).
				Msg("no completion evidence, continuing")
			if err := l.pause(ctx); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			// Shutdown, not task failure: leave the task in InProgress for
			// the next startup's recovery sweep.
			return nil, runErr

		case worker.IsValidationError(runErr):
			return nil, runErr

		case errors.Is(runErr, opserrors.ErrWorkerTimeout):
			l.failTask(ctx, task, "worker timeout")
			return nil, runErr

		case errors.Is(runErr, opserrors.ErrRateLimited):
			// Every available worker is limited. Start the fallback order
			// over after a pause; hot-looping would burn the iteration
			// budget in milliseconds.
			l.logger.Warn().
				Str("task", task.ID).
				Int("iteration", iteration).
				Msg("all workers rate limited, pausing before retry")
			if err := l.pause(ctx); err != nil {
				return nil, err
			}

		default:
			l.logger.Warn().
				Err(runErr).
				Str("task", task.ID).
				Int("iteration", iteration).
				Msg("transient worker failure")
			if err := l.pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	l.failTask(ctx, task, "max iterations reached")
	return nil, fmt.Errorf("task '%s' incomplete after %d iterations: %w", task.ID, l.maxIterations, opserrors.ErrMaxIterations)
}

// runIteration executes one iteration, advancing through the fallback
// order when a worker reports a usage limit. However many workers the
// iteration falls through, it only counts once against the budget.
func (l *Loop) runIteration(ctx context.Context, req *domain.WorkerRequest, runners []worker.Runner, current *int) (*domain.WorkerResult, error) {
	for {
		r := runners[*current]
		result, err := r.Run(ctx, req)
		if err == nil {
			return result, nil
		}

		classified := worker.ClassifyFailure(result, err)
		if !errors.Is(classified, opserrors.ErrRateLimited) {
			return result, classified
		}

		if *current+1 < len(runners) {
			*current++
			l.logger.Warn().
				Str("worker", r.Name().String()).
				Str("next", runners[*current].Name().String()).
				Msg("worker rate limited, falling back")
			continue
		}

		// Last worker in the chain is limited too. Reset so the next
		// iteration starts from the front of the order.
		*current = 0
		return result, classified
	}
}

// detectCompletion looks for evidence that the task is done, in fixed
// order: explicit marker, task present in Done, task gone from this
// agent's InProgress, then a PendingApproval entry naming the task.
func (l *Loop) detectCompletion(ctx context.Context, task *domain.Task, output string) (domain.LoopOutcome, bool) {
	if strings.Contains(output, constants.CompletionMarker) {
		return domain.OutcomeCompleted, true
	}

	doneName := task.ID + constants.TaskFileExt
	if ok, err := l.vault.HasTask(ctx, constants.StageDone, doneName); err != nil {
		l.logger.Warn().Err(err).Str("task", task.ID).Msg("completion check against Done failed")
	} else if ok {
		return domain.OutcomeCompletedInVault, true
	}

	if _, found, err := l.vault.FindInProgress(ctx, l.vault.AgentID(), task.ID); err != nil {
		l.logger.Warn().Err(err).Str("task", task.ID).Msg("completion check against InProgress failed")
	} else if !found {
		return domain.OutcomeMovedElsewhere, true
	}

	if ok, err := l.vault.StageContains(ctx, constants.StagePendingApproval, task.ID); err != nil {
		l.logger.Warn().Err(err).Str("task", task.ID).Msg("completion check against PendingApproval failed")
	} else if ok {
		return domain.OutcomeAwaitingApproval, true
	}

	return "", false
}

// pause sleeps for the check interval, honoring cancellation.
func (l *Loop) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timeSleep(l.checkInterval):
		return nil
	}
}

func (l *Loop) loopResult(outcome domain.LoopOutcome, result *domain.WorkerResult, iterations int) *domain.LoopResult {
	return &domain.LoopResult{
		Outcome:    outcome,
		Output:     result.Output,
		Iterations: iterations,
		Worker:     result.Worker,
	}
}

// failTask moves the task to Failed and records the failure. Best-effort:
// errors here are logged, never allowed to mask the loop's own error.
func (l *Loop) failTask(ctx context.Context, task *domain.Task, reason string) {
	failTask(ctx, l.vault, l.logger, task, reason)
}
