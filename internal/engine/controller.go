package engine

import (
	"context"
	"errors"
	"strconv"
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

// Controller owns the orchestrator half of the daemon. It recovers
// in-flight work at startup, then polls Intake, claims tasks and hands
// each one to the persistence loop.
type Controller struct {
	vault        *vault.Manager
	selector     *worker.Selector
	loop         *Loop
	pollInterval time.Duration
	retryDelay   time.Duration
	logger       zerolog.Logger
}

// NewController creates a controller over the given vault, workers and loop.
func NewController(vm *vault.Manager, selector *worker.Selector, loop *Loop, cfg *config.OrchestratorConfig, logger zerolog.Logger) *Controller {
	pollInterval := constants.DefaultPollInterval
	retryDelay := constants.DefaultRetryDelay
	if cfg != nil {
		if cfg.PollInterval > 0 {
			pollInterval = cfg.PollInterval
		}
		if cfg.RetryDelay > 0 {
			retryDelay = cfg.RetryDelay
		}
	}

	return &Controller{
		vault:        vm,
		selector:     selector,
		loop:         loop,
		pollInterval: pollInterval,
		retryDelay:   retryDelay,
		logger:       logger,
	}
}

// Run executes startup recovery, then polls Intake until ctx is done.
// A failing poll cycle never stops the loop; the next cycle starts after
// the retry delay instead of the poll interval.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Recover(ctx); err != nil {
		if ctxutil.Canceled(ctx) != nil {
			return ctx.Err()
		}
		c.logger.Error().Err(err).Msg("startup recovery failed, polling anyway")
	}

	c.logger.Info().
		Str("vault", c.vault.Root()).
		Str("agent", c.vault.AgentID()).
		Dur("poll_interval", c.pollInterval).
		Msg("orchestrator started")

	for {
		delay := c.pollInterval
		if err := c.pollOnce(ctx); err != nil {
			if ctxutil.Canceled(ctx) != nil {
				c.logger.Info().Msg("orchestrator stopping")
				return ctx.Err()
			}
			c.logger.Error().Err(err).Msg("poll cycle failed")
			delay = c.retryDelay
		}

		select {
		case <-ctx.Done():
			c.logger.Info().Msg("orchestrator stopping")
			return ctx.Err()
		case <-timeSleep(delay):
		}
	}
}

// Recover moves every in-flight task back to Intake and sweeps stale
// claim locks. Runs unconditionally once per Run: after a crash the vault
// is the only record of what was mid-flight, and a task that was being
// worked on cannot be resumed, only restarted.
func (c *Controller) Recover(ctx context.Context) error {
	tasks, err := c.vault.ListInProgress(ctx)
	if err != nil {
		return err
	}

	recovered := 0
	for i := range tasks {
		if err = ctxutil.Canceled(ctx); err != nil {
			return err
		}

		if _, err = c.vault.Move(ctx, tasks[i].Path, constants.StageIntake); err != nil {
			c.logger.Error().Err(err).Str("task", tasks[i].ID).Msg("failed to recover in-flight task, skipping")
			continue
		}

		c.logger.Info().Str("task", tasks[i].ID).Msg("recovered in-flight task to Intake")
		recovered++
	}

	removed, err := c.vault.RecoverStaleLocks(ctx, constants.StaleLockAge)
	if err != nil {
		c.logger.Warn().Err(err).Msg("stale lock sweep failed")
	}

	if recovered > 0 || removed > 0 {
		details := map[string]string{
			"recovered_tasks": strconv.Itoa(recovered),
			"stale_locks":     strconv.Itoa(removed),
		}
		if logErr := c.vault.LogActivity(ctx, "startup_recovery", details); logErr != nil {
			c.logger.Warn().Err(logErr).Msg("failed to write activity log")
		}
	}

	return nil
}

// pollOnce claims and processes every Intake task visible right now.
// With no worker installed nothing is claimed; tasks wait in Intake
// instead of being claimed into certain failure.
func (c *Controller) pollOnce(ctx context.Context) error {
	if len(c.selector.Available()) == 0 {
		c.logger.Warn().Msg("no worker binary available, leaving Intake untouched")
		return nil
	}

	tasks, err := c.vault.List(ctx, constants.StageIntake)
	if err != nil {
		return err
	}

	for i := range tasks {
		if err = ctxutil.Canceled(ctx); err != nil {
			return err
		}

		claimed, claimErr := c.vault.Claim(ctx, tasks[i].Path)
		if claimErr != nil {
			c.logger.Warn().Err(claimErr).Str("task", tasks[i].ID).Msg("claim failed, skipping")
			continue
		}
		if claimed == nil {
			// Another agent holds the lock or already took the task.
			continue
		}

		if logErr := c.vault.LogActivity(ctx, "task_claimed", map[string]string{
			"task":  claimed.ID,
			"agent": c.vault.AgentID(),
		}); logErr != nil {
			c.logger.Warn().Err(logErr).Msg("failed to write activity log")
		}

		if procErr := c.Process(ctx, claimed); procErr != nil {
			if ctxutil.Canceled(ctx) != nil {
				return procErr
			}
			c.logger.Error().Err(procErr).Str("task", claimed.ID).Msg("task processing failed")
		}
	}

	return nil
}

// Process runs one claimed task through the persistence loop. Any error
// that is not a shutdown moves the task to Failed, best-effort.
func (c *Controller) Process(ctx context.Context, task *domain.Task) error {
	content, err := c.vault.Read(ctx, task.Path)
	if err != nil {
		failTask(ctx, c.vault, c.logger, task, "unreadable task file")
		return err
	}
	task.Content = content

	prompt, err := c.buildPrompt(ctx, task)
	if err != nil {
		failTask(ctx, c.vault, c.logger, task, "prompt construction failed")
		return err
	}

	result, err := c.loop.Run(ctx, task, prompt)
	if err != nil {
		// The loop already moved the task for its own terminal errors, and
		// a canceled run stays in place for the next recovery sweep.
		ownsMoved := errors.Is(err, opserrors.ErrWorkerTimeout) || errors.Is(err, opserrors.ErrMaxIterations)
		if !ownsMoved && ctxutil.Canceled(ctx) == nil {
			failTask(ctx, c.vault, c.logger, task, "processing error")
		}
		return err
	}

	c.logger.Info().
		Str("task", task.ID).
		Str("outcome", string(result.Outcome)).
		Str("worker", result.Worker.String()).
		Int("iterations", result.Iterations).
		Msg("task processed")

	if logErr := c.vault.LogActivity(ctx, "task_processed", map[string]string{
		"task":       task.ID,
		"outcome":    string(result.Outcome),
		"worker":     result.Worker.String(),
		"iterations": strconv.Itoa(result.Iterations),
	}); logErr != nil {
		c.logger.Warn().Err(logErr).Msg("failed to write activity log")
	}

	return nil
}

// failTask moves a task to Failed and records why. Best-effort on every
// step: the caller's error, not this one, is the one that matters.
func failTask(ctx context.Context, vm *vault.Manager, logger zerolog.Logger, task *domain.Task, reason string) {
	if _, err := vm.MoveWithReason(ctx, task.Path, constants.StageFailed, reason); err != nil {
		logger.Error().Err(err).Str("task", task.ID).Msg("failed to move task to Failed")
	}

	if err := vm.LogActivity(ctx, "task_failed", map[string]string{
		"task":   task.ID,
		"reason": reason,
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to write activity log")
	}
}
