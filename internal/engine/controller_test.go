package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/vault"
	"github.com/mrz1836/opsdesk/internal/worker"
)

func newTestController(vm *vault.Manager, runners ...worker.Runner) *Controller {
	sel := selectorFor(runners...)
	loop := NewLoop(vm, sel, testLogger())
	return NewController(vm, sel, loop, nil, testLogger())
}

func TestController_Recover_SweepsInProgress(t *testing.T) {
	vm := newTestVault(t)
	ctx := context.Background()

	// A crash leaves tasks in several shapes: directly under InProgress,
	// under this agent and under another agent.
	require.NoError(t, vm.Write(ctx, vm.TaskPath(constants.StageInProgress, "direct.md"), "a"))
	claimedTask(t, vm, "mine", "b")
	other := filepath.Join(vm.StageDir(constants.StageInProgress), "helper", "theirs.md")
	require.NoError(t, vm.Write(ctx, other, "c"))

	// Plus a stale claim lock in Intake.
	stale := vm.TaskPath(constants.StageIntake, "orphan.md") + constants.LockFileSuffix
	require.NoError(t, os.WriteFile(stale, []byte("agent=orchestrator"), 0o600))
	old := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(stale, old, old))

	c := newTestController(vm, markerRunner(domain.WorkerClaude))
	require.NoError(t, c.Recover(ctx))

	intake, err := vm.List(ctx, constants.StageIntake)
	require.NoError(t, err)
	assert.Len(t, intake, 3)

	inProgress, err := vm.ListInProgress(ctx)
	require.NoError(t, err)
	assert.Empty(t, inProgress)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr), "stale lock should be swept")

	assertActivityLogged(t, vm, "startup_recovery")
}

func TestController_Recover_CollisionKeepsBothFiles(t *testing.T) {
	vm := newTestVault(t)
	ctx := context.Background()

	intakeTask(t, vm, "task-1", "queued copy")
	claimedTask(t, vm, "task-1", "in-flight copy")

	c := newTestController(vm, markerRunner(domain.WorkerClaude))
	require.NoError(t, c.Recover(ctx))

	intake, err := vm.List(ctx, constants.StageIntake)
	require.NoError(t, err)
	require.Len(t, intake, 2, "collision must not clobber the queued copy")
}

func TestController_Recover_EmptyVaultWritesNoSummary(t *testing.T) {
	vm := newTestVault(t)
	c := newTestController(vm, markerRunner(domain.WorkerClaude))

	require.NoError(t, c.Recover(context.Background()))

	entries, err := os.ReadDir(vm.StageDir(constants.StageLogs))
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing recovered, nothing logged")
}

func TestController_Process_Success(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	task := claimedTask(t, vm, "task-1", "answer the RFQ")

	runner := markerRunner(domain.WorkerClaude)
	c := newTestController(vm, runner)

	require.NoError(t, c.Process(context.Background(), task))

	assert.Equal(t, 1, runner.calls)
	assert.Contains(t, runner.requests[0].Prompt, "answer the RFQ", "task content feeds the prompt")
	assertActivityLogged(t, vm, "task_processed")
}

func TestController_Process_LoopErrorMovesTaskToFailed(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	task := claimedTask(t, vm, "task-1", "anything")

	runner := &stubRunner{
		name:      domain.WorkerClaude,
		available: true,
		steps:     []stubStep{{err: opserrors.ErrPromptTooLarge}},
	}
	c := newTestController(vm, runner)

	err := c.Process(context.Background(), task)

	require.ErrorIs(t, err, opserrors.ErrPromptTooLarge)
	assertStageHasTaskWithStem(t, vm, constants.StageFailed, "task-1")
	assertActivityLogged(t, vm, "task_failed")
}

func TestController_Process_TimeoutNotMovedTwice(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	task := claimedTask(t, vm, "task-1", "anything")

	runner := &stubRunner{
		name:      domain.WorkerClaude,
		available: true,
		steps: []stubStep{{
			result: &domain.WorkerResult{Worker: domain.WorkerClaude, ExitCode: -1},
			err:    opserrors.Wrap(opserrors.ErrWorkerTimeout, "worker 'claude' timed out after 1s"),
		}},
	}
	c := newTestController(vm, runner)

	err := c.Process(context.Background(), task)

	require.ErrorIs(t, err, opserrors.ErrWorkerTimeout)
	failed, listErr := vm.List(context.Background(), constants.StageFailed)
	require.NoError(t, listErr)
	assert.Len(t, failed, 1, "the loop's Failed move must not be repeated")
}

func TestController_Process_UnreadableTaskFails(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	task := &domain.Task{
		ID:    "ghost",
		Path:  filepath.Join(vm.AgentDir(), "ghost.md"),
		Stage: constants.StageInProgress,
	}

	c := newTestController(vm, markerRunner(domain.WorkerClaude))

	err := c.Process(context.Background(), task)
	require.Error(t, err)
	assertActivityLogged(t, vm, "task_failed")
}

func TestController_PollOnce_ClaimsAndProcesses(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	ctx := context.Background()

	intakeTask(t, vm, "task-a", "first")
	intakeTask(t, vm, "task-b", "second")

	runner := markerRunner(domain.WorkerClaude)
	c := newTestController(vm, runner)

	require.NoError(t, c.pollOnce(ctx))

	intake, err := vm.List(ctx, constants.StageIntake)
	require.NoError(t, err)
	assert.Empty(t, intake)

	// Moving finished tasks to Done is the worker's job; this stub only
	// printed the marker, so the files stay claimed.
	mine, err := vm.ListAgent(ctx, "orchestrator")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	assert.Equal(t, 2, runner.calls)
	assertActivityLogged(t, vm, "task_claimed")
}

func TestController_PollOnce_NoWorkersLeavesIntakeAlone(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	ctx := context.Background()

	intakeTask(t, vm, "task-a", "first")

	offline := &stubRunner{name: domain.WorkerClaude, available: false}
	c := newTestController(vm, offline)

	require.NoError(t, c.pollOnce(ctx))

	intake, err := vm.List(ctx, constants.StageIntake)
	require.NoError(t, err)
	assert.Len(t, intake, 1, "tasks must wait rather than fail when no worker exists")
	assert.Zero(t, offline.calls)
}

func TestController_PollOnce_SkipsHeldLocks(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t, vault.WithClaimTimeout(0))
	ctx := context.Background()

	path := intakeTask(t, vm, "task-a", "contested")
	require.NoError(t, os.WriteFile(path+constants.LockFileSuffix, []byte("agent=other"), 0o600))

	runner := markerRunner(domain.WorkerClaude)
	c := newTestController(vm, runner)

	require.NoError(t, c.pollOnce(ctx))

	intake, err := vm.List(ctx, constants.StageIntake)
	require.NoError(t, err)
	assert.Len(t, intake, 1, "locked task stays put")
	assert.Zero(t, runner.calls)
}

func TestController_Run_StopsOnCancel(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)

	c := newTestController(vm, markerRunner(domain.WorkerClaude))

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestController_Run_ProcessesQueuedWork(t *testing.T) {
	stubSleep(t)
	vm := newTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())

	intakeTask(t, vm, "task-a", "drain me")

	runner := &stubRunner{
		name:      domain.WorkerClaude,
		available: true,
		steps:     []stubStep{markerStep(domain.WorkerClaude)},
		onRun:     func(int) { cancel() },
	}
	c := newTestController(vm, runner)

	err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, runner.calls, "queued task is processed before shutdown")
}
