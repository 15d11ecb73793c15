package engine

// Loop and controller tests drive scripted stub runners against a real
// vault in a temp directory. No subprocesses, no real sleeping: the
// timeSleep hook is collapsed so multi-iteration runs finish instantly.

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/vault"
	"github.com/mrz1836/opsdesk/internal/worker"
)

var errStubExit1 = errors.New("exit status 1")

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestVault(t *testing.T, opts ...vault.Option) *vault.Manager {
	t.Helper()
	vm, err := vault.New(t.TempDir(), "orchestrator", testLogger(), opts...)
	require.NoError(t, err)
	return vm
}

// claimedTask writes a task file into the agent's InProgress directory and
// returns it the way Claim would.
func claimedTask(t *testing.T, vm *vault.Manager, id, content string) *domain.Task {
	t.Helper()
	path := filepath.Join(vm.AgentDir(), id+constants.TaskFileExt)
	require.NoError(t, vm.Write(context.Background(), path, content))
	return &domain.Task{ID: id, Path: path, Stage: constants.StageInProgress, Content: content}
}

func intakeTask(t *testing.T, vm *vault.Manager, id, content string) string {
	t.Helper()
	path := vm.TaskPath(constants.StageIntake, id+constants.TaskFileExt)
	require.NoError(t, vm.Write(context.Background(), path, content))
	return path
}

// stubStep is one scripted worker response.
type stubStep struct {
	result *domain.WorkerResult
	err    error
}

// stubRunner is a scripted worker.Runner. Steps play in order; the last
// step repeats once the script runs out. onRun can mutate the vault the
// way a real worker would (moving files, writing drafts).
type stubRunner struct {
	name      domain.Worker
	available bool
	steps     []stubStep
	onRun     func(call int)

	calls    int
	requests []*domain.WorkerRequest
}

func (s *stubRunner) Name() domain.Worker { return s.name }
func (s *stubRunner) Available() bool     { return s.available }

func (s *stubRunner) Run(_ context.Context, req *domain.WorkerRequest) (*domain.WorkerResult, error) {
	s.calls++
	s.requests = append(s.requests, req)
	if s.onRun != nil {
		s.onRun(s.calls)
	}

	if len(s.steps) == 0 {
		return &domain.WorkerResult{Worker: s.name}, nil
	}
	idx := s.calls - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx].result, s.steps[idx].err
}

var _ worker.Runner = (*stubRunner)(nil)

func successStep(name domain.Worker, output string) stubStep {
	return stubStep{result: &domain.WorkerResult{Worker: name, Output: output, ExitCode: 0}}
}

func markerStep(name domain.Worker) stubStep {
	return successStep(name, "all done\n"+constants.CompletionMarker)
}

func rateLimitStep(name domain.Worker) stubStep {
	return stubStep{
		result: &domain.WorkerResult{Worker: name, Stderr: "429 Too Many Requests", ExitCode: 1},
		err:    errStubExit1,
	}
}

func transientStep(name domain.Worker) stubStep {
	return stubStep{
		result: &domain.WorkerResult{Worker: name, Stderr: "connection reset", ExitCode: 1},
		err:    errStubExit1,
	}
}

func markerRunner(name domain.Worker) *stubRunner {
	return &stubRunner{name: name, available: true, steps: []stubStep{markerStep(name)}}
}

func selectorFor(runners ...worker.Runner) *worker.Selector {
	return worker.NewSelector(runners, testLogger())
}

// stubSleep collapses loop pauses and counts them.
func stubSleep(t *testing.T) *int {
	t.Helper()
	count := 0
	original := timeSleep
	timeSleep = func(time.Duration) <-chan time.Time {
		count++
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	t.Cleanup(func() { timeSleep = original })
	return &count
}
