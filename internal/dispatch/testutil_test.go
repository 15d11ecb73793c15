package dispatch

// Dispatcher tests drive stub senders and a stub document fetcher
// against a real vault in a temp directory. No real sleeping: the
// timeSleep hook is collapsed where a test needs the poll loop, and the
// retry backoff inside SendWithRetry is exercised through the channel
// package's own seam.

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/channel"
	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	"github.com/mrz1836/opsdesk/internal/vault"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestVault(t *testing.T) *vault.Manager {
	t.Helper()
	vm, err := vault.New(t.TempDir(), "orchestrator", testLogger())
	require.NoError(t, err)
	return vm
}

// approvedDraft writes a draft file into Approved and returns its path.
func approvedDraft(t *testing.T, vm *vault.Manager, name, content string) string {
	t.Helper()
	path := vm.TaskPath(constants.StageApproved, name)
	require.NoError(t, vm.Write(context.Background(), path, content))
	return path
}

// originatingTask writes the task a draft claims to come from into the
// agent's InProgress directory.
func originatingTask(t *testing.T, vm *vault.Manager, name string) string {
	t.Helper()
	path := filepath.Join(vm.AgentDir(), name)
	require.NoError(t, vm.Write(context.Background(), path, "# originating task\n"))
	return path
}

// stageNames lists the filenames resting in a stage.
func stageNames(t *testing.T, vm *vault.Manager, stage constants.Stage) []string {
	t.Helper()
	entries, err := os.ReadDir(vm.StageDir(stage))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// activityLog reads today's activity log, empty string when none exists.
func activityLog(t *testing.T, vm *vault.Manager) string {
	t.Helper()
	path := filepath.Join(vm.StageDir(constants.StageLogs), time.Now().Format("2006-01-02")+constants.TaskFileExt)
	data, err := os.ReadFile(path) //#nosec G304 -- test reads from its own temp vault
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

// sendStep scripts one stubSender.Send result.
type sendStep struct {
	ref string
	err error
}

// stubSender records outbound messages and plays scripted results; the
// last step repeats. onSend fires on every call, letting tests cancel
// mid-send.
type stubSender struct {
	channel domain.Channel
	steps   []sendStep
	onSend  func()
	calls   int
	sent    []*domain.Outbound
}

func (s *stubSender) Channel() domain.Channel {
	return s.channel
}

func (s *stubSender) Send(_ context.Context, out *domain.Outbound) (string, error) {
	s.calls++
	s.sent = append(s.sent, out)
	if s.onSend != nil {
		s.onSend()
	}

	if len(s.steps) == 0 {
		return "stub-ref", nil
	}
	idx := s.calls - 1
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	return s.steps[idx].ref, s.steps[idx].err
}

var _ channel.Sender = (*stubSender)(nil)

// stubFetcher satisfies DocumentFetcher with a fixed attachment or error.
type stubFetcher struct {
	att   *domain.Attachment
	err   error
	calls int
	ids   []int
}

func (f *stubFetcher) FetchInvoicePDF(_ context.Context, invoiceID int) (*domain.Attachment, error) {
	f.calls++
	f.ids = append(f.ids, invoiceID)
	if f.err != nil {
		return nil, f.err
	}
	return f.att, nil
}

var _ DocumentFetcher = (*stubFetcher)(nil)

func newTestDispatcher(vm *vault.Manager, cfg *config.DispatchConfig, fetcher DocumentFetcher, senders ...channel.Sender) *Dispatcher {
	d := New(vm, channel.NewRegistry(senders...), fetcher, cfg, testLogger())
	// Millisecond backoffs keep retry tests fast without touching the
	// channel package's sleep seam.
	d.retry = channel.RetryPolicy{
		MaxAttempts:    constants.MaxSendAttempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
	return d
}

// stubSleep collapses poll pauses and counts them.
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
