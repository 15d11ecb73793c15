package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
	"github.com/mrz1836/opsdesk/internal/flock"
)

// Advisory lock bounds for activity log appends. Appends are tiny, a
// writer that cannot get the lock within this window is wedged.
const (
	logLockTimeout = 5 * time.Second
	logLockRetry   = 50 * time.Millisecond
)

// logDateLayout names the per-day activity log file.
const logDateLayout = "2006-01-02"

// LogActivity appends one event bullet to the vault's per-day activity
// log, writing the day's header first when the file is new. Details are
// rendered in key order so entries are stable. The orchestrator and the
// dispatcher append from separate processes, so the write happens under
// an advisory file lock and as a single call, partial lines never show
// up in the log.
//
// The activity log is a domain artifact for humans, separate from the
// operational logger.
func (m *Manager) LogActivity(ctx context.Context, event string, details map[string]string) error {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	now := m.clock.Now()
	dir := m.StageDir(constants.StageLogs)
	if err := os.MkdirAll(dir, constants.DirPerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, now.Format(logDateLayout)+constants.TaskFileExt)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePerm) //#nosec G304 -- path is constructed from the vault root and the current date
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err = lockLogFile(ctx, f); err != nil {
		return err
	}
	defer func() {
		_ = flock.Unlock(f.Fd())
	}()

	var b strings.Builder
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat activity log: %w", err)
	}
	if info.Size() == 0 {
		fmt.Fprintf(&b, "# Activity Log — %s\n\n", now.Format(logDateLayout))
	}

	b.WriteString("- **[" + now.Format("15:04:05") + "]** " + event)
	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("`%s`: %s", k, details[k]))
		}
		b.WriteString(" — " + strings.Join(parts, " | "))
	}
	b.WriteString("\n")

	if _, err = f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}

	return nil
}

// lockLogFile acquires the advisory lock on an open log file, retrying
// briefly. Context cancellation aborts the wait.
func lockLogFile(ctx context.Context, f *os.File) error {
	deadline := time.Now().Add(logLockTimeout)
	for {
		if err := flock.Exclusive(f.Fd()); err == nil {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("failed to lock activity log: %w", opserrors.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(logLockRetry):
		}
	}
}
