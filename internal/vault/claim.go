package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/ctxutil"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// Lock is a sidecar claim lock next to a task file. Creating the sidecar
// with O_EXCL is the atomic claim primitive: exactly one process can
// create it, and everyone else backs off. It works on any filesystem
// without fcntl support because only creation semantics are relied on.
type Lock struct {
	path    string
	owner   string
	retry   time.Duration
	timeout time.Duration
}

// NewLock returns a lock for the sidecar of taskPath. The owner is
// recorded inside the lock file for debugging stale locks.
func NewLock(taskPath, owner string, timeout time.Duration) *Lock {
	return &Lock{
		path:    taskPath + constants.LockFileSuffix,
		owner:   owner,
		retry:   constants.ClaimRetryInterval,
		timeout: timeout,
	}
}

// Path returns the sidecar file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire creates the sidecar exclusively, retrying until the timeout.
// At least one attempt is always made, so a zero or negative timeout
// degrades to a single try. Returns ErrLockTimeout when the lock stayed
// held, or the context error when canceled while waiting.
func (l *Lock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, constants.FilePerm) //#nosec G304 -- sidecar path derives from a validated task path
		if err == nil {
			// Lock content is diagnostic only, failures to write it are ignored
			_, _ = fmt.Fprintf(f, "agent=%s pid=%d acquired_at=%s\n", l.owner, os.Getpid(), time.Now().Format(time.RFC3339))
			_ = f.Close()
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("lock '%s' still held: %w", filepath.Base(l.path), opserrors.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// Release removes the sidecar. A sidecar that is already gone is fine,
// the stale lock sweep may have beaten us to it.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Claim attempts to take ownership of a task: acquire the sidecar lock,
// re-check the task still exists, rename it into the agent's InProgress
// subdirectory and release the lock. A held lock or a task that vanished
// underneath us is not an error, Claim returns (nil, nil) and the caller
// moves on to the next task.
func (m *Manager) Claim(ctx context.Context, taskPath string) (*domain.Task, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	resolved, err := m.resolveWithinRoot(taskPath)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task '%s': %w", filepath.Base(taskPath), err)
	}
	base := filepath.Base(resolved)
	if err = validateName(base); err != nil {
		return nil, fmt.Errorf("failed to claim task '%s': %w", base, err)
	}

	lock := NewLock(resolved, m.agentID, m.claimTimeout)
	if err = lock.Acquire(ctx); err != nil {
		if errors.Is(err, opserrors.ErrLockTimeout) {
			m.logger.Debug().Str("task", base).Msg("task already claimed, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task '%s': %w", base, err)
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			m.logger.Warn().Str("task", base).Err(rerr).Msg("failed to release claim lock")
		}
	}()

	// The previous lock holder may have moved the file away already
	if _, err = os.Stat(resolved); os.IsNotExist(err) {
		m.logger.Debug().Str("task", base).Msg("task vanished before claim, skipping")
		return nil, nil
	}

	if err = os.MkdirAll(m.AgentDir(), constants.DirPerm); err != nil {
		return nil, fmt.Errorf("failed to claim task '%s': %w", base, err)
	}

	dest := filepath.Join(m.AgentDir(), base)
	if _, err = os.Stat(dest); err == nil {
		dest = filepath.Join(m.AgentDir(), m.stampName(base, ""))
	}

	if err = os.Rename(resolved, dest); err != nil {
		if os.IsNotExist(err) {
			m.logger.Debug().Str("task", base).Msg("task vanished before claim, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task '%s': %w", base, err)
	}

	destBase := filepath.Base(dest)
	return &domain.Task{
		ID:    strings.TrimSuffix(destBase, constants.TaskFileExt),
		Path:  dest,
		Stage: constants.StageInProgress,
	}, nil
}

// RecoverStaleLocks removes Intake sidecar locks older than the given
// age. A live claim holds its lock for milliseconds, so anything older is
// debris from a crash between lock creation and release, and the task it
// guards would otherwise be unclaimable forever. Returns how many locks
// were removed.
func (m *Manager) RecoverStaleLocks(ctx context.Context, olderThan time.Duration) (int, error) {
	// Check for cancellation at entry
	if err := ctxutil.Canceled(ctx); err != nil {
		return 0, err
	}

	dir := m.StageDir(constants.StageIntake)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to sweep stale locks: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), constants.LockFileSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := m.clock.Now().Sub(info.ModTime())
		if age <= olderThan {
			continue
		}

		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Str("lock", entry.Name()).Err(err).Msg("failed to remove stale lock")
			continue
		}
		m.logger.Warn().Str("lock", entry.Name()).Dur("age", age).Msg("removed stale claim lock")
		removed++
	}

	return removed, nil
}
