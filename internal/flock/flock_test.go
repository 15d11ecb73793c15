//go:build unix

package flock_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/flock"
)

func openLogFile(t *testing.T) *os.File {
	t.Helper()

	path := filepath.Join(t.TempDir(), "2025-08-25.md")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f
}

func TestExclusive_AcquireAndRelease(t *testing.T) {
	t.Parallel()

	f := openLogFile(t)

	require.NoError(t, flock.Exclusive(f.Fd()))
	require.NoError(t, flock.Unlock(f.Fd()))
}

func TestExclusive_HeldLockRejectsSecondHandle(t *testing.T) {
	t.Parallel()

	f1 := openLogFile(t)
	require.NoError(t, flock.Exclusive(f1.Fd()))
	defer func() {
		require.NoError(t, flock.Unlock(f1.Fd()))
	}()

	// A second handle on the same file must be refused without blocking
	f2, err := os.OpenFile(f1.Name(), os.O_RDWR, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	defer func() {
		_ = f2.Close()
	}()

	require.Error(t, flock.Exclusive(f2.Fd()))
}

func TestExclusive_ReacquireAfterUnlock(t *testing.T) {
	t.Parallel()

	f := openLogFile(t)

	require.NoError(t, flock.Exclusive(f.Fd()))
	require.NoError(t, flock.Unlock(f.Fd()))

	require.NoError(t, flock.Exclusive(f.Fd()))
	require.NoError(t, flock.Unlock(f.Fd()))
}

func TestExclusive_ClosingHandleReleasesLock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "2025-08-25.md")
	f1, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	require.NoError(t, flock.Exclusive(f1.Fd()))

	// A crashed appender never calls Unlock, closing the descriptor is enough
	require.NoError(t, f1.Close())

	f2, err := os.OpenFile(path, os.O_RDWR, 0o600) // #nosec G304 -- test code using safe temp dir
	require.NoError(t, err)
	defer func() {
		_ = f2.Close()
	}()

	require.NoError(t, flock.Exclusive(f2.Fd()))
	require.NoError(t, flock.Unlock(f2.Fd()))
}
