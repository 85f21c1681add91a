package lockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/lockfile"
)

func TestTryLockThenBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ephemeral.lock")

	l1, err := lockfile.TryLock(path)
	require.NoError(t, err)

	_, err = lockfile.TryLock(path)
	require.ErrorIs(t, err, lockfile.ErrBusy)

	require.NoError(t, l1.Release())
}

func TestReleaseThenReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ephemeral.lock")

	l1, err := lockfile.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, l1.Release())

	l2, err := lockfile.TryLock(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestReleaseNilLockIsNoop(t *testing.T) {
	var l *lockfile.Lock
	require.NoError(t, l.Release())
}

func TestIsAliveForCurrentProcess(t *testing.T) {
	require.True(t, lockfile.IsAlive(os.Getpid()))
}

func TestIsAliveFalseForNonPositivePID(t *testing.T) {
	require.False(t, lockfile.IsAlive(0))
	require.False(t, lockfile.IsAlive(-1))
}

func TestIsAliveFalseForUnlikelyPID(t *testing.T) {
	// PID 1<<30 is never a real process on a sane system; best-effort
	// smoke test that a dead PID reports not alive.
	require.False(t, lockfile.IsAlive(1<<30))
}
