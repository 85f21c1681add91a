package lifecycle_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/lifecycle"
)

func TestDeterministicPortIsStableAndInRange(t *testing.T) {
	dir := "/home/agent/projects/widgets"
	p1 := lifecycle.DeterministicPort(dir)
	p2 := lifecycle.DeterministicPort(dir)
	require.Equal(t, p1, p2)
	require.GreaterOrEqual(t, p1, lifecycle.BasePort)
	require.Less(t, p1, lifecycle.BasePort+lifecycle.PortRange)
}

func TestDeterministicPortDiffersAcrossProjects(t *testing.T) {
	p1 := lifecycle.DeterministicPort("/home/agent/projects/widgets")
	p2 := lifecycle.DeterministicPort("/home/agent/projects/gadgets")
	require.NotEqual(t, p1, p2)
}

func TestSelectPortFallsBackWhenDeterministicPortBusy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	candidate := lifecycle.DeterministicPort(dir)

	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", candidate))
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	port, err := lifecycle.SelectPort(dir)
	require.NoError(t, err)
	require.NotEqual(t, candidate, port)
}

func TestProjectPathsLayout(t *testing.T) {
	paths := lifecycle.NewProjectPaths("/tmp/proj")
	require.Equal(t, "/tmp/proj/ephemeral.pid", paths.PIDFile())
	require.Equal(t, "/tmp/proj/ephemeral.port", paths.PortFile())
	require.Equal(t, "/tmp/proj/ephemeral.lock", paths.LockFile())
	require.Equal(t, "/tmp/proj/ephemeral.log", paths.LogFile())
}

func fakeSpawn(t *testing.T) lifecycle.SpawnFunc {
	t.Helper()
	return func(ctx context.Context, projectDir string, port int, logFile *os.File) (*os.Process, error) {
		cmd := exec.Command("sleep", "30")
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = cmd.Process.Kill() })
		return cmd.Process, nil
	}
}

func TestStartEtherealSpawnsAndWritesFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	res, err := lifecycle.StartEthereal(ctx, dir, fakeSpawn(t))
	require.NoError(t, err)
	require.False(t, res.AlreadyRunning)
	require.NotZero(t, res.PID)
	require.NotZero(t, res.Port)
	require.True(t, strings.HasPrefix(res.URL, "http://127.0.0.1:"))

	paths := lifecycle.NewProjectPaths(dir)
	_, err = os.Stat(paths.PIDFile())
	require.NoError(t, err)
	_, err = os.Stat(paths.PortFile())
	require.NoError(t, err)
}

func TestStartEtherealDetectsAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	paths := lifecycle.NewProjectPaths(dir)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	livePort := ln.Addr().(*net.TCPAddr).Port

	require.NoError(t, os.WriteFile(paths.PIDFile(), []byte(fmt.Sprintf("%d", os.Getpid())), 0o644))
	require.NoError(t, os.WriteFile(paths.PortFile(), []byte(fmt.Sprintf("%d", livePort)), 0o644))

	called := false
	spawn := func(ctx context.Context, projectDir string, port int, logFile *os.File) (*os.Process, error) {
		called = true
		return nil, fmt.Errorf("should not be called")
	}

	res, err := lifecycle.StartEthereal(context.Background(), dir, spawn)
	require.NoError(t, err)
	require.True(t, res.AlreadyRunning)
	require.Equal(t, livePort, res.Port)
	require.False(t, called)
}

func TestStartEtherealReapsStalePIDAndRespawns(t *testing.T) {
	dir := t.TempDir()
	paths := lifecycle.NewProjectPaths(dir)

	// A PID that almost certainly doesn't correspond to a live process,
	// with no port file recorded: the PID file is stale.
	require.NoError(t, os.WriteFile(paths.PIDFile(), []byte("999999999"), 0o644))

	res, err := lifecycle.StartEthereal(context.Background(), dir, fakeSpawn(t))
	require.NoError(t, err)
	require.False(t, res.AlreadyRunning)
}
