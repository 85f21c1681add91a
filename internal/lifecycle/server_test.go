package lifecycle_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/lifecycle"
)

func testServerPaths(t *testing.T) lifecycle.ServerPaths {
	t.Helper()
	return lifecycle.ServerPaths{ConfigDir: t.TempDir()}
}

func TestLoadServerConfigDefaultsWhenAbsent(t *testing.T) {
	p := testServerPaths(t)
	cfg, err := lifecycle.LoadServerConfig(p)
	require.NoError(t, err)
	require.Equal(t, lifecycle.DefaultServerPort, cfg.Port)
	require.Empty(t, cfg.Projects)
}

func TestRegisterAndUnregisterProjectRoundTrip(t *testing.T) {
	p := testServerPaths(t)
	dir := filepath.Join(t.TempDir(), "myproject")

	require.NoError(t, lifecycle.RegisterProject(p, dir, "mp"))
	cfg, err := lifecycle.LoadServerConfig(p)
	require.NoError(t, err)
	require.Equal(t, "mp", cfg.Projects[dir].Prefix)
	require.Equal(t, []string{dir}, cfg.SortedProjectDirs())

	require.NoError(t, lifecycle.UnregisterProject(p, dir))
	cfg, err = lifecycle.LoadServerConfig(p)
	require.NoError(t, err)
	require.Empty(t, cfg.Projects)
}

func TestStartDaemonRecordsCurrentPID(t *testing.T) {
	p := testServerPaths(t)
	require.NoError(t, lifecycle.StartDaemon(p))

	status, err := lifecycle.Status(p)
	require.NoError(t, err)
	require.True(t, status.Running)
	require.Equal(t, os.Getpid(), status.PID)
}

func TestStartDaemonTwiceFailsWhileFirstHoldsLock(t *testing.T) {
	p := testServerPaths(t)
	require.NoError(t, lifecycle.StartDaemon(p))
	err := lifecycle.StartDaemon(p)
	require.Error(t, err)
}

func TestDiagnoseServerFlagsMissingProjectDir(t *testing.T) {
	p := testServerPaths(t)
	require.NoError(t, lifecycle.StartDaemon(p))

	ghost := filepath.Join(t.TempDir(), "does-not-exist")
	require.NoError(t, lifecycle.RegisterProject(p, ghost, "gh"))

	report, err := lifecycle.DiagnoseServer(p)
	require.NoError(t, err)
	require.False(t, report.Healthy)
	require.Len(t, report.Issues, 1)
	require.Contains(t, report.Issues[0], ghost)
}

func TestDiagnoseServerHealthyWithNoIssues(t *testing.T) {
	p := testServerPaths(t)
	require.NoError(t, lifecycle.StartDaemon(p))

	live := t.TempDir()
	require.NoError(t, lifecycle.RegisterProject(p, live, "lv"))

	report, err := lifecycle.DiagnoseServer(p)
	require.NoError(t, err)
	require.True(t, report.Healthy)
	require.Empty(t, report.Issues)
}

func TestDiagnoseEtheralWithNoPIDFile(t *testing.T) {
	dir := t.TempDir()
	report := lifecycle.DiagnoseEthereal(dir)
	require.False(t, report.Healthy)
	require.Equal(t, "ethereal", report.Mode)
	require.Len(t, report.Issues, 1)
}
