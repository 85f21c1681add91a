package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agentflow/beads/internal/lockfile"
)

// EtherealResult is what StartEthereal returns to the caller: either an
// already-running instance's address, or a freshly spawned one.
type EtherealResult struct {
	URL        string
	Port       int
	PID        int
	AlreadyRunning bool
}

// spawnChildWaitDelay is the fixed short delay used to detect an
// immediate child exit, per spec §4.5 step 5 / §5.
const spawnChildWaitDelay = 500 * time.Millisecond

// SpawnFunc launches the dashboard subprocess. Production callers pass a
// function that execs the current binary with `dashboard --serve`; tests
// substitute a fake.
type SpawnFunc func(ctx context.Context, projectDir string, port int, logFile *os.File) (*os.Process, error)

// StartEthereal implements the spec §4.5 ethereal-mode startup protocol.
func StartEthereal(ctx context.Context, projectDir string, spawn SpawnFunc) (*EtherealResult, error) {
	resolvedDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: resolving project dir: %w", err)
	}
	paths := NewProjectPaths(resolvedDir)

	lock, err := lockfile.TryLock(paths.LockFile())
	if err != nil {
		if err == lockfile.ErrBusy {
			return nil, fmt.Errorf("lifecycle: another session is starting the dashboard for %s", resolvedDir)
		}
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	if existing, ok := checkExistingInstance(paths); ok {
		return existing, nil
	}
	reapStalePID(paths)

	// Re-check under the lock: another process may have finished
	// starting between our first check and acquiring the lock.
	if existing, ok := checkExistingInstance(paths); ok {
		return existing, nil
	}

	port, err := SelectPort(resolvedDir)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: selecting port: %w", err)
	}

	logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("lifecycle: opening log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	proc, err := spawn(ctx, resolvedDir, port, logFile)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: spawning dashboard: %w", err)
	}

	if exited, stderr := waitForEarlyExit(proc, paths.LogFile()); exited {
		return nil, fmt.Errorf("lifecycle: dashboard exited immediately: %s", stderr)
	}

	if err := writeAtomic(paths.PIDFile(), []byte(fmt.Sprintf("%d", proc.Pid))); err != nil {
		return nil, err
	}
	if err := writeAtomic(paths.PortFile(), []byte(fmt.Sprintf("%d", port))); err != nil {
		return nil, err
	}

	return &EtherealResult{
		URL:  fmt.Sprintf("http://127.0.0.1:%d", port),
		Port: port,
		PID:  proc.Pid,
	}, nil
}

// checkExistingInstance implements spec §4.5 step 3: an existing
// instance is considered live only if its recorded PID is alive AND its
// recorded port accepts connections.
func checkExistingInstance(paths ProjectPaths) (*EtherealResult, bool) {
	pid, err := readIntFile(paths.PIDFile())
	if err != nil {
		return nil, false
	}
	port, err := readIntFile(paths.PortFile())
	if err != nil {
		return nil, false
	}
	if !lockfile.IsAlive(pid) || !portAccepting(port) {
		return nil, false
	}
	return &EtherealResult{
		URL:            fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:           port,
		PID:            pid,
		AlreadyRunning: true,
	}, true
}

// reapStalePID implements spec §4.5 step 4: if the recorded PID exists
// but the process is dead, remove the stale PID file.
func reapStalePID(paths ProjectPaths) {
	pid, err := readIntFile(paths.PIDFile())
	if err != nil {
		return
	}
	if !lockfile.IsAlive(pid) {
		_ = os.Remove(paths.PIDFile())
	}
}

// waitForEarlyExit waits spawnChildWaitDelay and checks whether proc has
// already exited; if so, it returns the captured log tail as stderr.
func waitForEarlyExit(proc *os.Process, logPath string) (exited bool, stderr string) {
	done := make(chan struct{})
	go func() {
		_, _ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
		data, _ := os.ReadFile(logPath) // #nosec G304 - project-local log path
		return true, string(data)
	case <-time.After(spawnChildWaitDelay):
		return false, ""
	}
}

// ExecSpawn is the production SpawnFunc: it re-execs the current binary
// in dashboard-server mode, detached from the parent's process group,
// with stderr redirected to logFile.
func ExecSpawn(selfBinary string, extraArgs ...string) SpawnFunc {
	return func(ctx context.Context, projectDir string, port int, logFile *os.File) (*os.Process, error) {
		args := append([]string{"dashboard", "--serve",
			"--project-dir", projectDir,
			"--port", fmt.Sprintf("%d", port)}, extraArgs...)
		cmd := exec.CommandContext(context.WithoutCancel(ctx), selfBinary, args...)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		cmd.Stdin = nil
		detachProcessGroup(cmd)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd.Process, nil
	}
}
