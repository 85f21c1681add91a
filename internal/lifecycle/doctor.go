package lifecycle

import (
	"context"
	"fmt"
	"os"

	"github.com/agentflow/beads/internal/lockfile"
)

// DoctorReport is the mode-aware health check result from spec §4.5.
type DoctorReport struct {
	Mode    string
	Healthy bool
	Issues  []string
}

// DiagnoseEthereal checks the existence and liveness of ephemeral.pid,
// whether the recorded port is listening, and tails the log on an early
// exit, per spec §4.5.
func DiagnoseEthereal(projectDir string) *DoctorReport {
	paths := NewProjectPaths(projectDir)
	report := &DoctorReport{Mode: "ethereal", Healthy: true}

	pid, err := readIntFile(paths.PIDFile())
	if err != nil {
		report.Healthy = false
		report.Issues = append(report.Issues, "no ephemeral.pid recorded; dashboard has not been started")
		return report
	}
	if !lockfile.IsAlive(pid) {
		report.Healthy = false
		report.Issues = append(report.Issues, fmt.Sprintf("recorded pid %d is not running", pid))
		if tail, ok := tailLog(paths.LogFile()); ok {
			report.Issues = append(report.Issues, "log tail: "+tail)
		}
		return report
	}

	port, err := readIntFile(paths.PortFile())
	if err != nil {
		report.Healthy = false
		report.Issues = append(report.Issues, "no ephemeral.port recorded")
		return report
	}
	if !portAccepting(port) {
		report.Healthy = false
		report.Issues = append(report.Issues, fmt.Sprintf("port %d is not accepting connections", port))
	}
	return report
}

// DiagnoseServer checks the daemon's PID liveness and that every
// registered project directory still exists, per spec §4.5.
func DiagnoseServer(p ServerPaths) (*DoctorReport, error) {
	report := &DoctorReport{Mode: "server", Healthy: true}
	status, err := Status(p)
	if err != nil {
		return nil, err
	}
	if !status.Running {
		report.Healthy = false
		report.Issues = append(report.Issues, "server daemon is not running")
	}

	cfg, err := LoadServerConfig(p)
	if err != nil {
		return nil, err
	}
	for _, dir := range cfg.SortedProjectDirs() {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			report.Healthy = false
			report.Issues = append(report.Issues, fmt.Sprintf("registered project %s no longer exists; consider unregistering it", dir))
			continue
		}
		if reg := cfg.Projects[dir]; reg.Federation != nil {
			if err := PingFederation(context.Background(), *reg.Federation); err != nil {
				report.Healthy = false
				report.Issues = append(report.Issues, fmt.Sprintf("project %s federation endpoint unreachable: %v", dir, err))
			}
		}
	}
	return report, nil
}

const logTailBytes = 4096

func tailLog(path string) (string, bool) {
	data, err := os.ReadFile(path) // #nosec G304 - project-local log path
	if err != nil {
		return "", false
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return string(data), true
}
