package lifecycle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/agentflow/beads/internal/lockfile"
)

// ServerConfig is the persisted server.toml contents, per spec §6: a
// listening port and the set of registered project directories.
type ServerConfig struct {
	Port     int                        `toml:"port"`
	Projects map[string]ProjectRegistration `toml:"projects"`
}

// ProjectRegistration is one entry in the server's projects map.
type ProjectRegistration struct {
	Prefix     string            `toml:"prefix"`
	Federation *FederationConfig `toml:"federation,omitempty"`
}

// DefaultServerPort is used when server.toml doesn't exist yet.
const DefaultServerPort = 8420

// ServerPaths resolves the user-config-dir file locations for server
// mode, per spec §4.5/§6.
type ServerPaths struct {
	ConfigDir string
}

// NewServerPaths resolves <user_config>/<tool>/ as the server mode
// directory, creating it if necessary.
func NewServerPaths() (ServerPaths, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return ServerPaths{}, fmt.Errorf("lifecycle: resolving user config dir: %w", err)
	}
	dir := filepath.Join(base, "beads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ServerPaths{}, fmt.Errorf("lifecycle: creating %s: %w", dir, err)
	}
	return ServerPaths{ConfigDir: dir}, nil
}

func (p ServerPaths) ConfigFile() string { return filepath.Join(p.ConfigDir, "server.toml") }
func (p ServerPaths) PIDFile() string    { return filepath.Join(p.ConfigDir, "server.pid") }
func (p ServerPaths) LogFile() string    { return filepath.Join(p.ConfigDir, "server.log") }
func (p ServerPaths) LockFile() string   { return filepath.Join(p.ConfigDir, "server.lock") }

// LoadServerConfig reads server.toml, defaulting the port and an empty
// project map when the file doesn't exist yet.
func LoadServerConfig(p ServerPaths) (*ServerConfig, error) {
	cfg := &ServerConfig{Port: DefaultServerPort, Projects: map[string]ProjectRegistration{}}
	data, err := os.ReadFile(p.ConfigFile()) // #nosec G304 - user config path
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lifecycle: reading server.toml: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("lifecycle: parsing server.toml: %w", err)
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]ProjectRegistration{}
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultServerPort
	}
	return cfg, nil
}

// SaveServerConfig writes server.toml atomically.
func SaveServerConfig(p ServerPaths, cfg *ServerConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("lifecycle: encoding server.toml: %w", err)
	}
	return writeAtomic(p.ConfigFile(), buf.Bytes())
}

// RegisterProject adds or updates a project's registration and persists
// server.toml.
func RegisterProject(p ServerPaths, resolvedDir, prefix string) error {
	cfg, err := LoadServerConfig(p)
	if err != nil {
		return err
	}
	cfg.Projects[resolvedDir] = ProjectRegistration{Prefix: prefix}
	return SaveServerConfig(p, cfg)
}

// UnregisterProject removes a project's registration and persists
// server.toml.
func UnregisterProject(p ServerPaths, resolvedDir string) error {
	cfg, err := LoadServerConfig(p)
	if err != nil {
		return err
	}
	delete(cfg.Projects, resolvedDir)
	return SaveServerConfig(p, cfg)
}

// ServerStatus reports the daemon's PID liveness.
type ServerStatus struct {
	Running bool
	PID     int
	Port    int
}

// Status reads the global PID file and reports whether the daemon is
// alive, per spec §4.5.
func Status(p ServerPaths) (*ServerStatus, error) {
	cfg, err := LoadServerConfig(p)
	if err != nil {
		return nil, err
	}
	pid, err := readIntFile(p.PIDFile())
	if err != nil {
		return &ServerStatus{Port: cfg.Port}, nil
	}
	return &ServerStatus{Running: lockfile.IsAlive(pid), PID: pid, Port: cfg.Port}, nil
}

// StartDaemon records the current process's PID as the running daemon.
// Callers invoke this from within the long-lived server process itself
// after it has bound its listener.
func StartDaemon(p ServerPaths) error {
	if _, err := lockfile.TryLock(p.LockFile()); err != nil {
		if err == lockfile.ErrBusy {
			return fmt.Errorf("lifecycle: server already running for %s", p.ConfigDir)
		}
		return err
	}
	return writeAtomic(p.PIDFile(), []byte(fmt.Sprintf("%d", os.Getpid())))
}

// StopDaemon sends a terminate signal to the registered PID and removes
// the PID file, per spec §4.5.
func StopDaemon(p ServerPaths) error {
	pid, err := readIntFile(p.PIDFile())
	if err != nil {
		return fmt.Errorf("lifecycle: no running server recorded: %w", err)
	}
	if lockfile.IsAlive(pid) {
		proc, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("lifecycle: finding server process %d: %w", pid, err)
		}
		if err := terminate(proc); err != nil {
			return fmt.Errorf("lifecycle: signaling server process %d: %w", pid, err)
		}
	}
	return os.Remove(p.PIDFile())
}

// SortedProjectDirs returns the registered project directories in sorted
// order, for deterministic doctor/status output.
func (c *ServerConfig) SortedProjectDirs() []string {
	out := make([]string, 0, len(c.Projects))
	for d := range c.Projects {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
