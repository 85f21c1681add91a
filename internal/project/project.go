// Package project locates and resolves the .beads directory a command
// should operate on, mirroring the discovery order of established
// issue-tracker CLIs: an explicit override env var first, then walking
// up from the current directory.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentflow/beads/internal/types"
)

// CanonicalDatabaseName is the required database filename inside every
// .beads directory.
const CanonicalDatabaseName = "beads.db"

// DirName is the per-project metadata directory name.
const DirName = ".beads"

// Find walks upward from the current working directory looking for a
// .beads directory, honoring $BEADS_DIR as an explicit override.
// Returns "" if none is found.
func Find() string {
	if dir := os.Getenv("BEADS_DIR"); dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			return abs
		}
		return dir
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// DatabasePath returns <beadsDir>/beads.db.
func DatabasePath(beadsDir string) string {
	return filepath.Join(beadsDir, CanonicalDatabaseName)
}

// LoadConfig reads <beadsDir>/config.json, applying the same defaults
// the template registry uses when a field is omitted.
func LoadConfig(beadsDir string) (*types.ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(beadsDir, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("project: reading config.json: %w", err)
	}
	var cfg types.ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("project: parsing config.json: %w", err)
	}
	if len(cfg.EnabledPacks) == 0 {
		cfg.EnabledPacks = types.DefaultEnabledPacks()
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeEthereal
	}
	return &cfg, nil
}

// SaveConfig atomically overwrites <beadsDir>/config.json, per spec §5's
// "PID/port files are written atomically" pattern applied to config.
func SaveConfig(beadsDir string, cfg *types.ProjectConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("project: encoding config.json: %w", err)
	}
	tmp := filepath.Join(beadsDir, ".config.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("project: writing config.json: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(beadsDir, "config.json")); err != nil {
		return fmt.Errorf("project: renaming config.json into place: %w", err)
	}
	return nil
}

// Init creates a new .beads directory under cwd, failing if one already
// exists at that exact location.
func Init() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("project: resolving cwd: %w", err)
	}
	dir := filepath.Join(cwd, DirName)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, fmt.Errorf("project: %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("project: creating %s: %w", dir, err)
	}
	return dir, nil
}
