package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/project"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize a .beads project in the current directory",
	Long: `Creates a .beads/ directory with a SQLite database and config.json.

The issue ID prefix defaults to the current directory's name; override it
with --prefix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix, _ := cmd.Flags().GetString("prefix")
		force, _ := cmd.Flags().GetBool("force")

		dir, err := project.Init()
		if err != nil {
			if !force || dir == "" {
				return err
			}
		}

		if prefix == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving cwd: %w", err)
			}
			prefix = filepath.Base(cwd)
		}
		prefix = strings.TrimRight(prefix, "-")

		mode := types.ModeEthereal
		if server, _ := cmd.Flags().GetBool("server"); server {
			mode = types.ModeServer
		}
		cfg := types.ProjectConfig{
			Prefix:       prefix,
			Version:      1,
			EnabledPacks: types.DefaultEnabledPacks(),
			Mode:         mode,
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding config.json: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
			return fmt.Errorf("writing config.json: %w", err)
		}

		st, err := store.Open(rootCtx, project.DatabasePath(dir), prefix)
		if err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		defer func() { _ = st.Close() }()

		printResult(map[string]string{"dir": dir, "prefix": prefix}, func(v interface{}) {
			m := v.(map[string]string)
			fmt.Printf("%s initialized %s with issue prefix %s\n", passStyle.Render("✓"), m["dir"], boldStyle.Render(m["prefix"]))
		})
		return nil
	},
}

func init() {
	initCmd.Flags().String("prefix", "", "issue id prefix (default: current directory name)")
	initCmd.Flags().Bool("force", false, "reinitialize even if .beads already exists")
	initCmd.Flags().Bool("server", false, "prefer server-mode dashboard lifecycle over ethereal")
}

var installCmd = &cobra.Command{
	Use:     "install",
	GroupID: "setup",
	Short:   "Verify the current project and report its configuration",
	Long:    `Opens the project the same way every other command does and reports the resolved paths, prefix, and registered template packs, as a smoke test after init or a clone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		info := map[string]interface{}{
			"dir":    a.beadsDir,
			"prefix": a.store.Prefix(),
			"packs":  a.registry.ListPacks(),
			"types":  a.registry.ListTypes(),
		}
		printResult(info, func(v interface{}) {
			m := v.(map[string]interface{})
			fmt.Printf("%s project at %s\n", passStyle.Render("✓"), m["dir"])
			fmt.Printf("  prefix: %s\n", m["prefix"])
			fmt.Printf("  types:  %v\n", m["types"])
		})
		return nil
	},
}
