// Command beads is the CLI front-end over the issue engine: create,
// update, claim, and inspect issues from a terminal or an agent's tool
// harness.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/config"
)

const binName = "beads"

var (
	dbPathOverride string
	actorFlag      string
	jsonOutput     bool
	noColor        bool

	rootCtx context.Context
)

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "dir", "", "project .beads directory (default: auto-discover)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "actor name recorded on events (default: $BEADS_ACTOR or $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled terminal output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "issues", Title: "Working with issues:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "deps", Title: "Dependencies:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "lifecycle", Title: "Dashboard & server:"},
	)

	rootCmd.AddCommand(
		initCmd,
		installCmd,
		createCmd,
		updateCmd,
		closeCmd,
		reopenCmd,
		claimCmd,
		releaseCmd,
		claimNextCmd,
		showCmd,
		listCmd,
		searchCmd,
		readyCmd,
		blockedCmd,
		criticalPathCmd,
		depsCmd,
		commentCmd,
		batchCmd,
		packsCmd,
		templatesCmd,
		dashboardCmd,
		serverCmd,
		doctorCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:           binName,
	Short:         binName + " - dependency-aware issue tracker for agent workflows",
	Long:          `Issues chained together with first-class dependency tracking, workflow templates, and a local dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !jsonOutput && config.GetBool("json") {
			jsonOutput = true
		}
		if noColor {
			disableColor()
		}
		rootCtx = context.Background()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
