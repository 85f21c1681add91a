package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/lifecycle"
	"github.com/agentflow/beads/internal/project"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "lifecycle",
	Short:   "Diagnose the dashboard process for this project (ethereal or server mode)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")

		var report *lifecycle.DoctorReport
		switch mode {
		case "server":
			paths, err := lifecycle.NewServerPaths()
			if err != nil {
				return err
			}
			report, err = lifecycle.DiagnoseServer(paths)
			if err != nil {
				return err
			}
		case "ethereal", "":
			dir := project.Find()
			if dir == "" {
				return fmt.Errorf("no %s directory found in this tree", project.DirName)
			}
			report = lifecycle.DiagnoseEthereal(dir)
		default:
			return fmt.Errorf("unknown mode %q, want \"ethereal\" or \"server\"", mode)
		}

		printResult(report, func(v interface{}) {
			r := v.(*lifecycle.DoctorReport)
			if r.Healthy {
				fmt.Printf("%s %s dashboard is healthy\n", passStyle.Render("✓"), r.Mode)
				return
			}
			fmt.Printf("%s %s dashboard has problems:\n", failStyle.Render("✗"), r.Mode)
			for _, issue := range r.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		})
		if !report.Healthy {
			return apierr.Validationf("%s dashboard diagnostics failed", report.Mode)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().String("mode", "", "which dashboard mode to diagnose: \"ethereal\" (default) or \"server\"")
}
