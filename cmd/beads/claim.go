package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/engine"
)

var claimCmd = &cobra.Command{
	Use:     "claim <id>",
	GroupID: "issues",
	Short:   "Claim an issue for an assignee, moving it into its in-progress state",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		assignee, _ := cmd.Flags().GetString("assignee")
		if assignee == "" {
			assignee = resolveActor()
		}
		iss, err := a.engine.ClaimIssue(rootCtx, args[0], assignee, resolveActor())
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	claimCmd.Flags().String("assignee", "", "assignee to claim for (default: the acting actor)")
}

var releaseCmd = &cobra.Command{
	Use:     "release <id>",
	GroupID: "issues",
	Short:   "Release a claimed issue back to its open state",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		iss, err := a.engine.ReleaseClaim(rootCtx, args[0], resolveActor())
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

var claimNextCmd = &cobra.Command{
	Use:     "claim-next",
	GroupID: "issues",
	Short:   "Claim the highest-priority ready, unassigned issue matching the given filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		assignee, _ := cmd.Flags().GetString("assignee")
		if assignee == "" {
			assignee = resolveActor()
		}
		filter := engine.ClaimNextFilter{}
		if t, _ := cmd.Flags().GetString("type"); t != "" {
			filter.Type = t
		}
		if cmd.Flags().Changed("priority-min") {
			p, _ := cmd.Flags().GetInt("priority-min")
			filter.PriorityMin = &p
		}
		if cmd.Flags().Changed("priority-max") {
			p, _ := cmd.Flags().GetInt("priority-max")
			filter.PriorityMax = &p
		}

		iss, err := a.engine.ClaimNext(rootCtx, assignee, filter, resolveActor())
		if err != nil {
			return err
		}
		if iss == nil {
			printResult(map[string]bool{"claimed": false}, func(v interface{}) {
				fmt.Println(mutedStyle.Render("no ready, unassigned issue matched the given filters"))
			})
			return nil
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	claimNextCmd.Flags().String("assignee", "", "assignee to claim for (default: the acting actor)")
	claimNextCmd.Flags().String("type", "", "restrict to one issue type")
	claimNextCmd.Flags().Int("priority-min", 0, "minimum priority (0 highest)")
	claimNextCmd.Flags().Int("priority-max", 0, "maximum priority (4 lowest)")
}
