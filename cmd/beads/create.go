package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/types"
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	GroupID: "issues",
	Short:   "Create a new issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		typ, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		desc, _ := cmd.Flags().GetString("description")
		notes, _ := cmd.Flags().GetString("notes")
		labels, _ := cmd.Flags().GetStringSlice("label")
		deps, _ := cmd.Flags().GetStringSlice("dep")
		parent, _ := cmd.Flags().GetString("parent")

		fields, err := parseFieldFlagsForType(cmd, a.registry, typ)
		if err != nil {
			return err
		}

		in := engine.CreateInput{
			Title:       args[0],
			Type:        typ,
			Priority:    priority,
			Description: desc,
			Notes:       notes,
			Fields:      fields,
			Labels:      labels,
			Deps:        deps,
			Actor:       resolveActor(),
		}
		if parent != "" {
			in.ParentID = &parent
		}

		iss, err := a.engine.CreateIssue(rootCtx, in)
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	createCmd.Flags().String("type", "task", "issue type (see 'beads templates list')")
	createCmd.Flags().Int("priority", 2, "priority 0 (highest) to 4 (lowest)")
	createCmd.Flags().String("description", "", "issue description")
	createCmd.Flags().String("notes", "", "free-form notes")
	createCmd.Flags().StringSlice("label", nil, "labels to attach (repeatable)")
	createCmd.Flags().StringSlice("dep", nil, "ids this issue depends on (repeatable)")
	createCmd.Flags().String("parent", "", "parent issue id")
	createCmd.Flags().StringSlice("field", nil, "custom field as key=value (repeatable)")
}

func printIssue(iss *types.Issue) {
	printResult(iss, func(v interface{}) {
		i := v.(*types.Issue)
		fmt.Printf("%s %s\n", accentStyle.Render(i.ID), boldStyle.Render(i.Title))
		fmt.Printf("  type: %s  status: %s  priority: %d\n", i.Type, i.Status, i.Priority)
		if i.Assignee != "" {
			fmt.Printf("  assignee: %s\n", i.Assignee)
		}
		if len(i.BlockedBy) > 0 {
			fmt.Printf("  blocked by: %v\n", i.BlockedBy)
		}
	})
}
