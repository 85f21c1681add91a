package main

import (
	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/engine"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	GroupID: "issues",
	Short:   "Update an issue's status, fields, or metadata atomically",
	Long: `Applies every supplied change in a single transaction. When --status
and one or more --field flags are given together, the fields are merged
before the transition is validated, so a status change that depends on a
field set in the same command succeeds, per the engine's atomic-update
contract.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		in := engine.UpdateInput{Actor: resolveActor()}

		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			in.Status = &s
		}
		if cmd.Flags().Changed("priority") {
			p, _ := cmd.Flags().GetInt("priority")
			in.Priority = &p
		}
		if cmd.Flags().Changed("title") {
			t, _ := cmd.Flags().GetString("title")
			in.Title = &t
		}
		if cmd.Flags().Changed("assignee") {
			as, _ := cmd.Flags().GetString("assignee")
			in.Assignee = &as
		}
		if cmd.Flags().Changed("description") {
			d, _ := cmd.Flags().GetString("description")
			in.Description = &d
		}
		if cmd.Flags().Changed("notes") {
			n, _ := cmd.Flags().GetString("notes")
			in.Notes = &n
		}
		if cmd.Flags().Changed("parent") {
			p, _ := cmd.Flags().GetString("parent")
			if p == "" {
				var nilStr *string
				in.ParentID = &nilStr
			} else {
				in.ParentID = &p
			}
		}

		typeName := ""
		if current, err := a.engine.GetIssue(rootCtx, args[0]); err == nil {
			typeName = current.Type
		}
		fields, err := parseFieldFlagsForType(cmd, a.registry, typeName)
		if err != nil {
			return err
		}
		in.Fields = fields

		iss, err := a.engine.UpdateIssue(rootCtx, args[0], in)
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("status", "", "target status (validated against the type's workflow)")
	updateCmd.Flags().Int("priority", 0, "priority 0-4")
	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().String("assignee", "", "new assignee")
	updateCmd.Flags().String("description", "", "new description")
	updateCmd.Flags().String("notes", "", "new notes")
	updateCmd.Flags().String("parent", "", "new parent id (empty string clears it)")
	updateCmd.Flags().StringSlice("field", nil, "custom field as key=value (repeatable)")
}
