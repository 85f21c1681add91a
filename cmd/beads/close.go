package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/types"
)

var closeCmd = &cobra.Command{
	Use:     "close <id>",
	GroupID: "issues",
	Short:   "Close an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		reason, _ := cmd.Flags().GetString("reason")
		in := engine.CloseInput{Reason: reason, Actor: resolveActor()}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			in.Status = &s
		}

		iss, err := a.engine.CloseIssue(rootCtx, args[0], in)
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	closeCmd.Flags().String("reason", "", "closing reason recorded on the event log")
	closeCmd.Flags().String("status", "", "explicit done-category status (default: the type's first done state)")
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id>",
	GroupID: "issues",
	Short:   "Reopen a closed issue into an open state",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		status, _ := cmd.Flags().GetString("status")
		if status == "" {
			current, err := a.engine.GetIssue(rootCtx, args[0])
			if err != nil {
				return err
			}
			status = a.registry.GetFirstStateOfCategory(current.Type, types.CategoryOpen)
			if status == "" {
				return fmt.Errorf("type %s declares no open-category state to reopen into", current.Type)
			}
		}

		in := engine.UpdateInput{Status: &status, Actor: resolveActor()}
		iss, err := a.engine.UpdateIssue(rootCtx, args[0], in)
		if err != nil {
			return err
		}
		printIssue(iss)
		return nil
	},
}

func init() {
	reopenCmd.Flags().String("status", "", "target open status (default: the type's open/ready state)")
}
