package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:     "deps",
	GroupID: "deps",
	Short:   "Manage dependency edges between issues",
}

var depsAddCmd = &cobra.Command{
	Use:   "add <from> <to>",
	Short: "Record that <from> depends on (is blocked by) <to>",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.AddDependency(rootCtx, args[0], args[1], resolveActor()); err != nil {
			return err
		}
		printResult(map[string]string{"from": args[0], "to": args[1]}, func(v interface{}) {
			fmt.Printf("%s %s now depends on %s\n", passStyle.Render("✓"), args[0], args[1])
		})
		return nil
	},
}

var depsRmCmd = &cobra.Command{
	Use:   "rm <from> <to>",
	Short: "Remove a dependency edge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.RemoveDependency(rootCtx, args[0], args[1], resolveActor()); err != nil {
			return err
		}
		printResult(map[string]string{"from": args[0], "to": args[1]}, func(v interface{}) {
			fmt.Printf("%s removed dependency %s -> %s\n", passStyle.Render("✓"), args[0], args[1])
		})
		return nil
	},
}

func init() {
	depsCmd.AddCommand(depsAddCmd, depsRmCmd)
}

var commentCmd = &cobra.Command{
	Use:     "comment <id> <text>",
	GroupID: "issues",
	Short:   "Add a comment to an issue",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.surface.AddComment(rootCtx, args[0], resolveActor(), args[1]); err != nil {
			return err
		}
		printResult(map[string]bool{"ok": true}, func(v interface{}) {
			fmt.Printf("%s comment added to %s\n", passStyle.Render("✓"), args[0])
		})
		return nil
	},
}
