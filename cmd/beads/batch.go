package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/engine"
)

var batchCmd = &cobra.Command{
	Use:     "batch",
	GroupID: "issues",
	Short:   "Apply an operation to many issues, continuing past per-issue failures",
}

var batchCloseCmd = &cobra.Command{
	Use:   "close <id...>",
	Short: "Close every given issue independently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		reason, _ := cmd.Flags().GetString("reason")
		result := a.engine.BatchClose(rootCtx, args, reason, resolveActor())
		printBatchResult(result)
		return batchError(result)
	},
}

func init() {
	batchCloseCmd.Flags().String("reason", "", "closing reason recorded on every event")
}

var batchUpdateCmd = &cobra.Command{
	Use:   "update <id...>",
	Short: "Merge the given --field values into every listed issue independently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		fields, err := parseFieldFlags(cmd)
		if err != nil {
			return err
		}
		result := a.engine.BatchUpdate(rootCtx, args, fields, resolveActor())
		printBatchResult(result)
		return batchError(result)
	},
}

func init() {
	batchUpdateCmd.Flags().StringSlice("field", nil, "custom field as key=value (repeatable)")
	batchCmd.AddCommand(batchCloseCmd, batchUpdateCmd)
}

func printBatchResult(result *engine.BatchResult) {
	printResult(result, func(v interface{}) {
		r := v.(*engine.BatchResult)
		for _, id := range r.Succeeded {
			fmt.Printf("%s %s\n", passStyle.Render("✓"), id)
		}
		for _, f := range r.Failed {
			fmt.Printf("%s %s: %s\n", failStyle.Render("✗"), f.ID, f.Error)
		}
		for _, w := range r.Warnings {
			fmt.Printf("%s %s: %v\n", mutedStyle.Render("!"), w.ID, w.Warnings)
		}
	})
}

// batchError reports a user-facing failure when any issue in the batch
// failed, so the process exits non-zero without disrupting the partial
// success already printed.
func batchError(result *engine.BatchResult) error {
	if len(result.Failed) == 0 {
		return nil
	}
	return apierr.Validationf("%d of %d issues failed", len(result.Failed), len(result.Failed)+len(result.Succeeded))
}
