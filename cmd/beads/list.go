package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentflow/beads/internal/api"
	"github.com/agentflow/beads/internal/project"
	"github.com/agentflow/beads/internal/types"
)

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "views",
	Short:   "Show one issue, optionally with its valid next transitions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			transitions, _ := cmd.Flags().GetBool("transitions")
			watchIssue(rootCtx, args[0], transitions)
			return nil
		}

		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		transitions, _ := cmd.Flags().GetBool("transitions")
		view, err := a.surface.GetIssue(rootCtx, args[0], api.GetIssueOptions{IncludeTransitions: transitions})
		if err != nil {
			return err
		}
		printResult(view, func(v interface{}) {
			vw := v.(*api.IssueView)
			printIssue(vw.Issue)
			for _, t := range vw.ValidTransitions {
				fmt.Printf("  -> %s%s\n", t.To, missingSuffix(t.Missing))
			}
		})
		return nil
	},
}

func missingSuffix(missing []string) string {
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf(" (missing: %v)", missing)
}

func init() {
	showCmd.Flags().Bool("transitions", false, "include valid next transitions")
	showCmd.Flags().Bool("watch", false, "re-render whenever the project's issues change")
}

func displayShowIssue(ctx context.Context, issueID string, transitions bool) {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	defer a.Close()

	view, err := a.surface.GetIssue(ctx, issueID, api.GetIssueOptions{IncludeTransitions: transitions})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	printIssue(view.Issue)
	for _, t := range view.ValidTransitions {
		fmt.Printf("  -> %s%s\n", t.To, missingSuffix(t.Missing))
	}
}

const watchDebounceDelay = 500 * time.Millisecond

// watchIssue re-renders an issue whenever the project's on-disk state
// changes, by watching the .beads directory for writes to a file named
// *.db or issues.jsonl. Writes to other files there (such as the SQLite
// -wal file) do not trigger a redraw.
func watchIssue(ctx context.Context, issueID string, transitions bool) {
	beadsDir := dbPathOverride
	if beadsDir == "" {
		beadsDir = project.Find()
	}
	if beadsDir == "" {
		fmt.Fprintln(os.Stderr, "error: no .beads directory found")
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating watcher: %v\n", err)
		return
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(beadsDir); err != nil {
		fmt.Fprintf(os.Stderr, "error watching %s: %v\n", beadsDir, err)
		return
	}

	displayShowIssue(ctx, issueID, transitions)
	fmt.Fprintln(os.Stderr, "\nwatching for changes... (press ctrl+c to exit)")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var debounceTimer *time.Timer
	for {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nstopped watching")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			basename := filepath.Base(event.Name)
			if basename != "issues.jsonl" && !strings.HasSuffix(basename, ".db") {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounceDelay, func() {
				displayShowIssue(ctx, issueID, transitions)
				fmt.Fprintln(os.Stderr, "\nwatching for changes... (press ctrl+c to exit)")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "views",
	Short:   "List issues matching filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		filter := api.ListFilter{}
		filter.StatusCategory, _ = cmd.Flags().GetString("category")
		filter.Status, _ = cmd.Flags().GetString("status")
		filter.Type, _ = cmd.Flags().GetString("type")
		filter.Limit, _ = cmd.Flags().GetInt("limit")
		if a, _ := cmd.Flags().GetString("assignee"); a != "" {
			filter.Assignee = &a
		}
		if p, _ := cmd.Flags().GetString("parent"); p != "" {
			filter.ParentID = &p
		}

		issues, err := a.surface.ListIssues(rootCtx, filter)
		if err != nil {
			return err
		}
		printIssueList(issues)
		return nil
	},
}

func init() {
	listCmd.Flags().String("category", "", "filter by status category: open, wip, done")
	listCmd.Flags().String("status", "", "filter by literal status name")
	listCmd.Flags().String("type", "", "filter by issue type")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	listCmd.Flags().String("parent", "", "filter by parent issue id")
	listCmd.Flags().Int("limit", 0, "maximum results (0: unlimited)")
}

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "views",
	Short:   "Full-text search over issue titles and descriptions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.surface.Search(rootCtx, args[0])
		if err != nil {
			return err
		}
		printIssueList(issues)
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:     "ready",
	GroupID: "views",
	Short:   "List open-category issues with no open blocking dependency",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.surface.GetReady(rootCtx)
		if err != nil {
			return err
		}
		printIssueList(issues)
		return nil
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: "views",
	Short:   "List issues with at least one open blocking dependency",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.surface.GetBlocked(rootCtx)
		if err != nil {
			return err
		}
		printIssueList(issues)
		return nil
	},
}

var criticalPathCmd = &cobra.Command{
	Use:     "critical-path",
	GroupID: "views",
	Short:   "Show the longest chain of not-yet-done dependent work",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(rootCtx)
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.surface.GetCriticalPath(rootCtx)
		if err != nil {
			return err
		}
		printIssueList(issues)
		return nil
	},
}

func printIssueList(issues []*types.Issue) {
	printResult(issues, func(v interface{}) {
		list := v.([]*types.Issue)
		if len(list) == 0 {
			fmt.Println(mutedStyle.Render("no matching issues"))
			return
		}
		for _, i := range list {
			assignee := i.Assignee
			if assignee == "" {
				assignee = mutedStyle.Render("unassigned")
			}
			fmt.Printf("%s  %-10s p%d  %-20s %s\n", accentStyle.Render(i.ID), i.Status, i.Priority, truncate(i.Title, 40), assignee)
		}
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
