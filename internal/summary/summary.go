// Package summary produces the deterministic plain-text snapshot of
// engine state consumed by agents, per spec §4.7. Regeneration must stay
// cheap since it runs on every mutating write path.
package summary

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

const maxNeedsAttention = 10

// Generator writes context.md snapshots for one project.
type Generator struct {
	engine     *engine.Engine
	registry   *templates.Registry
	projectDir string
}

// New constructs a Generator bound to an engine, its registry, and the
// project directory context.md is written into.
func New(e *engine.Engine, r *templates.Registry, projectDir string) *Generator {
	return &Generator{engine: e, registry: r, projectDir: projectDir}
}

// Regenerate recomputes the snapshot and writes it atomically (temp file
// then rename) to <projectDir>/context.md.
func (g *Generator) Regenerate(ctx context.Context) error {
	text, err := g.render(ctx)
	if err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}
	return writeAtomic(filepath.Join(g.projectDir, "context.md"), text)
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".context-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func (g *Generator) render(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer

	all, err := g.engine.ListIssues(ctx, engine.ListFilter{})
	if err != nil {
		return nil, err
	}
	ready, err := g.engine.GetReady(ctx)
	if err != nil {
		return nil, err
	}
	blocked, err := g.engine.GetBlocked(ctx)
	if err != nil {
		return nil, err
	}
	criticalPath, err := g.engine.GetCriticalPath(ctx)
	if err != nil {
		return nil, err
	}

	buf.WriteString("# Project Snapshot\n\n")
	writeVitals(&buf, all)
	writeReadyList(&buf, ready)
	writeBlockedList(&buf, blocked)
	writeNeedsAttention(&buf, all, g.registry)
	writeCriticalPath(&buf, criticalPath)

	return buf.Bytes(), nil
}

func writeVitals(buf *bytes.Buffer, all []*types.Issue) {
	buf.WriteString("## Vitals\n\n")
	byCategory := map[types.Category]int{}
	byType := map[string]int{}
	for _, iss := range all {
		byCategory[iss.StatusCategory]++
		byType[iss.Type]++
	}
	fmt.Fprintf(buf, "Total: %d  open: %d  wip: %d  done: %d\n\n",
		len(all), byCategory[types.CategoryOpen], byCategory[types.CategoryWIP], byCategory[types.CategoryDone])

	types_ := make([]string, 0, len(byType))
	for t := range byType {
		types_ = append(types_, t)
	}
	sort.Strings(types_)
	for _, t := range types_ {
		fmt.Fprintf(buf, "- %s: %d\n", t, byType[t])
	}
	buf.WriteString("\n")
}

func writeReadyList(buf *bytes.Buffer, ready []*types.Issue) {
	buf.WriteString("## Ready\n\n")
	sortByPriorityThenID(ready)
	for _, iss := range ready {
		fmt.Fprintf(buf, "- [%s] %s (priority %d)\n", iss.ID, iss.Title, iss.Priority)
	}
	buf.WriteString("\n")
}

func writeBlockedList(buf *bytes.Buffer, blocked []*types.Issue) {
	buf.WriteString("## Blocked\n\n")
	sortByPriorityThenID(blocked)
	for _, iss := range blocked {
		fmt.Fprintf(buf, "- [%s] %s blocked by %v\n", iss.ID, iss.Title, iss.BlockedBy)
	}
	buf.WriteString("\n")
}

// writeNeedsAttention lists in-progress issues missing fields for their
// most likely next transition, per spec §4.7 ("needs attention" list,
// capped at 10). "Most likely next transition" is the first
// GetValidTransitions option for the issue's current state; an issue
// only qualifies if that option's Missing list is non-empty.
func writeNeedsAttention(buf *bytes.Buffer, all []*types.Issue, reg *templates.Registry) {
	buf.WriteString("## Needs Attention\n\n")
	var candidates []*types.Issue
	missingFor := map[string][]string{}
	for _, iss := range all {
		if iss.StatusCategory != types.CategoryWIP {
			continue
		}
		options := reg.GetValidTransitions(iss.Type, iss.Status, iss.Fields)
		if len(options) == 0 || len(options[0].Missing) == 0 {
			continue
		}
		candidates = append(candidates, iss)
		missingFor[iss.ID] = options[0].Missing
	}
	sortByPriorityThenID(candidates)
	n := 0
	for _, iss := range candidates {
		if n >= maxNeedsAttention {
			break
		}
		fmt.Fprintf(buf, "- [%s] %s in %s: missing %v\n", iss.ID, iss.Title, iss.Status, missingFor[iss.ID])
		n++
	}
	buf.WriteString("\n")
}

func writeCriticalPath(buf *bytes.Buffer, chain []*types.Issue) {
	buf.WriteString("## Critical Path\n\n")
	for i, iss := range chain {
		if i > 0 {
			buf.WriteString(" -> ")
		}
		fmt.Fprintf(buf, "%s", iss.ID)
	}
	buf.WriteString("\n")
}

func sortByPriorityThenID(issues []*types.Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Priority != issues[j].Priority {
			return issues[i].Priority < issues[j].Priority
		}
		return issues[i].ID < issues[j].ID
	})
}
