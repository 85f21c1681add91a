package summary_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/summary"
	"github.com/agentflow/beads/internal/templates"
)

func TestRegenerateWritesContextMD(t *testing.T) {
	ctx := context.Background()
	projectDir := t.TempDir()

	s, err := store.Open(ctx, filepath.Join(projectDir, "beads.db"), "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := templates.New("")
	e := engine.New(s, reg)
	_, err = e.CreateIssue(ctx, engine.CreateInput{Title: "do the thing", Type: "task", Priority: 1, Actor: "a"})
	require.NoError(t, err)

	gen := summary.New(e, reg, projectDir)
	require.NoError(t, gen.Regenerate(ctx))

	data, err := os.ReadFile(filepath.Join(projectDir, "context.md"))
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "# Project Snapshot")
	require.Contains(t, text, "## Vitals")
	require.Contains(t, text, "## Ready")
	require.Contains(t, text, "do the thing")
}

func TestRegenerateOverwritesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	projectDir := t.TempDir()

	s, err := store.Open(ctx, filepath.Join(projectDir, "beads.db"), "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := templates.New("")
	e := engine.New(s, reg)
	gen := summary.New(e, reg, projectDir)
	require.NoError(t, gen.Regenerate(ctx))

	first, err := os.ReadFile(filepath.Join(projectDir, "context.md"))
	require.NoError(t, err)

	_, err = e.CreateIssue(ctx, engine.CreateInput{Title: "a new issue", Type: "task", Priority: 1, Actor: "a"})
	require.NoError(t, err)
	require.NoError(t, gen.Regenerate(ctx))

	second, err := os.ReadFile(filepath.Join(projectDir, "context.md"))
	require.NoError(t, err)
	require.NotEqual(t, string(first), string(second))
	require.Contains(t, string(second), "a new issue")
}
