package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/engine"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

func newTestEngine(t *testing.T) (*engine.Engine, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "beads.db")
	s, err := store.Open(context.Background(), dbPath, "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := templates.New("") // no project dir: built-in packs only
	return engine.New(s, reg), s
}

func strp(s string) *string { return &s }

// Scenario 1 (spec §8): bug hard-enforcement blocks close.
func TestBugHardEnforcementBlocksClose(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	i1, err := e.CreateIssue(ctx, engine.CreateInput{Title: "crash on startup", Type: "bug", Priority: 1, Actor: "alice"})
	require.NoError(t, err)
	require.Equal(t, "triage", i1.Status)

	_, err = e.UpdateIssue(ctx, i1.ID, engine.UpdateInput{Status: strp("confirmed"), Actor: "alice"})
	require.NoError(t, err)
	_, err = e.UpdateIssue(ctx, i1.ID, engine.UpdateInput{Status: strp("fixing"), Actor: "alice"})
	require.NoError(t, err)
	_, err = e.UpdateIssue(ctx, i1.ID, engine.UpdateInput{
		Status: strp("verifying"),
		Fields: map[string]types.FieldValue{"fix_verification": types.NewText("initial")},
		Actor:  "alice",
	})
	require.NoError(t, err)

	_, err = e.UpdateIssue(ctx, i1.ID, engine.UpdateInput{
		Fields: map[string]types.FieldValue{"fix_verification": types.NewText("")},
		Actor:  "alice",
	})
	require.NoError(t, err)

	_, err = e.UpdateIssue(ctx, i1.ID, engine.UpdateInput{Status: strp("closed"), Actor: "alice"})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	require.Equal(t, apierr.HardEnforcement, apiErr.Kind)
	require.Equal(t, []string{"fix_verification"}, apiErr.MissingFields)

	current, err := e.GetIssue(ctx, i1.ID)
	require.NoError(t, err)
	require.Equal(t, "verifying", current.Status)
	require.True(t, current.Fields["fix_verification"].Unpopulated())
}

// Scenario 2 (spec §8): atomic transition-with-fields succeeds.
func TestAtomicTransitionWithFieldsSucceeds(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t)

	i2, err := e.CreateIssue(ctx, engine.CreateInput{Title: "flaky test", Type: "bug", Priority: 2, Actor: "bob"})
	require.NoError(t, err)
	_, err = e.UpdateIssue(ctx, i2.ID, engine.UpdateInput{Status: strp("confirmed"), Actor: "bob"})
	require.NoError(t, err)
	_, err = e.UpdateIssue(ctx, i2.ID, engine.UpdateInput{Status: strp("fixing"), Actor: "bob"})
	require.NoError(t, err)

	updated, err := e.UpdateIssue(ctx, i2.ID, engine.UpdateInput{
		Status: strp("verifying"),
		Fields: map[string]types.FieldValue{"fix_verification": types.NewText("tests pass")},
		Actor:  "bob",
	})
	require.NoError(t, err)
	require.Equal(t, "verifying", updated.Status)
	require.Equal(t, "tests pass", updated.Fields["fix_verification"].Str)

	events, err := st.EventsForIssue(ctx, i2.ID)
	require.NoError(t, err)
	var statusChanges int
	for _, ev := range events {
		if ev.EventType == types.EventStatusChanged && ev.NewValue == "verifying" {
			statusChanges++
		}
	}
	require.Equal(t, 1, statusChanges)
}

// Scenario 4 (spec §8): category-aware ready with multi-done.
func TestReadyWithMultiDoneBlocker(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	b1, err := e.CreateIssue(ctx, engine.CreateInput{Title: "b1", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	b2, err := e.CreateIssue(ctx, engine.CreateInput{Title: "b2", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	wontFix := "wont_fix"
	_, err = e.CloseIssue(ctx, b1.ID, engine.CloseInput{Status: &wontFix, Actor: "a"})
	require.NoError(t, err)

	require.NoError(t, e.AddDependency(ctx, b2.ID, b1.ID, "a"))

	ready, err := e.GetReady(ctx)
	require.NoError(t, err)
	var found bool
	for _, iss := range ready {
		if iss.ID == b2.ID {
			found = true
		}
	}
	require.True(t, found, "b2 should be ready since its only blocker is done")
}

// Scenario 5 (spec §8): critical path excludes done issues.
func TestCriticalPathExcludesDone(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	a, err := e.CreateIssue(ctx, engine.CreateInput{Title: "a", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	b, err := e.CreateIssue(ctx, engine.CreateInput{Title: "b", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	c, err := e.CreateIssue(ctx, engine.CreateInput{Title: "c", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	require.NoError(t, e.AddDependency(ctx, b.ID, a.ID, "a"))
	require.NoError(t, e.AddDependency(ctx, c.ID, b.ID, "a"))

	wontFix := "wont_fix"
	_, err = e.CloseIssue(ctx, a.ID, engine.CloseInput{Status: &wontFix, Actor: "a"})
	require.NoError(t, err)

	chain, err := e.GetCriticalPath(ctx)
	require.NoError(t, err)
	ids := make([]string, len(chain))
	for i, iss := range chain {
		ids[i] = iss.ID
	}
	require.Equal(t, []string{b.ID, c.ID}, ids)
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	a, err := e.CreateIssue(ctx, engine.CreateInput{Title: "a", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	b, err := e.CreateIssue(ctx, engine.CreateInput{Title: "b", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	require.NoError(t, e.AddDependency(ctx, a.ID, b.ID, "a"))
	err = e.AddDependency(ctx, b.ID, a.ID, "a")
	require.Error(t, err)
	require.Equal(t, apierr.CycleDetected, apierr.KindOf(err))
}

func TestClaimAndReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	iss, err := e.CreateIssue(ctx, engine.CreateInput{Title: "t1", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	claimed, err := e.ClaimIssue(ctx, iss.ID, "alice", "alice")
	require.NoError(t, err)
	require.Equal(t, "in_progress", claimed.Status)
	require.Equal(t, "alice", claimed.Assignee)

	released, err := e.ReleaseClaim(ctx, iss.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, "open", released.Status)
	require.Equal(t, "", released.Assignee)
}

func TestClaimConflictOnAlreadyAssigned(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	iss, err := e.CreateIssue(ctx, engine.CreateInput{Title: "t1", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	_, err = e.ClaimIssue(ctx, iss.ID, "alice", "alice")
	require.NoError(t, err)

	_, err = e.ClaimIssue(ctx, iss.ID, "bob", "bob")
	require.Error(t, err)
	require.Equal(t, apierr.Conflict, apierr.KindOf(err))
}

func TestCloseAlreadyClosedIsNoopPreservingClosedAt(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	iss, err := e.CreateIssue(ctx, engine.CreateInput{Title: "t1", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	closedOnce, err := e.CloseIssue(ctx, iss.ID, engine.CloseInput{Actor: "a"})
	require.NoError(t, err)
	require.NotNil(t, closedOnce.ClosedAt)
	firstClosedAt := *closedOnce.ClosedAt

	closedAgain, err := e.CloseIssue(ctx, iss.ID, engine.CloseInput{Actor: "a"})
	require.NoError(t, err)
	require.NotNil(t, closedAgain.ClosedAt)
	require.Equal(t, firstClosedAt, *closedAgain.ClosedAt)
}

func TestBatchCloseContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	ok, err := e.CreateIssue(ctx, engine.CreateInput{Title: "ok", Type: "task", Priority: 2, Actor: "a"})
	require.NoError(t, err)
	_, err = e.CreateIssue(ctx, engine.CreateInput{Title: "missing-field", Type: "bug", Priority: 2, Actor: "a"})
	require.NoError(t, err)

	result := e.BatchClose(ctx, []string{ok.ID, "bd-doesnotexist"}, "cleanup", "a")
	require.Contains(t, result.Succeeded, ok.ID)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "bd-doesnotexist", result.Failed[0].ID)
}
