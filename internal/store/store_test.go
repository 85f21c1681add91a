package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "beads.db"), "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenAppliesMigrationsToCurrentVersion(t *testing.T) {
	s := openTestStore(t)

	var version int
	err := s.DB().QueryRow(`SELECT version FROM schema_version WHERE id = 1`).Scan(&version)
	require.NoError(t, err)
	require.Equal(t, store.CurrentSchemaVersion, version)
}

func TestOpenSeedsAtLeastNineBuiltinTypeTemplates(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM type_templates`).Scan(&count)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 9)
}

func TestOpenIsIdempotentAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beads.db")

	s1, err := store.Open(context.Background(), path, "bd")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := store.Open(context.Background(), path, "bd")
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	var version int
	require.NoError(t, s2.DB().QueryRow(`SELECT version FROM schema_version WHERE id = 1`).Scan(&version))
	require.Equal(t, store.CurrentSchemaVersion, version)
}

func TestInsertAndGetIssueRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	rec := &store.IssueRecord{
		ID:        "bd-1",
		Title:     "first issue",
		Status:    "open",
		Priority:  2,
		IssueType: "task",
		Assignee:  "",
		Fields:    map[string]types.FieldValue{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.InsertIssue(ctx, tx, rec)
	})
	require.NoError(t, err)

	got, err := s.GetIssue(ctx, "bd-1")
	require.NoError(t, err)
	require.Equal(t, "first issue", got.Title)
	require.Equal(t, "open", got.Status)
	require.Equal(t, 2, got.Priority)
}

func TestGetIssueNotFoundReturnsError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetIssue(context.Background(), "bd-nope")
	require.Error(t, err)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGuardedStatusUpdateRejectsAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	rec := &store.IssueRecord{
		ID: "bd-2", Title: "t", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.InsertIssue(ctx, tx, rec)
	}))

	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := store.GuardedStatusUpdate(ctx, tx, "bd-2", "in_progress", "alice", []string{"open"}, "", now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := store.GuardedStatusUpdate(ctx, tx, "bd-2", "in_progress", "bob", []string{"open"}, "", now)
		require.NoError(t, err)
		require.EqualValues(t, 0, n, "status is no longer open, guard must reject")
		return nil
	})
	require.NoError(t, err)
}

func TestLabelsForIssueRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	rec := &store.IssueRecord{
		ID: "bd-3", Title: "t", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := store.InsertIssue(ctx, tx, rec); err != nil {
			return err
		}
		if err := store.AddLabel(ctx, tx, "bd-3", "urgent"); err != nil {
			return err
		}
		return store.AddLabel(ctx, tx, "bd-3", "backend")
	}))

	labels, err := s.LabelsForIssue(ctx, "bd-3")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"urgent", "backend"}, labels)

	ids, err := s.IssueIDsByLabel(ctx, "urgent")
	require.NoError(t, err)
	require.Equal(t, []string{"bd-3"}, ids)
}

func TestDependencyEdgesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	for _, id := range []string{"bd-4", "bd-5"} {
		rec := &store.IssueRecord{ID: id, Title: id, Status: "open", Priority: 2, IssueType: "task",
			Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return store.InsertIssue(ctx, tx, rec)
		}))
	}

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.InsertDependency(ctx, tx, &store.DependencyRecord{FromID: "bd-4", ToID: "bd-5", Kind: "blocks", CreatedAt: now})
	}))

	blockers, err := s.DependenciesOf(ctx, "bd-4")
	require.NoError(t, err)
	require.Equal(t, []string{"bd-5"}, blockers)

	dependents, err := s.DependentsOf(ctx, "bd-5")
	require.NoError(t, err)
	require.Equal(t, []string{"bd-4"}, dependents)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.DeleteDependency(ctx, tx, "bd-4", "bd-5", "blocks")
	}))
	blockers, err = s.DependenciesOf(ctx, "bd-4")
	require.NoError(t, err)
	require.Empty(t, blockers)
}

func TestConfigSetGetDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.SetConfig(ctx, tx, "issue_prefix", "bd")
	}))
	v, err := s.GetConfig(ctx, "issue_prefix")
	require.NoError(t, err)
	require.Equal(t, "bd", v)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.DeleteConfig(ctx, tx, "issue_prefix")
	}))
	_, err = s.GetConfig(ctx, "issue_prefix")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEventsForIssueIsAppendOnlyAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	rec := &store.IssueRecord{ID: "bd-6", Title: "t", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.InsertIssue(ctx, tx, rec)
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return store.InsertEvent(ctx, tx, &store.EventRecord{
				IssueID: "bd-6", EventType: types.EventCommentAdded, Actor: "a", CreatedAt: now.Add(time.Duration(i) * time.Second),
			})
		}))
	}

	events, err := s.EventsForIssue(ctx, "bd-6")
	require.NoError(t, err)
	require.Len(t, events, 3)
}
