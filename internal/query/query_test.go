package query_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/query"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

func newTestService(t *testing.T) (*query.Service, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "beads.db"), "bd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	reg := templates.New("")
	return query.New(s, reg), s
}

func insertIssue(t *testing.T, s *store.Store, rec *store.IssueRecord) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		return store.InsertIssue(ctx, tx, rec)
	}))
}

func TestGetFlowMetricsComputesThroughputAndCycleTime(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	now := time.Now().UTC()
	created := now.Add(-5 * 24 * time.Hour)
	closed := now.Add(-1 * 24 * time.Hour)
	insertIssue(t, s, &store.IssueRecord{
		ID: "bd-1", Title: "a", Status: "closed", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: created, UpdatedAt: closed, ClosedAt: &closed,
	})

	metrics, err := svc.GetFlowMetrics(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 1, metrics.Throughput)
	require.Greater(t, metrics.LeadTimeMean, time.Duration(0))
	require.Contains(t, metrics.ByType, "task")
	require.Equal(t, 1, metrics.ByType["task"].Throughput)
}

func TestGetFlowMetricsExcludesIssuesClosedOutsideWindow(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)

	now := time.Now().UTC()
	oldClosed := now.Add(-60 * 24 * time.Hour)
	insertIssue(t, s, &store.IssueRecord{
		ID: "bd-1", Title: "old", Status: "closed", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: oldClosed.Add(-time.Hour), UpdatedAt: oldClosed, ClosedAt: &oldClosed,
	})

	metrics, err := svc.GetFlowMetrics(ctx, 30)
	require.NoError(t, err)
	require.Equal(t, 0, metrics.Throughput)
}

func TestGetActivityFiltersByActorAndType(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	now := time.Now().UTC()

	insertIssue(t, s, &store.IssueRecord{
		ID: "bd-1", Title: "a", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := store.InsertEvent(ctx, tx, &store.EventRecord{IssueID: "bd-1", EventType: types.EventCreated, Actor: "alice", CreatedAt: now}); err != nil {
			return err
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{IssueID: "bd-1", EventType: types.EventCommentAdded, Actor: "bob", CreatedAt: now.Add(time.Second)})
	}))

	events, err := svc.GetActivity(ctx, query.ActivityFilter{Actor: "alice"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, types.EventCreated, events[0].EventType)

	events, err = svc.GetActivity(ctx, query.ActivityFilter{EventType: types.EventCommentAdded})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "bob", events[0].Actor)
}

func TestGetReleaseTreeComputesLeafOnlyProgress(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	now := time.Now().UTC()

	parent := "bd-release"
	insertIssue(t, s, &store.IssueRecord{ID: parent, Title: "release", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now})

	child1 := "bd-c1"
	insertIssue(t, s, &store.IssueRecord{ID: child1, Title: "c1", Status: "closed", Priority: 2, IssueType: "task",
		ParentID: &parent, Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now})

	child2 := "bd-c2"
	insertIssue(t, s, &store.IssueRecord{ID: child2, Title: "c2", Status: "open", Priority: 2, IssueType: "task",
		ParentID: &parent, Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now})

	node, err := svc.GetReleaseTree(ctx, parent)
	require.NoError(t, err)
	require.Equal(t, 2, node.LeafCount)
	require.Equal(t, 1, node.DoneCount)
	require.InDelta(t, 0.5, node.Progress, 0.0001)
}

func TestListReleasesSkipsFullyReleasedUnlessIncluded(t *testing.T) {
	ctx := context.Background()
	svc, s := newTestService(t)
	now := time.Now().UTC()

	parent := "bd-release"
	insertIssue(t, s, &store.IssueRecord{ID: parent, Title: "release", Status: "open", Priority: 2, IssueType: "task",
		Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now})
	child := "bd-c1"
	insertIssue(t, s, &store.IssueRecord{ID: child, Title: "c1", Status: "closed", Priority: 2, IssueType: "task",
		ParentID: &parent, Fields: map[string]types.FieldValue{}, CreatedAt: now, UpdatedAt: now})

	releases, err := svc.ListReleases(ctx, false)
	require.NoError(t, err)
	require.Empty(t, releases)

	releases, err = svc.ListReleases(ctx, true)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, parent, releases[0].IssueID)
}
