package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// AddDependency records "fromID depends on toID" (fromID is blocked by
// toID), rejecting self-dependencies and anything that would introduce a
// cycle, per spec §4.4.
func (e *Engine) AddDependency(ctx context.Context, fromID, toID, actor string) error {
	if fromID == toID {
		return apierr.Validationf("an issue cannot depend on itself")
	}
	if _, err := e.store.GetIssue(ctx, fromID); err != nil {
		return translateNotFound(err, fromID)
	}
	if _, err := e.store.GetIssue(ctx, toID); err != nil {
		return translateNotFound(err, toID)
	}

	now := time.Now().UTC()
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := addDependencyTx(ctx, e.store, tx, fromID, toID); err != nil {
			return err
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   fromID,
			EventType: types.EventDependencyAdded,
			Actor:     actor,
			NewValue:  toID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	e.notify()
	return nil
}

// addDependencyTx performs the cycle check and insert within an
// already-open transaction (used by CreateIssue's initial deps too). The
// cycle check reads through e.store rather than tx since it only needs a
// consistent read, not the write lock already held by the caller.
func addDependencyTx(ctx context.Context, s *store.Store, tx *sql.Tx, fromID, toID string) error {
	reachable, err := reachableFrom(ctx, s, toID, fromID)
	if err != nil {
		return err
	}
	if reachable {
		return apierr.CycleError(fromID, toID)
	}
	return store.InsertDependency(ctx, tx, &store.DependencyRecord{
		FromID:    fromID,
		ToID:      toID,
		Kind:      "blocks",
		CreatedAt: time.Now().UTC(),
	})
}

// reachableFrom runs a BFS over "depends on" edges starting at start,
// reporting whether target is reachable. Used to detect whether adding
// fromID -> toID would close a cycle: if toID can already reach fromID,
// the new edge would create one.
func reachableFrom(ctx context.Context, s *store.Store, start, target string) (bool, error) {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true, nil
		}
		next, err := s.DependenciesOf(ctx, cur)
		if err != nil {
			return false, err
		}
		for _, n := range next {
			if !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	return false, nil
}

// RemoveDependency deletes the edge and records an event.
func (e *Engine) RemoveDependency(ctx context.Context, fromID, toID, actor string) error {
	now := time.Now().UTC()
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := store.DeleteDependency(ctx, tx, fromID, toID, "blocks"); err != nil {
			return err
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   fromID,
			EventType: types.EventDependencyRemoved,
			Actor:     actor,
			OldValue:  toID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	e.notify()
	return nil
}
