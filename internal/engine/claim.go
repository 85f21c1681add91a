package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// openStatesForType returns the declared open-category state names for
// typeName, falling back to ["open"] when the type has no template.
func (e *Engine) openStatesForType(typeName string) []string {
	states := e.registry.GetValidStates(typeName)
	if states == nil {
		return []string{"open"}
	}
	var out []string
	for _, s := range states {
		if s.Category == types.CategoryOpen {
			out = append(out, s.Name)
		}
	}
	if len(out) == 0 {
		return []string{"open"}
	}
	return out
}

func (e *Engine) wipStatesForType(typeName string) []string {
	states := e.registry.GetValidStates(typeName)
	if states == nil {
		return []string{"in_progress"}
	}
	var out []string
	for _, s := range states {
		if s.Category == types.CategoryWIP {
			out = append(out, s.Name)
		}
	}
	if len(out) == 0 {
		return []string{"in_progress"}
	}
	return out
}

func (e *Engine) wipTargetForType(typeName string) string {
	t := e.registry.GetFirstStateOfCategory(typeName, types.CategoryWIP)
	if t == "" {
		return "in_progress"
	}
	return t
}

// ClaimIssue attempts to assign id to assignee via optimistic locking,
// per spec §4.4. Fails with CONFLICT if the issue is not currently in one
// of its type's open-category states with no assignee.
func (e *Engine) ClaimIssue(ctx context.Context, id, assignee, actor string) (*types.Issue, error) {
	current, err := e.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	target := e.wipTargetForType(current.Type)
	allowed := e.openStatesForType(current.Type)
	now := time.Now().UTC()

	var affected int64
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := store.GuardedStatusUpdate(ctx, tx, id, target, assignee, allowed, "", now)
		if err != nil {
			return err
		}
		affected = n
		if n == 0 {
			return nil
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   id,
			EventType: types.EventClaimed,
			Actor:     actor,
			NewValue:  assignee,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		fresh, ferr := e.GetIssue(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, apierr.ConflictError("cannot claim: current state is %s", fresh.Status)
	}

	e.notify()
	return e.GetIssue(ctx, id)
}

// ReleaseClaim returns id to its type's initial state and clears the
// assignee, per spec §4.4.
func (e *Engine) ReleaseClaim(ctx context.Context, id, actor string) (*types.Issue, error) {
	current, err := e.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	target := e.registry.GetInitialState(current.Type)
	allowed := e.wipStatesForType(current.Type)
	now := time.Now().UTC()

	var affected int64
	err = e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := store.GuardedStatusUpdate(ctx, tx, id, target, "", allowed, current.Assignee, now)
		if err != nil {
			return err
		}
		affected = n
		if n == 0 {
			return nil
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   id,
			EventType: types.EventReleased,
			Actor:     actor,
			OldValue:  current.Assignee,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		fresh, ferr := e.GetIssue(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, apierr.ConflictError("cannot release: current state is %s", fresh.Status)
	}

	e.notify()
	return e.GetIssue(ctx, id)
}

// ClaimNextFilter narrows the pool ClaimNext draws from.
type ClaimNextFilter struct {
	Type        string
	PriorityMin *int
	PriorityMax *int
}

// ClaimNext finds the highest-priority ready, unassigned issue matching
// filter and claims it, skipping candidates lost to a race, per spec
// §4.4. Returns (nil, nil) if no candidate can be claimed.
func (e *Engine) ClaimNext(ctx context.Context, assignee string, filter ClaimNextFilter, actor string) (*types.Issue, error) {
	ready, err := e.GetReady(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]*types.Issue, 0, len(ready))
	for _, iss := range ready {
		if iss.Assignee != "" {
			continue
		}
		if filter.Type != "" && iss.Type != filter.Type {
			continue
		}
		if filter.PriorityMin != nil && iss.Priority < *filter.PriorityMin {
			continue
		}
		if filter.PriorityMax != nil && iss.Priority > *filter.PriorityMax {
			continue
		}
		candidates = append(candidates, iss)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	for _, c := range candidates {
		claimed, err := e.ClaimIssue(ctx, c.ID, assignee, actor)
		if err == nil {
			return claimed, nil
		}
		if apierr.KindOf(err) == apierr.Conflict {
			continue // lost the race; try the next candidate
		}
		return nil, fmt.Errorf("claiming candidate %s: %w", c.ID, err)
	}
	return nil, nil
}
