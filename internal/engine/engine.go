// Package engine implements the IssueEngine: issue CRUD with
// template-aware validation, claim/release, category-aware queries,
// dependency management with cycle detection, and batch operations.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/idgen"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

// SummaryHook is invoked after every mutation that commits, so the
// engine's caller can regenerate the plain-text snapshot cheaply. Wired
// by the CLI (cmd/beads/app.go); nil is a valid no-op hook for tests.
type SummaryHook func()

// Engine is the handle type over one project's issues. It owns no
// process-wide state: callers construct one per Store/Registry pair.
type Engine struct {
	store    *store.Store
	registry *templates.Registry
	idgen    *idgen.Generator

	afterMutation SummaryHook
}

// New constructs an Engine bound to an already-open Store and Registry.
func New(s *store.Store, r *templates.Registry) *Engine {
	return &Engine{
		store:    s,
		registry: r,
		idgen:    idgen.New(s.Prefix()),
	}
}

// SetAfterMutationHook installs the summary-regeneration hook called
// after every committed mutation, per spec §4.7/§9.
func (e *Engine) SetAfterMutationHook(hook SummaryHook) {
	e.afterMutation = hook
}

func (e *Engine) notify() {
	if e.afterMutation != nil {
		e.afterMutation()
	}
}

func recordToIssue(r *store.IssueRecord, labels []string, blocks, blockedBy []string, registry *templates.Registry) *types.Issue {
	category, _ := registry.GetCategory(r.IssueType, r.Status)
	iss := &types.Issue{
		ID:             r.ID,
		Title:          r.Title,
		Status:         r.Status,
		StatusCategory: category,
		Priority:       r.Priority,
		Type:           r.IssueType,
		ParentID:       r.ParentID,
		Assignee:       r.Assignee,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		ClosedAt:       r.ClosedAt,
		Description:    r.Description,
		Notes:          r.Notes,
		Fields:         r.Fields,
		Labels:         labels,
		Blocks:         blocks,
		BlockedBy:      blockedBy,
	}
	return iss
}

// GetIssue fetches a single issue with all derived fields hydrated.
func (e *Engine) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	r, err := e.store.GetIssue(ctx, id)
	if err != nil {
		return nil, translateNotFound(err, id)
	}
	return e.hydrate(ctx, r)
}

func (e *Engine) hydrate(ctx context.Context, r *store.IssueRecord) (*types.Issue, error) {
	labels, err := e.store.LabelsForIssue(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}
	blockedBy, err := e.store.DependenciesOf(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies: %w", err)
	}
	blocks, err := e.store.DependentsOf(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading dependents: %w", err)
	}
	children, err := e.store.ListChildren(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("loading children: %w", err)
	}

	iss := recordToIssue(r, labels, blocks, blockedBy, e.registry)
	iss.Children = children
	iss.IsReady, err = e.isReady(ctx, iss)
	if err != nil {
		return nil, err
	}
	return iss, nil
}

func (e *Engine) isReady(ctx context.Context, iss *types.Issue) (bool, error) {
	if iss.StatusCategory != types.CategoryOpen {
		return false, nil
	}
	if len(iss.BlockedBy) == 0 {
		return true, nil
	}
	done := e.registry.DoneStates()
	blockers, err := e.store.ListIssuesByIDs(ctx, iss.BlockedBy)
	if err != nil {
		return false, fmt.Errorf("loading blockers: %w", err)
	}
	for _, b := range blockers {
		if !done[b.Status] {
			return false, nil
		}
	}
	return true, nil
}

func translateNotFound(err error, id string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("issue %s: %w", id, apierr.NotFoundf("issue %s not found", id))
}

// CreateInput carries the parameters for CreateIssue.
type CreateInput struct {
	Title       string
	Type        string
	Priority    int
	ParentID    *string
	Description string
	Notes       string
	Fields      map[string]types.FieldValue
	Labels      []string
	Deps        []string // ids this new issue depends on ("blocks" edges)
	Actor       string
}

// CreateIssue allocates a new issue, per spec §4.4.
func (e *Engine) CreateIssue(ctx context.Context, in CreateInput) (*types.Issue, error) {
	if in.Title == "" {
		return nil, apierr.Validationf("title is required")
	}
	if in.Priority < 0 || in.Priority > 4 {
		return nil, apierr.Validationf("priority must be between 0 and 4, got %d", in.Priority)
	}
	if in.Type == "" {
		return nil, apierr.Validationf("type is required")
	}
	if err := e.registry.ValidateFieldKeys(in.Type, in.Fields); err != nil {
		return nil, apierr.Validationf("%s", err)
	}

	initialState := e.registry.GetInitialState(in.Type)

	now := time.Now().UTC()
	var newID string

	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := e.store.ExistingIDs(ctx)
		if err != nil {
			return fmt.Errorf("loading existing ids: %w", err)
		}
		id, err := e.idgen.Next(existing)
		if err != nil {
			return fmt.Errorf("allocating id: %w", err)
		}
		newID = id

		if in.ParentID != nil {
			if err := checkParentCycle(ctx, e.store, id, *in.ParentID); err != nil {
				return err
			}
		}

		rec := &store.IssueRecord{
			ID:          id,
			Title:       in.Title,
			Status:      initialState,
			Priority:    in.Priority,
			IssueType:   in.Type,
			ParentID:    in.ParentID,
			Description: in.Description,
			Notes:       in.Notes,
			Fields:      in.Fields,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.InsertIssue(ctx, tx, rec); err != nil {
			return err
		}

		for _, l := range in.Labels {
			if err := store.AddLabel(ctx, tx, id, l); err != nil {
				return err
			}
		}
		for _, depTo := range in.Deps {
			if err := addDependencyTx(ctx, e.store, tx, id, depTo); err != nil {
				return err
			}
		}

		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   id,
			EventType: types.EventCreated,
			Actor:     in.Actor,
			NewValue:  initialState,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	e.notify()
	return e.GetIssue(ctx, newID)
}

// checkParentCycle rejects a parent assignment that would create a cycle
// through the parent chain.
func checkParentCycle(ctx context.Context, s *store.Store, id, parentID string) error {
	if id == parentID {
		return apierr.Validationf("issue cannot be its own parent")
	}
	cur := parentID
	for depth := 0; depth < 10000; depth++ {
		rec, err := s.GetIssue(ctx, cur)
		if err != nil {
			return nil // dangling parent id resolved elsewhere; not this check's concern
		}
		if rec.ParentID == nil {
			return nil
		}
		if *rec.ParentID == id {
			return apierr.Validationf("parent assignment would create a cycle through %s", cur)
		}
		cur = *rec.ParentID
	}
	return apierr.Validationf("parent chain exceeds maximum depth")
}
