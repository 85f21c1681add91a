package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

// UpdateInput carries the optional mutable fields for UpdateIssue. A nil
// pointer/map means "leave unchanged".
type UpdateInput struct {
	Status      *string
	Priority    *int
	Title       *string
	Assignee    *string
	Description *string
	Notes       *string
	ParentID    **string // nil: unchanged; non-nil pointing to nil: clear
	Fields      map[string]types.FieldValue
	Actor       string
}

// UpdateIssue applies the given changes atomically, per spec §4.4: when
// both Status and Fields are supplied, the engine merges fields first and
// validates the transition against the merged set before writing
// anything. A HARD_ENFORCEMENT failure leaves the row untouched.
func (e *Engine) UpdateIssue(ctx context.Context, id string, in UpdateInput) (*types.Issue, error) {
	var warnings []string

	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := store.GetIssueForUpdate(ctx, tx, id)
		if err != nil {
			return translateNotFound(err, id)
		}

		now := time.Now().UTC()
		oldStatus := rec.Status
		statusChanging := in.Status != nil && *in.Status != oldStatus

		merged := rec.Fields
		if in.Fields != nil {
			if err := e.registry.ValidateFieldKeys(rec.IssueType, in.Fields); err != nil {
				return apierr.Validationf("%s", err)
			}
			merged = mergeFields(rec.Fields, in.Fields)
		}

		if statusChanging {
			result := e.registry.ValidateTransition(rec.IssueType, oldStatus, *in.Status, merged)
			if !result.Allowed {
				validTransitions := validTransitionNames(e.registry, rec.IssueType, oldStatus, merged)
				return apierr.HardEnforcementError(rec.IssueType, oldStatus, *in.Status, result.Missing, validTransitions)
			}
			warnings = result.Warnings
		}

		if in.Priority != nil {
			if *in.Priority < 0 || *in.Priority > 4 {
				return apierr.Validationf("priority must be between 0 and 4, got %d", *in.Priority)
			}
			rec.Priority = *in.Priority
		}
		if in.Title != nil {
			if *in.Title == "" {
				return apierr.Validationf("title cannot be empty")
			}
			rec.Title = *in.Title
		}
		if in.Assignee != nil {
			rec.Assignee = *in.Assignee
		}
		if in.Description != nil {
			rec.Description = *in.Description
		}
		if in.Notes != nil {
			rec.Notes = *in.Notes
		}
		if in.ParentID != nil {
			rec.ParentID = *in.ParentID
		}
		if in.Fields != nil {
			rec.Fields = merged
		}

		if statusChanging {
			rec.Status = *in.Status
			category, _ := e.registry.GetCategory(rec.IssueType, *in.Status)
			if category == types.CategoryDone {
				rec.ClosedAt = &now
			} else {
				rec.ClosedAt = nil
			}
		}
		rec.UpdatedAt = now

		if err := store.UpdateIssue(ctx, tx, rec); err != nil {
			return err
		}

		if statusChanging {
			if err := store.InsertEvent(ctx, tx, &store.EventRecord{
				IssueID:   id,
				EventType: types.EventStatusChanged,
				Actor:     in.Actor,
				OldValue:  oldStatus,
				NewValue:  *in.Status,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			for _, w := range warnings {
				if err := store.InsertEvent(ctx, tx, &store.EventRecord{
					IssueID:   id,
					EventType: types.EventTransitionWarning,
					Actor:     in.Actor,
					NewValue:  w,
					CreatedAt: now,
				}); err != nil {
					return err
				}
			}
		} else if in.Fields != nil {
			if err := store.InsertEvent(ctx, tx, &store.EventRecord{
				IssueID:   id,
				EventType: types.EventFieldsUpdated,
				Actor:     in.Actor,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notify()
	return e.GetIssue(ctx, id)
}

// mergeFields returns current overlaid with updates, per spec §4.4's
// "merged = current.fields ∪ fields" step.
func mergeFields(current, updates map[string]types.FieldValue) map[string]types.FieldValue {
	out := make(map[string]types.FieldValue, len(current)+len(updates))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

func validTransitionNames(r *templates.Registry, typeName, from string, fields map[string]types.FieldValue) []string {
	options := r.GetValidTransitions(typeName, from, fields)
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, o.To)
	}
	return out
}
