package engine

import (
	"context"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/types"
)

// CloseInput carries the parameters for CloseIssue.
type CloseInput struct {
	Status *string // explicit target status; must be done-category if set
	Reason string
	Actor  string
}

// CloseIssue moves an issue into its done state, per spec §4.4. A
// no-op if the issue is already done-category (preserves closed_at).
func (e *Engine) CloseIssue(ctx context.Context, id string, in CloseInput) (*types.Issue, error) {
	current, err := e.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.StatusCategory == types.CategoryDone {
		return current, nil
	}

	var target string
	if in.Status != nil {
		category, known := e.registry.GetCategory(current.Type, *in.Status)
		if known && category != types.CategoryDone {
			return nil, apierr.Validationf("status %q is not a done-category state for type %q", *in.Status, current.Type)
		}
		if !known {
			return nil, apierr.Validationf("status %q is not a valid state for type %q", *in.Status, current.Type)
		}
		target = *in.Status
	} else {
		target = e.registry.GetFirstStateOfCategory(current.Type, types.CategoryDone)
		if target == "" {
			target = "closed"
		}
	}

	update := UpdateInput{Status: &target, Actor: in.Actor}
	if in.Reason != "" {
		notes := current.Notes
		if notes != "" {
			notes += "\n"
		}
		notes += "close reason: " + in.Reason
		update.Notes = &notes
	}

	return e.UpdateIssue(ctx, id, update)
}
