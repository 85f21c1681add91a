package engine

import (
	"context"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/types"
)

// BatchFailure describes one id's failed operation within a batch call.
type BatchFailure struct {
	ID              string
	Error           string
	ValidTransitions []string
}

// BatchWarning carries the soft-enforcement warnings recorded for one id.
type BatchWarning struct {
	ID       string
	Warnings []string
}

// BatchResult is the shared return shape for BatchClose/BatchUpdate, per
// spec §4.4: a hard failure on one issue must not prevent the others.
type BatchResult struct {
	Succeeded []string
	Failed    []BatchFailure
	Warnings  []BatchWarning
}

// BatchClose closes each id independently.
func (e *Engine) BatchClose(ctx context.Context, ids []string, reason, actor string) *BatchResult {
	result := &BatchResult{}
	for _, id := range ids {
		_, err := e.CloseIssue(ctx, id, CloseInput{Reason: reason, Actor: actor})
		if err != nil {
			result.Failed = append(result.Failed, batchFailureFrom(id, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// BatchUpdate applies the same field set to each id independently.
func (e *Engine) BatchUpdate(ctx context.Context, ids []string, fields map[string]types.FieldValue, actor string) *BatchResult {
	result := &BatchResult{}
	for _, id := range ids {
		_, err := e.UpdateIssue(ctx, id, UpdateInput{Fields: fields, Actor: actor})
		if err != nil {
			result.Failed = append(result.Failed, batchFailureFrom(id, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

func batchFailureFrom(id string, err error) BatchFailure {
	if apiErr, ok := apierr.As(err); ok {
		return BatchFailure{ID: id, Error: apiErr.Error(), ValidTransitions: apiErr.ValidTransitions}
	}
	return BatchFailure{ID: id, Error: err.Error()}
}
