package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentflow/beads/internal/apierr"
	"github.com/agentflow/beads/internal/store"
	"github.com/agentflow/beads/internal/types"
)

// AddComment appends a comment and a comment_added event in one
// transaction.
func (e *Engine) AddComment(ctx context.Context, issueID, author, text string) (*store.CommentRecord, error) {
	if text == "" {
		return nil, apierr.Validationf("comment text cannot be empty")
	}
	now := time.Now().UTC()
	var id int64
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		n, err := store.InsertComment(ctx, tx, &store.CommentRecord{
			IssueID: issueID, Author: author, Text: text, CreatedAt: now,
		})
		if err != nil {
			return err
		}
		id = n
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   issueID,
			EventType: types.EventCommentAdded,
			Actor:     author,
			Comment:   text,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	e.notify()
	return &store.CommentRecord{ID: id, IssueID: issueID, Author: author, Text: text, CreatedAt: now}, nil
}

// AddLabel attaches a label to an issue and records a label_added event.
func (e *Engine) AddLabel(ctx context.Context, issueID, label, actor string) error {
	now := time.Now().UTC()
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := store.AddLabel(ctx, tx, issueID, label); err != nil {
			return err
		}
		return store.InsertEvent(ctx, tx, &store.EventRecord{
			IssueID:   issueID,
			EventType: types.EventLabelAdded,
			Actor:     actor,
			NewValue:  label,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}
	e.notify()
	return nil
}

// RemoveLabel detaches a label from an issue.
func (e *Engine) RemoveLabel(ctx context.Context, issueID, label string) error {
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return store.RemoveLabel(ctx, tx, issueID, label)
	})
	if err != nil {
		return err
	}
	e.notify()
	return nil
}
