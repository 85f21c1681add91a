package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentflow/beads/internal/types"
)

// EventRecord is the persisted shape of an audit-log entry. Events are
// append-only: there is no update or delete path, per spec §3.
type EventRecord struct {
	ID        int64
	IssueID   string
	EventType types.EventType
	Actor     string
	OldValue  string
	NewValue  string
	Comment   string
	CreatedAt time.Time
}

// InsertEvent appends one audit-log row within a transaction. Callers are
// expected to insert the event in the same transaction as the mutation it
// describes, per spec §4.1's atomicity requirement.
func InsertEvent(ctx context.Context, tx *sql.Tx, e *EventRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.IssueID, string(e.EventType), e.Actor, e.OldValue, e.NewValue, e.Comment, e.CreatedAt)
	if err != nil {
		return wrapDBError("insert event", err)
	}
	return nil
}

// EventsForIssue returns the full audit log for one issue, oldest first.
func (s *Store) EventsForIssue(ctx context.Context, issueID string) ([]*EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events WHERE issue_id = ? ORDER BY created_at ASC, id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBError("list events for issue", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// RecentEvents returns the most recent events across all issues, newest
// first, for the activity feed (spec §4.6).
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]*EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, wrapDBError("list recent events", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*EventRecord, error) {
	var out []*EventRecord
	for rows.Next() {
		var e EventRecord
		var eventType string
		if err := rows.Scan(&e.ID, &e.IssueID, &eventType, &e.Actor, &e.OldValue, &e.NewValue, &e.Comment, &e.CreatedAt); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		e.EventType = types.EventType(eventType)
		out = append(out, &e)
	}
	return out, wrapDBError("iterate events", rows.Err())
}
