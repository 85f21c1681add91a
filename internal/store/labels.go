package store

import (
	"context"
	"database/sql"
)

// AddLabel attaches a label to an issue within a transaction. Duplicate
// attachment is a no-op.
func AddLabel(ctx context.Context, tx *sql.Tx, issueID, label string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO labels (issue_id, label) VALUES (?, ?) ON CONFLICT (issue_id, label) DO NOTHING
	`, issueID, label)
	if err != nil {
		return wrapDBError("add label", err)
	}
	return nil
}

// RemoveLabel detaches a label from an issue within a transaction.
func RemoveLabel(ctx context.Context, tx *sql.Tx, issueID, label string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE issue_id = ? AND label = ?`, issueID, label)
	if err != nil {
		return wrapDBError("remove label", err)
	}
	return nil
}

// LabelsForIssue returns the labels attached to one issue.
func (s *Store) LabelsForIssue(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM labels WHERE issue_id = ? ORDER BY label ASC`, issueID)
	if err != nil {
		return nil, wrapDBError("list labels for issue", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, wrapDBError("scan label", err)
		}
		out = append(out, l)
	}
	return out, wrapDBError("iterate labels", rows.Err())
}

// LabelsForIssues returns a map of issue id to its labels, for bulk
// hydration of list results without N+1 queries.
func (s *Store) LabelsForIssues(ctx context.Context, issueIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(issueIDs))
	if len(issueIDs) == 0 {
		return out, nil
	}
	placeholders := make([]interface{}, len(issueIDs))
	query := `SELECT issue_id, label FROM labels WHERE issue_id IN (`
	for i, id := range issueIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders[i] = id
	}
	query += `) ORDER BY issue_id ASC, label ASC`

	rows, err := s.db.QueryContext(ctx, query, placeholders...)
	if err != nil {
		return nil, wrapDBError("list labels for issues", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issueID, label string
		if err := rows.Scan(&issueID, &label); err != nil {
			return nil, wrapDBError("scan label", err)
		}
		out[issueID] = append(out[issueID], label)
	}
	return out, wrapDBError("iterate labels", rows.Err())
}

// IssueIDsByLabel returns the ids of issues carrying a given label.
func (s *Store) IssueIDsByLabel(ctx context.Context, label string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT issue_id FROM labels WHERE label = ?`, label)
	if err != nil {
		return nil, wrapDBError("list issues by label", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan issue id", err)
		}
		out = append(out, id)
	}
	return out, wrapDBError("iterate issues by label", rows.Err())
}
