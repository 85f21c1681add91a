package store

import (
	"context"
	"database/sql"
	"time"
)

// CommentRecord is the persisted shape of a comment row.
type CommentRecord struct {
	ID        int64
	IssueID   string
	Author    string
	Text      string
	CreatedAt time.Time
}

// InsertComment appends a comment within a transaction.
func InsertComment(ctx context.Context, tx *sql.Tx, c *CommentRecord) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO comments (issue_id, author, text, created_at) VALUES (?, ?, ?, ?)
	`, c.IssueID, c.Author, c.Text, c.CreatedAt)
	if err != nil {
		return 0, wrapDBError("insert comment", err)
	}
	return res.LastInsertId()
}

// CommentsForIssue returns every comment on an issue, oldest first.
func (s *Store) CommentsForIssue(ctx context.Context, issueID string) ([]*CommentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at FROM comments
		WHERE issue_id = ? ORDER BY created_at ASC, id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBError("list comments for issue", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CommentRecord
	for rows.Next() {
		var c CommentRecord
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, wrapDBError("scan comment", err)
		}
		out = append(out, &c)
	}
	return out, wrapDBError("iterate comments", rows.Err())
}
