package store

import (
	"context"
	"database/sql"
	"time"
)

// DependencyRecord is the persisted shape of a dependency edge.
type DependencyRecord struct {
	FromID    string
	ToID      string
	Kind      string
	CreatedAt time.Time
}

// InsertDependency records a directed edge within a transaction. Kind is
// normally "blocks"; duplicates are ignored rather than erroring so
// callers don't need a separate existence check.
func InsertDependency(ctx context.Context, tx *sql.Tx, d *DependencyRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO dependencies (from_id, to_id, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_id, to_id, kind) DO NOTHING
	`, d.FromID, d.ToID, d.Kind, d.CreatedAt)
	if err != nil {
		return wrapDBError("insert dependency", err)
	}
	return nil
}

// DeleteDependency removes a single directed edge within a transaction.
func DeleteDependency(ctx context.Context, tx *sql.Tx, fromID, toID, kind string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM dependencies WHERE from_id = ? AND to_id = ? AND kind = ?
	`, fromID, toID, kind)
	if err != nil {
		return wrapDBError("delete dependency", err)
	}
	return nil
}

// AllDependencyEdges returns every dependency edge in the project, for
// building the in-memory graph used by cycle detection and critical-path
// computation.
func (s *Store) AllDependencyEdges(ctx context.Context) ([]*DependencyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id, to_id, kind, created_at FROM dependencies`)
	if err != nil {
		return nil, wrapDBError("list dependency edges", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*DependencyRecord
	for rows.Next() {
		var d DependencyRecord
		if err := rows.Scan(&d.FromID, &d.ToID, &d.Kind, &d.CreatedAt); err != nil {
			return nil, wrapDBError("scan dependency edge", err)
		}
		out = append(out, &d)
	}
	return out, wrapDBError("iterate dependency edges", rows.Err())
}

// DependenciesOf returns the ids an issue depends on (it is blocked by
// these until they're done).
func (s *Store) DependenciesOf(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT to_id FROM dependencies WHERE from_id = ? AND kind = 'blocks'`, issueID)
	if err != nil {
		return nil, wrapDBError("list dependencies of issue", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan dependency", err)
		}
		out = append(out, id)
	}
	return out, wrapDBError("iterate dependencies", rows.Err())
}

// DependentsOf returns the ids that depend on (are blocked by) an issue.
func (s *Store) DependentsOf(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT from_id FROM dependencies WHERE to_id = ? AND kind = 'blocks'`, issueID)
	if err != nil {
		return nil, wrapDBError("list dependents of issue", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan dependent", err)
		}
		out = append(out, id)
	}
	return out, wrapDBError("iterate dependents", rows.Err())
}
