package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentflow/beads/internal/types"
)

// IssueRecord is the persisted shape of an issue row: exactly the
// columns owned by the Store. Derived fields (labels, blocks, blocked_by,
// is_ready, children) are assembled by the engine from separate queries.
type IssueRecord struct {
	ID          string
	Title       string
	Status      string
	Priority    int
	IssueType   string
	ParentID    *string
	Assignee    string
	Description string
	Notes       string
	Fields      map[string]types.FieldValue
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

func marshalFields(fields map[string]types.FieldValue) (string, error) {
	if fields == nil {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshaling fields: %w", err)
	}
	return string(b), nil
}

func unmarshalFields(s string) (map[string]types.FieldValue, error) {
	if s == "" {
		return map[string]types.FieldValue{}, nil
	}
	var out map[string]types.FieldValue
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshaling fields: %w", err)
	}
	if out == nil {
		out = map[string]types.FieldValue{}
	}
	return out, nil
}

// InsertIssue inserts a single issue row within an existing transaction.
func InsertIssue(ctx context.Context, tx *sql.Tx, r *IssueRecord) error {
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (
			id, title, status, priority, issue_type, parent_id, assignee,
			description, notes, fields, created_at, updated_at, closed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Title, r.Status, r.Priority, r.IssueType, r.ParentID, r.Assignee,
		r.Description, r.Notes, fieldsJSON, r.CreatedAt, r.UpdatedAt, r.ClosedAt)
	if err != nil {
		return wrapDBError("insert issue", err)
	}
	return nil
}

const issueColumns = "id, title, status, priority, issue_type, parent_id, assignee, " +
	"description, notes, fields, created_at, updated_at, closed_at"

func scanIssue(scanner interface{ Scan(...interface{}) error }) (*IssueRecord, error) {
	var r IssueRecord
	var parentID sql.NullString
	var assignee sql.NullString
	var fieldsJSON string
	var closedAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.Title, &r.Status, &r.Priority, &r.IssueType, &parentID, &assignee,
		&r.Description, &r.Notes, &fieldsJSON, &r.CreatedAt, &r.UpdatedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		p := parentID.String
		r.ParentID = &p
	}
	if assignee.Valid {
		r.Assignee = assignee.String
	}
	if closedAt.Valid {
		c := closedAt.Time
		r.ClosedAt = &c
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, err
	}
	r.Fields = fields
	return &r, nil
}

// GetIssue fetches a single issue row by id. Returns ErrNotFound if
// absent.
func (s *Store) GetIssue(ctx context.Context, id string) (*IssueRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	r, err := scanIssue(row)
	if err != nil {
		return nil, wrapDBError("get issue", err)
	}
	return r, nil
}

// GetIssueForUpdate fetches a single issue row within a transaction, for
// use by callers that need a consistent read-then-write (e.g. atomic
// transition+fields validation).
func GetIssueForUpdate(ctx context.Context, tx *sql.Tx, id string) (*IssueRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	r, err := scanIssue(row)
	if err != nil {
		return nil, wrapDBError("get issue for update", err)
	}
	return r, nil
}

// UpdateIssue replaces the mutable columns of an existing issue row
// within a transaction.
func UpdateIssue(ctx context.Context, tx *sql.Tx, r *IssueRecord) error {
	fieldsJSON, err := marshalFields(r.Fields)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE issues SET
			title = ?, status = ?, priority = ?, issue_type = ?, parent_id = ?, assignee = ?,
			description = ?, notes = ?, fields = ?, updated_at = ?, closed_at = ?
		WHERE id = ?
	`, r.Title, r.Status, r.Priority, r.IssueType, r.ParentID, r.Assignee,
		r.Description, r.Notes, fieldsJSON, r.UpdatedAt, r.ClosedAt, r.ID)
	if err != nil {
		return wrapDBError("update issue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("update issue rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("update issue %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

// GuardedStatusUpdate performs the optimistic-locking claim/release
// pattern from spec §4.4: UPDATE ... WHERE id=? AND status IN (...) AND
// assignee = <expectedAssignee>. Returns the number of rows affected (0
// means the guard failed).
func GuardedStatusUpdate(ctx context.Context, tx *sql.Tx, id, newStatus, newAssignee string, allowedStatuses []string, expectedAssignee string, now time.Time) (int64, error) {
	if len(allowedStatuses) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(allowedStatuses))
	for i := range allowedStatuses {
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(`
		UPDATE issues SET status = ?, assignee = ?, updated_at = ?
		WHERE status IN (%s) AND id = ? AND assignee = ?
	`, strings.Join(placeholders, ","))
	finalArgs := []interface{}{newStatus, newAssignee, now}
	for _, st := range allowedStatuses {
		finalArgs = append(finalArgs, st)
	}
	finalArgs = append(finalArgs, id, expectedAssignee)

	res, err := tx.ExecContext(ctx, query, finalArgs...)
	if err != nil {
		return 0, wrapDBError("guarded status update", err)
	}
	return res.RowsAffected()
}

// IssueFilter parameterizes ListIssues.
type IssueFilter struct {
	Statuses []string // pre-expanded by caller (category expansion happens in engine)
	Type     string
	Assignee *string
	ParentID *string
	Limit    int
}

// ListIssues returns issue rows matching filter. An empty Statuses slice
// applies no status filter, so callers that computed an empty category
// expansion must avoid calling this at all and return an empty result
// directly (spec §4.4 boundary behavior).
func (s *Store) ListIssues(ctx context.Context, filter IssueFilter) ([]*IssueRecord, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		where = append(where, "issue_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Assignee != nil {
		where = append(where, "assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if filter.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}

	query := `SELECT ` + issueColumns + ` FROM issues`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority ASC, created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list issues", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*IssueRecord
	for rows.Next() {
		r, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("iterate issues", rows.Err())
}

// ListIssuesByIDs returns issue rows for the given ids, in no particular
// order; missing ids are simply absent from the result.
func (s *Store) ListIssuesByIDs(ctx context.Context, ids []string) ([]*IssueRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list issues by ids", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*IssueRecord
	for rows.Next() {
		r, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("iterate issues", rows.Err())
}

// ListChildren returns the ids of issues whose parent_id equals id.
func (s *Store) ListChildren(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM issues WHERE parent_id = ? ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, wrapDBError("list children", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, wrapDBError("scan child id", err)
		}
		out = append(out, cid)
	}
	return out, wrapDBError("iterate children", rows.Err())
}

// ExistingIDs returns the full set of currently allocated issue ids, for
// collision-free id generation.
func (s *Store) ExistingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM issues`)
	if err != nil {
		return nil, wrapDBError("list existing ids", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapDBError("scan existing id", err)
		}
		out[id] = true
	}
	return out, wrapDBError("iterate existing ids", rows.Err())
}

// SearchIssues runs a full-text search (schema migration 2) over
// (title, description). It queries issues_fts only; there is no LIKE
// fallback, so it returns an error if that table is absent.
func (s *Store) SearchIssues(ctx context.Context, query string) ([]*IssueRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+strings.Join(prefixed("i", strings.Split(issueColumns, ", ")), ", ")+`
		FROM issues i
		JOIN issues_fts f ON f.id = i.id
		WHERE issues_fts MATCH ?
		ORDER BY i.priority ASC, i.created_at ASC
	`, query)
	if err != nil {
		return nil, wrapDBError("search issues", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*IssueRecord
	for rows.Next() {
		r, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan searched issue", err)
		}
		out = append(out, r)
	}
	return out, wrapDBError("iterate search results", rows.Err())
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + strings.TrimSpace(c)
	}
	return out
}
