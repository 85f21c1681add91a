package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested row was not found.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a unique-constraint violation or an
// optimistic-locking loss (zero rows affected by a guarded UPDATE).
var ErrConflict = errors.New("conflict")

// wrapDBError normalizes sql.ErrNoRows to ErrNotFound and attaches
// operation context, mirroring the teacher's sqlite error-wrapping
// convention.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
