// Package store provides the durable, ACID-transactional persistence
// layer: an embedded relational store (pure-Go SQLite via
// ncruces/go-sqlite3) plus schema migrations, per spec §4.1.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // ships the WASM SQLite runtime, no CGO required

	"github.com/agentflow/beads/internal/store/migrations"
	"github.com/agentflow/beads/internal/templates"
)

// CurrentSchemaVersion is the highest migration version this build
// knows how to apply.
const CurrentSchemaVersion = 5

// Store is a handle over one project's embedded database. It owns all
// durable state; mutations go through the IssueEngine, while the query
// package also reads rows through Store directly.
type Store struct {
	db     *sql.DB
	prefix string

	// writeMu serializes mutations: single-writer, concurrent-reader per
	// spec §5. Reads use the shared connection pool and snapshot
	// isolation (WAL mode); writes take this mutex for the duration of
	// their transaction (typically < 10ms).
	writeMu sync.Mutex
}

func init() {
	migrations.SetBuiltinPackSource(loadBuiltinPackDefinitions)
}

// loadBuiltinPackDefinitions re-serializes every built-in pack for
// migration-5 seeding of the type_templates/packs tables.
func loadBuiltinPackDefinitions() []migrations.BuiltinPackDefinition {
	var out []migrations.BuiltinPackDefinition
	for _, pack := range templates.LoadBuiltinPacks() {
		packJSON, err := json.Marshal(pack)
		if err != nil {
			continue
		}
		def := migrations.BuiltinPackDefinition{
			Name:       pack.Name,
			Version:    pack.Version,
			Definition: string(packJSON),
		}
		for _, t := range pack.Types {
			typeJSON, err := json.Marshal(t)
			if err != nil {
				continue
			}
			def.Types = append(def.Types, migrations.BuiltinTypeDefinition{
				Type:       t.Type,
				Definition: string(typeJSON),
			})
		}
		out = append(out, def)
	}
	return out
}

// Open initializes a new store or opens an existing one at path, applying
// any pending migrations in order. The baseline schema (version 1) is
// created directly since it must exist before schema_version can be
// queried meaningfully.
func Open(ctx context.Context, path, prefix string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, baselineSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying baseline schema: %w", err)
	}

	s := &Store{db: db, prefix: prefix}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Prefix returns the project's configured issue id prefix.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version WHERE id = 1`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version == 0 {
		version = 1 // baseline schema just applied
	}

	for _, m := range migrations.All {
		if m.Version <= version {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		version = m.Version
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migrations.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_version SET version = ? WHERE id = 1`, m.Version); err != nil {
		return err
	}
	return tx.Commit()
}

// WithTx runs fn inside a single write transaction, serialized against
// all other writers. Mutations and their corresponding events are
// expected to be written inside the same call, per spec §4.1.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB for direct read-only queries, which
// do not take the write mutex.
func (s *Store) DB() *sql.DB { return s.db }
