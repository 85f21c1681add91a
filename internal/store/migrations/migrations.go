// Package migrations applies the store's schema versions in monotonically
// increasing order, per spec §4.1. Each migration is a plain function
// over an open transaction so failure rolls the whole step back.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema version step.
type Migration struct {
	Version     int
	Description string
	Apply       func(ctx context.Context, tx *sql.Tx) error
}

// All returns the migrations in version order. Version 1 (the baseline
// schema) is applied separately by the store before this list runs,
// since it must exist before schema_version itself can be queried.
var All = []Migration{
	{Version: 2, Description: "full-text search over (title, description)", Apply: migrateFTS},
	{Version: 3, Description: "custom workflow state list support in config", Apply: migrateWorkflowStates},
	{Version: 4, Description: "composite indexes", Apply: migrateIndexes},
	{Version: 5, Description: "type_templates and packs tables", Apply: migrateTemplateTables},
}

func migrateFTS(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE VIRTUAL TABLE IF NOT EXISTS issues_fts USING fts4(id UNINDEXED, title, description);
		CREATE TRIGGER IF NOT EXISTS issues_fts_insert AFTER INSERT ON issues BEGIN
			INSERT INTO issues_fts (id, title, description) VALUES (new.id, new.title, new.description);
		END;
		CREATE TRIGGER IF NOT EXISTS issues_fts_update AFTER UPDATE ON issues BEGIN
			UPDATE issues_fts SET title = new.title, description = new.description WHERE id = new.id;
		END;
		CREATE TRIGGER IF NOT EXISTS issues_fts_delete AFTER DELETE ON issues BEGIN
			DELETE FROM issues_fts WHERE id = old.id;
		END;
	`)
	if err != nil {
		return fmt.Errorf("migration 2 (fts): %w", err)
	}
	return nil
}

// migrateWorkflowStates only seeds an empty `workflow_states` row in the
// config table: the legacy fallback list itself lives in config.json on disk
// (ProjectConfig), and the DB-side `config` table is already a generic
// key/value store from the baseline schema capable of holding it if a
// caller ever mirrors it into the DB. No structural change is required.
func migrateWorkflowStates(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO config (key, value) VALUES ('workflow_states', '[]')`)
	if err != nil {
		return fmt.Errorf("migration 3 (workflow states): %w", err)
	}
	return nil
}

func migrateIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_issues_status_priority_created ON issues(status, priority, created_at);
		CREATE INDEX IF NOT EXISTS idx_dependencies_from_to ON dependencies(from_id, to_id);
		CREATE INDEX IF NOT EXISTS idx_events_issue_created_desc ON events(issue_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_comments_issue_created ON comments(issue_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migration 4 (composite indexes): %w", err)
	}
	return nil
}

// migrateTemplateTables implements the §4.1 version-5 procedure: back up
// any legacy per-type `templates` table, create type_templates/packs,
// migrate legacy rows with a default 3-state definition, seed built-ins,
// validate the minimum count, then drop the legacy table.
func migrateTemplateTables(ctx context.Context, tx *sql.Tx) error {
	hasLegacy, err := tableExists(ctx, tx, "templates")
	if err != nil {
		return fmt.Errorf("migration 5: checking for legacy templates table: %w", err)
	}

	if hasLegacy {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _templates_v4_backup AS SELECT * FROM templates`); err != nil {
			return fmt.Errorf("migration 5: backing up legacy templates: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS type_templates (
			type TEXT PRIMARY KEY,
			pack TEXT NOT NULL,
			definition TEXT NOT NULL,
			is_builtin INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS packs (
			name TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			definition TEXT NOT NULL,
			is_builtin INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1
		);
	`); err != nil {
		return fmt.Errorf("migration 5: creating template tables: %w", err)
	}

	if hasLegacy {
		if err := migrateLegacyTemplateRows(ctx, tx); err != nil {
			// Backup and old table remain intact on failure, per §4.1
			// failure semantics.
			return fmt.Errorf("migration 5: migrating legacy rows: %w", err)
		}
	}

	if err := seedBuiltinTemplateRows(ctx, tx); err != nil {
		return fmt.Errorf("migration 5: seeding built-ins: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM type_templates`).Scan(&count); err != nil {
		return fmt.Errorf("migration 5: validating type_templates count: %w", err)
	}
	if count < 9 {
		return fmt.Errorf("migration 5: only %d type_templates rows after seeding, want at least 9 (backup retained at _templates_v4_backup)", count)
	}

	if hasLegacy {
		if _, err := tx.ExecContext(ctx, `DROP TABLE templates`); err != nil {
			return fmt.Errorf("migration 5: dropping legacy templates table: %w", err)
		}
	}

	return nil
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// migrateLegacyTemplateRows converts each legacy row into a type_templates
// row with a default open/in_progress/closed definition under pack
// "custom", preserving the legacy fields_schema column if present.
func migrateLegacyTemplateRows(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT type, fields_schema FROM templates`)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	type legacyRow struct {
		typeName     string
		fieldsSchema string
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.typeName, &r.fieldsSchema); err != nil {
			return err
		}
		legacy = append(legacy, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range legacy {
		def := fmt.Sprintf(`{"type":%q,"display_name":%q,"pack":"custom",`+
			`"states":[{"name":"open","category":"open"},{"name":"in_progress","category":"wip"},{"name":"closed","category":"done"}],`+
			`"initial_state":"open","transitions":[`+
			`{"from":"open","to":"in_progress","enforcement":"soft"},`+
			`{"from":"in_progress","to":"closed","enforcement":"soft"},`+
			`{"from":"in_progress","to":"open","enforcement":"soft"}],`+
			`"fields_schema":%s}`, r.typeName, r.typeName, nonEmptyJSONArray(r.fieldsSchema))
		_, err := tx.ExecContext(ctx, `
			INSERT INTO type_templates (type, pack, definition, is_builtin, created_at, updated_at)
			VALUES (?, 'custom', ?, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT (type) DO NOTHING
		`, r.typeName, def)
		if err != nil {
			return err
		}
	}
	return nil
}

func nonEmptyJSONArray(s string) string {
	if s == "" {
		return "[]"
	}
	return s
}

// BuiltinPackDefinition carries one built-in pack's raw JSON into
// migration 5. This package does not import templates; the store
// package, which does, builds these values and passes them in through
// SetBuiltinPackSource.
type BuiltinPackDefinition struct {
	Name       string
	Version    string
	Definition string
	Types      []BuiltinTypeDefinition
}

type BuiltinTypeDefinition struct {
	Type       string
	Definition string
}

// seedBuiltinPacks, set by the store package at migration time, supplies
// the built-in pack/type JSON to seed. It is a package-level hook rather
// than a parameter because the migrations.Migration.Apply signature is
// fixed by the generic migration runner.
var seedBuiltinPacks func() []BuiltinPackDefinition

// SetBuiltinPackSource installs the function the store uses to supply
// built-in pack definitions for migration 5 seeding.
func SetBuiltinPackSource(f func() []BuiltinPackDefinition) {
	seedBuiltinPacks = f
}

func seedBuiltinTemplateRows(ctx context.Context, tx *sql.Tx) error {
	if seedBuiltinPacks == nil {
		return fmt.Errorf("no built-in pack source registered")
	}
	for _, pack := range seedBuiltinPacks() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO packs (name, version, definition, is_builtin, enabled)
			VALUES (?, ?, ?, 1, 1)
			ON CONFLICT (name) DO UPDATE SET version = excluded.version, definition = excluded.definition, is_builtin = 1
		`, pack.Name, pack.Version, pack.Definition); err != nil {
			return err
		}
		for _, t := range pack.Types {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO type_templates (type, pack, definition, is_builtin, created_at, updated_at)
				VALUES (?, ?, ?, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
				ON CONFLICT (type) DO UPDATE SET pack = excluded.pack, definition = excluded.definition, is_builtin = 1, updated_at = CURRENT_TIMESTAMP
			`, t.Type, pack.Name, t.Definition); err != nil {
				return err
			}
		}
	}
	return nil
}
