package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/spectrena/spectrena/internal/storage/migrations"
)

// Schema history. Forward-only: new shapes are appended as new
// versions, existing versions are never edited once released.
//
// Version 1: initial lineage schema.
// Version 2: tasks.actual_minutes for time-spent tracking.
// Version 3: audit_events.forced flag plus reverse dependency index.
func registerMigrations(m *migrations.Manager) {
	m.Register(migrations.Migration{
		Version:     1,
		Description: "Initial lineage schema",
		Up: `
			CREATE TABLE IF NOT EXISTS specs (
				id TEXT PRIMARY KEY,
				component TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'not_started',
				weight TEXT NOT NULL DEFAULT 'standard',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS dependencies (
				spec_id TEXT NOT NULL REFERENCES specs(id),
				depends_on_id TEXT NOT NULL REFERENCES specs(id),
				created_at DATETIME NOT NULL,
				PRIMARY KEY (spec_id, depends_on_id)
			);

			CREATE TABLE IF NOT EXISTS plans (
				spec_id TEXT PRIMARY KEY REFERENCES specs(id),
				summary TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS tasks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				spec_id TEXT NOT NULL REFERENCES specs(id),
				title TEXT NOT NULL,
				done INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				completed_at DATETIME
			);
			CREATE INDEX IF NOT EXISTS idx_tasks_spec ON tasks(spec_id);

			CREATE TABLE IF NOT EXISTS code_changes (
				id TEXT PRIMARY KEY,
				spec_id TEXT NOT NULL REFERENCES specs(id),
				task_id INTEGER REFERENCES tasks(id),
				file_path TEXT NOT NULL,
				symbol TEXT NOT NULL DEFAULT '',
				commit_sha TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_code_changes_spec ON code_changes(spec_id);

			CREATE TABLE IF NOT EXISTS worktrees (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				spec_id TEXT NOT NULL REFERENCES specs(id),
				branch TEXT NOT NULL,
				path TEXT NOT NULL,
				state TEXT NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_worktrees_live
				ON worktrees(spec_id) WHERE state IN ('created', 'active');

			CREATE TABLE IF NOT EXISTS audit_events (
				id TEXT PRIMARY KEY,
				spec_id TEXT NOT NULL REFERENCES specs(id),
				kind TEXT NOT NULL,
				actor TEXT NOT NULL DEFAULT '',
				detail TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_audit_events_spec ON audit_events(spec_id);
		`,
	})

	m.Register(migrations.Migration{
		Version:     2,
		Description: "Add actual_minutes to tasks",
		UpFunc:      addColumnIfMissing("tasks", "actual_minutes", "INTEGER"),
	})

	m.Register(migrations.Migration{
		Version:     3,
		Description: "Add forced flag to audit events and reverse dependency index",
		UpFunc: func(tx *sql.Tx) error {
			if err := addColumnIfMissing("audit_events", "forced", "INTEGER NOT NULL DEFAULT 0")(tx); err != nil {
				return err
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON dependencies(depends_on_id)`)
			return err
		},
	})
}

// addColumnIfMissing returns a guarded ALTER: it checks the table
// shape before altering so the migration stays idempotent.
func addColumnIfMissing(table, column, definition string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRow(
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if count > 0 {
			return nil
		}
		_, err = tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
		if err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
		}
		return nil
	}
}
