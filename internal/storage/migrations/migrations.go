// Package migrations applies ordered, forward-only schema migrations.
// Each migration runs inside its own transaction: after a crash the
// store reflects either "version N fully applied" or "version N not
// applied", never a partial shape. Re-applying an already-applied
// version is a no-op.
package migrations

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/spectrena/spectrena/internal/storage"
)

// Migration represents a single database migration. Exactly one of Up
// or UpFunc must be set. UpFunc exists for shape-dependent changes
// (guarded ALTERs) that must check the current schema before altering,
// keeping every migration idempotent by construction.
type Migration struct {
	Version     int
	Description string
	Up          string
	UpFunc      func(tx *sql.Tx) error
}

// Manager handles database migrations.
type Manager struct {
	migrations []Migration
}

// NewManager creates a new migration manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a migration to the manager.
func (m *Manager) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

// Target returns the highest registered version.
func (m *Manager) Target() int {
	target := 0
	for _, mig := range m.migrations {
		if mig.Version > target {
			target = mig.Version
		}
	}
	return target
}

func (m *Manager) sortMigrations() {
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Apply brings the database to the highest registered version. On
// failure it aborts further migrations and returns a
// *storage.MigrationError naming the failed version; everything
// applied before that version stays applied.
func (m *Manager) Apply(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return fmt.Errorf("failed to create version table: %w", err)
	}

	currentVersion, err := Version(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	m.sortMigrations()

	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if err := applyOne(db, migration); err != nil {
			return &storage.MigrationError{Version: migration.Version, Err: err}
		}
	}

	return nil
}

// Version returns the migration high-water mark, 0 for a fresh store.
func Version(db *sql.DB) (int, error) {
	if err := createVersionTable(db); err != nil {
		return 0, err
	}
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func applyOne(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	switch {
	case migration.UpFunc != nil:
		if err := migration.UpFunc(tx); err != nil {
			return fmt.Errorf("failed to execute migration func: %w", err)
		}
	case migration.Up != "":
		if _, err := tx.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	default:
		return fmt.Errorf("migration has neither Up nor UpFunc")
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
		migration.Version, migration.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
