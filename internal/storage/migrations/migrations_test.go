package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spectrena/spectrena/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=ON")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var exampleMigration = Migration{
	Version:     1,
	Description: "Add example test table",
	Up: `
		CREATE TABLE IF NOT EXISTS test_table (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)
	`,
}

func TestApply(t *testing.T) {
	db := openTestDB(t)

	manager := NewManager()
	manager.Register(exampleMigration)

	if err := manager.Apply(db); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	// Verify version record exists
	var version int
	err := db.QueryRow("SELECT version FROM schema_version WHERE version = 1").Scan(&version)
	if err != nil {
		t.Fatalf("version record not found: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	// Verify test table exists
	if _, err := db.Exec("INSERT INTO test_table (id, name) VALUES (1, 'test')"); err != nil {
		t.Fatalf("test table not created: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	manager := NewManager()
	manager.Register(exampleMigration)
	manager.Register(Migration{
		Version:     2,
		Description: "Add name index",
		Up:          `CREATE INDEX IF NOT EXISTS idx_test_name ON test_table(name)`,
	})

	if err := manager.Apply(db); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	// Re-running the full sequence on a current store is a no-op.
	if err := manager.Apply(db); err != nil {
		t.Fatalf("re-apply on current store must be a no-op: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 version records, got %d", count)
	}
}

func TestApplyStopsAtFailedVersion(t *testing.T) {
	db := openTestDB(t)

	manager := NewManager()
	manager.Register(exampleMigration)
	manager.Register(Migration{
		Version:     2,
		Description: "Broken migration",
		Up:          `CREATE TABLE syntax error here`,
	})
	manager.Register(Migration{
		Version:     3,
		Description: "Never reached",
		Up:          `CREATE TABLE IF NOT EXISTS unreachable (id INTEGER)`,
	})

	err := manager.Apply(db)
	var migErr *storage.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected MigrationError, got %v", err)
	}
	if migErr.Version != 2 {
		t.Errorf("expected failure at version 2, got %d", migErr.Version)
	}

	// Version 1 stays fully applied, 2 is fully unapplied, 3 never ran.
	version, err := Version(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Errorf("expected high-water mark 1, got %d", version)
	}
	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='unreachable'").Scan(&name)
	if err != sql.ErrNoRows {
		t.Errorf("migration 3 must not run after 2 fails: %v", err)
	}

	// Reads not needing the newer shape still work.
	if _, err := db.Exec("INSERT INTO test_table (id, name) VALUES (1, 'still usable')"); err != nil {
		t.Errorf("store must stay usable at last migrated version: %v", err)
	}
}

func TestUpFuncGuardedAlter(t *testing.T) {
	db := openTestDB(t)

	addColumn := func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('test_table') WHERE name = 'extra'`).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		_, err = tx.Exec(`ALTER TABLE test_table ADD COLUMN extra TEXT`)
		return err
	}

	manager := NewManager()
	manager.Register(exampleMigration)
	manager.Register(Migration{Version: 2, Description: "Add extra column", UpFunc: addColumn})

	if err := manager.Apply(db); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	// Guarded ALTER is safe even if the shape already exists.
	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := addColumn(tx); err != nil {
		t.Errorf("guarded alter must tolerate an existing column: %v", err)
	}
	_ = tx.Rollback()
}

func TestMigrationOrdering(t *testing.T) {
	manager := NewManager()

	manager.Register(Migration{Version: 3, Description: "Third", Up: "SELECT 1"})
	manager.Register(Migration{Version: 1, Description: "First", Up: "SELECT 1"})
	manager.Register(Migration{Version: 2, Description: "Second", Up: "SELECT 1"})

	manager.sortMigrations()

	if len(manager.migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(manager.migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if manager.migrations[i].Version != want {
			t.Errorf("expected migration %d at index %d, got %d", want, i, manager.migrations[i].Version)
		}
	}
	if manager.Target() != 3 {
		t.Errorf("expected target 3, got %d", manager.Target())
	}
}
