// Package sqlite implements the lineage store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"

	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/storage/migrations"
)

// Store implements the storage.Storage interface using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) a lineage store at path and applies
// any pending schema migrations. Migration application holds an
// exclusive lock file so concurrent processes cannot interleave
// migrations; the lock is released before the store is returned.
//
// When a migration fails, New returns the *storage.MigrationError
// together with a non-nil store: everything applied before the failed
// version stays applied, so the store remains readable at its last
// fully-migrated version. The caller owns closing it.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// WAL for multi-process readers, foreign keys for referential
	// integrity, busy timeout as the first line of defense before the
	// explicit backoff retry in withWriteTx.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	lockPath, err := storage.AcquireMigrationLock(path)
	if err != nil {
		db.Close()
		return nil, err
	}

	manager := migrations.NewManager()
	registerMigrations(manager)
	migErr := manager.Apply(db)

	if err := storage.ReleaseMigrationLock(lockPath); err != nil {
		db.Close()
		return nil, err
	}
	if migErr != nil {
		return &Store{db: db}, migErr
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the migration high-water mark.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return migrations.Version(s.db)
}

// isBusy reports whether err is a transient SQLite contention error
// worth retrying. Another process holding the store file produces
// these under WAL.
func isBusy(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withWriteTx runs fn inside a BEGIN IMMEDIATE transaction on a
// dedicated connection. IMMEDIATE acquires the write lock up front,
// serializing multi-record writes so a crash mid-operation can never
// leave, say, a spec Complete without its audit event.
//
// We use raw Exec instead of BeginTx because database/sql doesn't
// support transaction modes in BeginTx, and the sqlite3 driver's
// BeginTx always uses DEFERRED mode. Acquisition is retried with
// exponential backoff while another process holds the write lock.
func (s *Store) withWriteTx(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	begin := func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(begin, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Use context.Background() for ROLLBACK so cleanup happens even if
	// ctx is already canceled.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	committed = true
	return nil
}

// specExists checks spec existence on an arbitrary querier.
func specExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM specs WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check spec %s: %w", id, err)
	}
	return true, nil
}

// requireSpec fails fast with a NotFoundError for unknown identifiers.
func requireSpec(ctx context.Context, q querier, id string) error {
	ok, err := specExists(ctx, q, id)
	if err != nil {
		return err
	}
	if !ok {
		return &storage.NotFoundError{Kind: "spec", ID: id}
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Conn for shared read helpers.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
