package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// MigrationLock is the lock file format used to make schema migration
// mutually exclusive across processes sharing a store file. While the
// lock is held no other process may open the store for migration.
type MigrationLock struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireMigrationLock creates a lock file next to the database. It
// fails if another live process holds the lock; stale locks (dead PID
// on this host) are overwritten. Returns the lock path for release.
func AcquireMigrationLock(dbPath string) (string, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return "", nil
	}

	lockPath := filepath.Join(filepath.Dir(dbPath), ".migration-lock")

	if data, err := os.ReadFile(lockPath); err == nil {
		var existing MigrationLock
		if json.Unmarshal(data, &existing) == nil {
			if isProcessAlive(existing.PID, existing.Hostname) {
				return "", fmt.Errorf("migration already in progress (PID %d on %s, started %s)",
					existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
			}
			// Stale lock - will overwrite
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	lock := MigrationLock{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create migration lock: %w", err)
	}

	return lockPath, nil
}

// ReleaseMigrationLock removes the lock file. Safe to call with an
// empty path (in-memory stores never lock).
func ReleaseMigrationLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove migration lock: %w", err)
	}
	return nil
}

// isProcessAlive checks if a process with the given PID exists on the
// given hostname. Remote hosts cannot be checked and are assumed alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}

	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM means the process exists but belongs to another user.
	if err == syscall.EPERM {
		return true
	}

	return false
}
