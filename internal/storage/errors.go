package storage

import "fmt"

// NotFoundError reports a reference to an unknown identifier. The store
// fails fast rather than silently creating or correcting records.
type NotFoundError struct {
	Kind string // "spec", "task", "plan", "edge", "worktree"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConflictError reports an identity collision where replacement was not
// explicitly requested.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.ID)
}

// MigrationError reports a schema upgrade that failed at a named
// version. Earlier migrations remain fully applied; the store stays
// usable at its last fully-migrated version.
type MigrationError struct {
	Version int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
