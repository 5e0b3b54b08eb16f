// Package storage defines the lineage store contract. The store
// exclusively owns persisted identity for specs, plans, tasks, code
// changes, dependency edges, worktree handles, and audit events; the
// in-memory graph is a rebuildable projection of it.
package storage

import (
	"context"

	"github.com/spectrena/spectrena/internal/types"
)

// Storage is the lineage store backend interface. All reference errors
// surface as *NotFoundError, identity collisions as *ConflictError.
// Specs, plans, tasks, and code changes are append/update-only; only
// dependency edges support deletion.
type Storage interface {
	// Specs
	RegisterSpec(ctx context.Context, spec *types.Spec) error
	GetSpec(ctx context.Context, id string) (*types.Spec, error)
	ListSpecs(ctx context.Context) ([]*types.Spec, error)
	// UpdateSpecStatus records the change and its audit event in one
	// transaction.
	UpdateSpecStatus(ctx context.Context, id string, status types.Status, actor string) error

	// Dependency edges. AddEdge enforces the acyclic invariant at the
	// authority: an edge that would close a cycle is rejected with a
	// *graph.CycleError. Both endpoints must already be registered.
	AddEdge(ctx context.Context, dependent, dependency, actor string) error
	RemoveEdge(ctx context.Context, dependent, dependency, actor string) error
	ListEdges(ctx context.Context) ([]*types.Edge, error)

	// Plans and tasks
	PutPlan(ctx context.Context, plan *types.Plan) error
	GetPlan(ctx context.Context, specID string) (*types.Plan, error)
	AddTask(ctx context.Context, task *types.Task) (int64, error)
	ListTasksForSpec(ctx context.Context, specID string) ([]*types.Task, error)
	// CompleteTask marks the task done and, when the owning spec's plan
	// exists and every task is done, promotes the spec to Complete —
	// task update, spec promotion, and audit event in one transaction.
	CompleteTask(ctx context.Context, taskID int64, actualMinutes *int, actor string) error

	// Code changes (append-only)
	AppendCodeChange(ctx context.Context, change *types.CodeChange) error
	ListCodeChanges(ctx context.Context, specID string) ([]*types.CodeChange, error)

	// Worktree handles. At most one non-terminal handle per spec,
	// enforced by the store; a second create fails with *ConflictError.
	CreateWorktreeHandle(ctx context.Context, handle *types.WorktreeHandle, event *types.AuditEvent) error
	GetActiveWorktree(ctx context.Context, specID string) (*types.WorktreeHandle, error)
	ListActiveWorktrees(ctx context.Context) ([]*types.WorktreeHandle, error)
	// TransitionWorktree moves the live handle for specID to a terminal
	// state, appends the audit event, and optionally updates the spec
	// status, all in one transaction.
	TransitionWorktree(ctx context.Context, specID string, state types.WorktreeState, event *types.AuditEvent, specStatus *types.Status) error

	// Audit trail (append-only)
	AppendAuditEvent(ctx context.Context, event *types.AuditEvent) error
	ListAuditEvents(ctx context.Context, specID string, limit int) ([]*types.AuditEvent, error)

	// Aggregates
	SpecProgress(ctx context.Context, specID string) (*types.SpecProgress, error)
	Statistics(ctx context.Context) (*types.Statistics, error)

	// SchemaVersion reports the migration high-water mark.
	SchemaVersion(ctx context.Context) (int, error)

	Close() error
}

// Config holds store configuration.
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Path: ".spectrena/lineage.db",
	}
}
