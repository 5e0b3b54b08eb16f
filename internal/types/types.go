package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Spec represents a trackable unit of work: one feature specification
// with an identifier, component tag, status, and weight tier.
type Spec struct {
	ID        string    `json:"id"`
	Component string    `json:"component"`
	Status    Status    `json:"status"`
	Weight    Weight    `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// specIDPattern matches {component}-{number}-{slug}, e.g. "core-001-user-auth".
var specIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-[0-9]+-[A-Za-z0-9][A-Za-z0-9-]*$`)

// ValidateSpecID checks that an identifier has the {component}-{number}-{slug} shape.
func ValidateSpecID(id string) error {
	if id == "" {
		return fmt.Errorf("spec id is required")
	}
	if !specIDPattern.MatchString(id) {
		return fmt.Errorf("invalid spec id %q (expected component-number-slug, e.g. core-001-user-auth)", id)
	}
	return nil
}

// ComponentOf extracts the component tag from a spec identifier.
// Returns "" if the identifier is malformed.
func ComponentOf(id string) string {
	idx := strings.Index(id, "-")
	if idx <= 0 {
		return ""
	}
	return id[:idx]
}

// Validate checks if the spec has valid field values.
func (s *Spec) Validate() error {
	if err := ValidateSpecID(s.ID); err != nil {
		return err
	}
	if s.Component == "" {
		return fmt.Errorf("component is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", s.Status)
	}
	if !s.Weight.IsValid() {
		return fmt.Errorf("invalid weight: %s", s.Weight)
	}
	return nil
}

// Status represents the lifecycle state of a spec.
// Blocked is derived from dependency state, never stored.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusComplete:
		return true
	}
	return false
}

// Weight is the formality tier of a spec.
type Weight string

const (
	WeightLightweight Weight = "lightweight"
	WeightStandard    Weight = "standard"
	WeightFormal      Weight = "formal"
)

// IsValid checks if the weight value is valid.
func (w Weight) IsValid() bool {
	switch w {
	case WeightLightweight, WeightStandard, WeightFormal:
		return true
	}
	return false
}

// Edge is a directed "depends-on" relationship: SpecID cannot be
// considered ready until DependsOnID is complete.
type Edge struct {
	SpecID      string    `json:"spec_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Plan is the single implementation plan owned by a spec.
type Plan struct {
	SpecID    string    `json:"spec_id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is one unit of plan execution. A spec is complete only when its
// plan exists and every task is done.
type Task struct {
	ID            int64      `json:"id"`
	SpecID        string     `json:"spec_id"`
	Title         string     `json:"title"`
	Done          bool       `json:"done"`
	ActualMinutes *int       `json:"actual_minutes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Validate checks if the task has valid field values.
func (t *Task) Validate() error {
	if err := ValidateSpecID(t.SpecID); err != nil {
		return err
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title is required")
	}
	if t.ActualMinutes != nil && *t.ActualMinutes < 0 {
		return fmt.Errorf("actual_minutes cannot be negative")
	}
	return nil
}

// CodeChange links a task (or a spec directly, when there is no task
// context) to a modified location. Append-only; never mutated.
type CodeChange struct {
	ID        string    `json:"id"`
	SpecID    string    `json:"spec_id"`
	TaskID    *int64    `json:"task_id,omitempty"`
	FilePath  string    `json:"file_path"`
	Symbol    string    `json:"symbol,omitempty"`
	CommitSHA string    `json:"commit_sha,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks if the code change has valid field values.
func (c *CodeChange) Validate() error {
	if err := ValidateSpecID(c.SpecID); err != nil {
		return err
	}
	if strings.TrimSpace(c.FilePath) == "" {
		return fmt.Errorf("file_path is required")
	}
	return nil
}

// WorktreeState is the lifecycle state of a worktree handle.
// Created and Active are collapsed in practice (creation activates
// immediately) but kept distinct to model a reserved-not-checked-out
// state later.
type WorktreeState string

const (
	WorktreeCreated   WorktreeState = "created"
	WorktreeActive    WorktreeState = "active"
	WorktreeMerged    WorktreeState = "merged"
	WorktreeAbandoned WorktreeState = "abandoned"
)

// IsValid checks if the worktree state value is valid.
func (s WorktreeState) IsValid() bool {
	switch s {
	case WorktreeCreated, WorktreeActive, WorktreeMerged, WorktreeAbandoned:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s WorktreeState) Terminal() bool {
	return s == WorktreeMerged || s == WorktreeAbandoned
}

// WorktreeHandle maps a spec to its isolated working copy. At most one
// non-terminal handle may exist per spec.
type WorktreeHandle struct {
	ID        int64         `json:"id"`
	SpecID    string        `json:"spec_id"`
	Branch    string        `json:"branch"`
	Path      string        `json:"path"`
	State     WorktreeState `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// AuditEventKind categorizes audit trail entries.
type AuditEventKind string

const (
	EventWorktreeCreated   AuditEventKind = "worktree_created"
	EventWorktreeMerged    AuditEventKind = "worktree_merged"
	EventWorktreeAbandoned AuditEventKind = "worktree_abandoned"
	EventStatusChanged     AuditEventKind = "status_changed"
	EventEdgeAdded         AuditEventKind = "edge_added"
	EventEdgeRemoved       AuditEventKind = "edge_removed"
)

// AuditEvent is an append-only audit trail entry tied to a spec.
type AuditEvent struct {
	ID        string         `json:"id"`
	SpecID    string         `json:"spec_id"`
	Kind      AuditEventKind `json:"kind"`
	Actor     string         `json:"actor"`
	Detail    string         `json:"detail,omitempty"`
	Forced    bool           `json:"forced,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MigrationRecord marks one applied schema migration.
type MigrationRecord struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// SpecProgress aggregates task completion for one spec.
type SpecProgress struct {
	SpecID       string `json:"spec_id"`
	HasPlan      bool   `json:"has_plan"`
	TotalTasks   int    `json:"total_tasks"`
	DoneTasks    int    `json:"done_tasks"`
	MinutesSpent int    `json:"minutes_spent"`
}

// Statistics holds global store counts.
type Statistics struct {
	TotalSpecs      int `json:"total_specs"`
	CompleteSpecs   int `json:"complete_specs"`
	InProgressSpecs int `json:"in_progress_specs"`
	TotalEdges      int `json:"total_edges"`
	TotalTasks      int `json:"total_tasks"`
	DoneTasks       int `json:"done_tasks"`
	ActiveWorktrees int `json:"active_worktrees"`
}
