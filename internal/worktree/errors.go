package worktree

import (
	"fmt"
	"strings"
)

// NotReadyError rejects worktree creation for a spec whose
// dependencies are not all complete.
type NotReadyError struct {
	SpecID string
	Unmet  []string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("spec %s is not ready: waiting on %s", e.SpecID, strings.Join(e.Unmet, ", "))
}

// AlreadyActiveError rejects a second live worktree for the same spec.
type AlreadyActiveError struct {
	SpecID string
	Path   string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("spec %s already has an active worktree at %s", e.SpecID, e.Path)
}

// DirtyError refuses to merge or abandon a worktree with uncommitted
// modifications.
type DirtyError struct {
	SpecID string
	Path   string
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("worktree for %s at %s has uncommitted changes", e.SpecID, e.Path)
}
