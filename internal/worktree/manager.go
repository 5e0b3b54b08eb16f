// Package worktree manages the mapping from specs to isolated git
// working copies: one branch and one checkout per spec, gated on
// dependency readiness, with every transition written through the
// lineage store.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spectrena/spectrena/internal/git"
	"github.com/spectrena/spectrena/internal/readiness"
	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

// Config holds worktree manager settings.
type Config struct {
	// RepoPath is the primary repository checkout.
	RepoPath string
	// Root is the directory worktrees are created under.
	Root string
	// BranchPrefix is prepended to spec identifiers to form branch
	// names, e.g. "spec/".
	BranchPrefix string
	// BaseBranch is the branch worktrees are cut from and merged into.
	BaseBranch string
}

// DefaultConfig returns conventional settings relative to repoPath.
func DefaultConfig(repoPath string) Config {
	return Config{
		RepoPath:     repoPath,
		Root:         filepath.Join(repoPath, "..", "worktrees"),
		BranchPrefix: "spec/",
		BaseBranch:   "main",
	}
}

// Manager coordinates worktree lifecycle operations. Operations on
// the same spec are serialized with a per-spec mutex so a create can
// never race a merge; the store remains the authority on liveness.
type Manager struct {
	cfg   Config
	store storage.Storage
	git   git.Operations
	ready *readiness.Engine

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given store and git backend.
func NewManager(cfg Config, store storage.Storage, gitOps git.Operations) *Manager {
	return &Manager{
		cfg:   cfg,
		store: store,
		git:   gitOps,
		ready: readiness.New(store),
		locks: make(map[string]*sync.Mutex),
	}
}

// lockSpec acquires the per-spec mutex and returns its unlock func.
func (m *Manager) lockSpec(specID string) func() {
	m.mu.Lock()
	l, ok := m.locks[specID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[specID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateOptions modifies Create behavior.
type CreateOptions struct {
	// Force creates the worktree even when dependencies are unmet.
	// The override is recorded on the audit event.
	Force bool
	// Actor is recorded on audit events.
	Actor string
}

// Branch returns the branch name for a spec.
func (m *Manager) Branch(specID string) string {
	return m.cfg.BranchPrefix + specID
}

// Path returns the worktree path for a spec.
func (m *Manager) Path(specID string) string {
	return filepath.Join(m.cfg.Root, specID)
}

// Create cuts a branch from base, adds a worktree for it, and
// persists the live handle. A blocked spec is rejected with
// *NotReadyError unless forced; a second live worktree with
// *AlreadyActiveError. A newly claimed spec moves to in_progress.
func (m *Manager) Create(ctx context.Context, specID string, opts CreateOptions) (*types.WorktreeHandle, error) {
	defer m.lockSpec(specID)()

	spec, err := m.store.GetSpec(ctx, specID)
	if err != nil {
		return nil, err
	}

	unmet, err := m.ready.UnmetDependencies(ctx, specID)
	if err != nil {
		return nil, err
	}
	if len(unmet) > 0 && !opts.Force {
		return nil, &NotReadyError{SpecID: specID, Unmet: unmet}
	}

	if existing, err := m.store.GetActiveWorktree(ctx, specID); err == nil {
		return nil, &AlreadyActiveError{SpecID: specID, Path: existing.Path}
	} else {
		var notFound *storage.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	branch := m.Branch(specID)
	path := m.Path(specID)
	if err := m.git.AddWorktree(ctx, m.cfg.RepoPath, path, branch, m.cfg.BaseBranch); err != nil {
		return nil, fmt.Errorf("failed to create worktree for %s: %w", specID, err)
	}

	handle := &types.WorktreeHandle{
		SpecID: specID,
		Branch: branch,
		Path:   path,
		State:  types.WorktreeActive,
	}
	event := &types.AuditEvent{
		Kind:   types.EventWorktreeCreated,
		Actor:  opts.Actor,
		Detail: fmt.Sprintf("%s at %s", branch, path),
		Forced: opts.Force && len(unmet) > 0,
	}
	if err := m.store.CreateWorktreeHandle(ctx, handle, event); err != nil {
		// Roll the git state back so a store failure doesn't strand an
		// untracked worktree.
		_ = m.git.RemoveWorktree(ctx, m.cfg.RepoPath, path, true)
		_ = m.git.DeleteBranch(ctx, m.cfg.RepoPath, branch, true)
		return nil, err
	}

	if spec.Status == types.StatusNotStarted {
		if err := m.store.UpdateSpecStatus(ctx, specID, types.StatusInProgress, opts.Actor); err != nil {
			return nil, err
		}
	}
	return handle, nil
}

// Merge merges the spec's branch into base, marks the handle Merged,
// and promotes the spec to complete. A dirty worktree is refused with
// *DirtyError. Removal of the working copy afterwards is best-effort;
// the merge itself is what matters.
func (m *Manager) Merge(ctx context.Context, specID, actor string) error {
	defer m.lockSpec(specID)()

	handle, err := m.store.GetActiveWorktree(ctx, specID)
	if err != nil {
		return err
	}

	dirty, err := m.git.HasUncommittedChanges(ctx, handle.Path)
	if err != nil {
		return fmt.Errorf("failed to check worktree for %s: %w", specID, err)
	}
	if dirty {
		return &DirtyError{SpecID: specID, Path: handle.Path}
	}

	if err := m.git.Merge(ctx, m.cfg.RepoPath, handle.Branch, m.cfg.BaseBranch); err != nil {
		return fmt.Errorf("failed to merge %s: %w", handle.Branch, err)
	}

	complete := types.StatusComplete
	event := &types.AuditEvent{
		Kind:   types.EventWorktreeMerged,
		Actor:  actor,
		Detail: fmt.Sprintf("%s merged into %s", handle.Branch, m.cfg.BaseBranch),
	}
	if err := m.store.TransitionWorktree(ctx, specID, types.WorktreeMerged, event, &complete); err != nil {
		return err
	}

	_ = m.git.RemoveWorktree(ctx, m.cfg.RepoPath, handle.Path, false)
	_ = m.git.DeleteBranch(ctx, m.cfg.RepoPath, handle.Branch, false)
	return nil
}

// Abandon removes the spec's worktree without merging and marks the
// handle Abandoned. Uncommitted changes are refused unless forced;
// the spec returns to not_started.
func (m *Manager) Abandon(ctx context.Context, specID string, force bool, actor string) error {
	defer m.lockSpec(specID)()

	handle, err := m.store.GetActiveWorktree(ctx, specID)
	if err != nil {
		return err
	}

	if !force {
		dirty, err := m.git.HasUncommittedChanges(ctx, handle.Path)
		if err != nil {
			return fmt.Errorf("failed to check worktree for %s: %w", specID, err)
		}
		if dirty {
			return &DirtyError{SpecID: specID, Path: handle.Path}
		}
	}

	if err := m.git.RemoveWorktree(ctx, m.cfg.RepoPath, handle.Path, force); err != nil {
		return fmt.Errorf("failed to remove worktree for %s: %w", specID, err)
	}
	_ = m.git.DeleteBranch(ctx, m.cfg.RepoPath, handle.Branch, true)

	notStarted := types.StatusNotStarted
	event := &types.AuditEvent{
		Kind:   types.EventWorktreeAbandoned,
		Actor:  actor,
		Detail: fmt.Sprintf("%s at %s discarded", handle.Branch, handle.Path),
		Forced: force,
	}
	return m.store.TransitionWorktree(ctx, specID, types.WorktreeAbandoned, event, &notStarted)
}

// HandleStatus is one live worktree with its spec and git state.
type HandleStatus struct {
	Handle     *types.WorktreeHandle
	SpecStatus types.Status
	Dirty      bool
	// Merged reports whether the branch's commits are already
	// reachable from base, i.e. the worktree is done but not yet
	// transitioned.
	Merged bool
	// CheckedOut is the branch actually checked out at the worktree
	// path. It differs from Handle.Branch when someone switched
	// branches inside the worktree.
	CheckedOut string
}

// Status enumerates all live handles, gathering spec status from the
// store and branch/cleanliness state from git in parallel.
func (m *Manager) Status(ctx context.Context) ([]HandleStatus, error) {
	handles, err := m.store.ListActiveWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]HandleStatus, len(handles))
	g, ctx := errgroup.WithContext(ctx)
	for i, handle := range handles {
		i, handle := i, handle
		g.Go(func() error {
			spec, err := m.store.GetSpec(ctx, handle.SpecID)
			if err != nil {
				return err
			}
			dirty, err := m.git.HasUncommittedChanges(ctx, handle.Path)
			if err != nil {
				// A missing or broken checkout shouldn't hide the rest
				// of the listing.
				dirty = false
			}
			merged, err := m.git.IsMerged(ctx, m.cfg.RepoPath, handle.Branch, m.cfg.BaseBranch)
			if err != nil {
				merged = false
			}
			checkedOut, err := m.git.CurrentBranch(ctx, handle.Path)
			if err != nil {
				checkedOut = ""
			}
			statuses[i] = HandleStatus{
				Handle:     handle,
				SpecStatus: spec.Status,
				Dirty:      dirty,
				Merged:     merged,
				CheckedOut: checkedOut,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}
