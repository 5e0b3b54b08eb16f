package git

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Fake is an in-memory Operations implementation for tests. All state
// is exported so tests can seed and inspect it directly; Err, when
// set, is returned by every mutating call.
type Fake struct {
	mu sync.Mutex

	// Branches maps branch name to true when it exists.
	Branches map[string]bool
	// Worktrees maps worktree path to its branch.
	Worktrees map[string]string
	// Dirty marks worktree paths with uncommitted changes.
	Dirty map[string]bool
	// MergedBranches marks branches whose commits are reachable from
	// the base branch.
	MergedBranches map[string]bool
	// Err, when non-nil, is returned by every mutating operation.
	Err error

	// RemovedWorktrees records paths passed to RemoveWorktree.
	RemovedWorktrees []string
	// DeletedBranches records branches passed to DeleteBranch.
	DeletedBranches []string
}

// NewFake returns an empty Fake with all maps initialized.
func NewFake() *Fake {
	return &Fake{
		Branches:       map[string]bool{},
		Worktrees:      map[string]string{},
		Dirty:          map[string]bool{},
		MergedBranches: map[string]bool{},
	}
}

func (f *Fake) ValidateRepo(path string) error { return nil }

func (f *Fake) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Branches[branch] {
		return fmt.Errorf("branch %s already exists", branch)
	}
	if _, ok := f.Worktrees[path]; ok {
		return fmt.Errorf("worktree path already exists: %s", path)
	}
	f.Branches[branch] = true
	f.Worktrees[path] = branch
	return nil
}

func (f *Fake) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.Dirty[path] && !force {
		return fmt.Errorf("worktree %s contains modified or untracked files", path)
	}
	delete(f.Worktrees, path)
	delete(f.Dirty, path)
	f.RemovedWorktrees = append(f.RemovedWorktrees, path)
	return nil
}

func (f *Fake) PruneWorktrees(ctx context.Context, repoPath string) error {
	return f.Err
}

func (f *Fake) Merge(ctx context.Context, repoPath, branch, base string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if !f.Branches[branch] {
		return fmt.Errorf("branch %s does not exist", branch)
	}
	f.MergedBranches[branch] = true
	return nil
}

func (f *Fake) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Dirty[path], nil
}

func (f *Fake) CurrentBranch(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if branch, ok := f.Worktrees[path]; ok {
		return branch, nil
	}
	return "main", nil
}

func (f *Fake) BranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Branches[branch], nil
}

func (f *Fake) DeleteBranch(ctx context.Context, repoPath, branch string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if !f.Branches[branch] {
		return fmt.Errorf("branch %s does not exist", branch)
	}
	if !f.MergedBranches[branch] && !force {
		return fmt.Errorf("branch %s is not fully merged", branch)
	}
	delete(f.Branches, branch)
	f.DeletedBranches = append(f.DeletedBranches, branch)
	return nil
}

func (f *Fake) IsMerged(ctx context.Context, repoPath, branch, base string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.MergedBranches[branch], nil
}

func (f *Fake) ListBranches(ctx context.Context, repoPath, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var branches []string
	for branch := range f.Branches {
		if strings.HasPrefix(branch, prefix) {
			branches = append(branches, branch)
		}
	}
	sort.Strings(branches)
	return branches, nil
}

var _ Operations = (*Fake)(nil)
var _ Operations = (*Git)(nil)
