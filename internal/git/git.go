// Package git wraps the git CLI for the worktree lifecycle: branch
// and worktree management, merge, and cleanliness checks. Everything
// runs through `git -C <repo>`; callers pass validated paths.
package git

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Operations is the subset of git the worktree manager needs. The
// exec-backed Git implements it against a real repository; Fake
// implements it in memory for tests.
type Operations interface {
	// ValidateRepo checks that path is a git repository or worktree.
	ValidateRepo(path string) error
	// AddWorktree creates a worktree at path on a new branch cut from
	// base. The branch must not already exist.
	AddWorktree(ctx context.Context, repoPath, path, branch, base string) error
	// RemoveWorktree detaches and deletes a worktree directory.
	RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error
	// PruneWorktrees drops stale worktree registrations.
	PruneWorktrees(ctx context.Context, repoPath string) error
	// Merge merges branch into base with an explicit merge commit.
	Merge(ctx context.Context, repoPath, branch, base string) error
	// HasUncommittedChanges reports whether the tree at path is dirty,
	// counting untracked files.
	HasUncommittedChanges(ctx context.Context, path string) (bool, error)
	// CurrentBranch returns the checked-out branch name at path.
	CurrentBranch(ctx context.Context, path string) (string, error)
	// BranchExists reports whether a local branch exists.
	BranchExists(ctx context.Context, repoPath, branch string) (bool, error)
	// DeleteBranch deletes a local branch.
	DeleteBranch(ctx context.Context, repoPath, branch string, force bool) error
	// IsMerged reports whether branch is an ancestor of base, i.e. its
	// commits are already reachable from base.
	IsMerged(ctx context.Context, repoPath, branch, base string) (bool, error)
	// ListBranches returns local branches with the given prefix.
	ListBranches(ctx context.Context, repoPath, prefix string) ([]string, error)
}

// Git implements Operations using the git CLI.
type Git struct {
	gitPath string
}

// New creates a Git instance, verifying git is available.
func New(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}
	return &Git{gitPath: gitPath}, nil
}

// run executes git -C repoPath with args and returns trimmed output.
func (g *Git) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	full := append([]string{"-C", repoPath}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, full...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed in %s: %w (output: %s)",
			args[0], repoPath, err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// ValidateRepo checks that path is a git repository or worktree.
// For worktrees, .git is a file pointing at the parent repo, so a
// plain stat covers both cases.
func (g *Git) ValidateRepo(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return fmt.Errorf("not a git repository: %s", path)
	}
	return nil
}

func (g *Git) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	if err := g.ValidateRepo(repoPath); err != nil {
		return err
	}
	exists, err := g.BranchExists(ctx, repoPath, branch)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("branch %s already exists", branch)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("worktree path already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create worktree parent directory: %w", err)
	}

	if _, err := g.run(ctx, repoPath, "worktree", "add", "-b", branch, path, base); err != nil {
		os.RemoveAll(path)
		return err
	}
	return nil
}

func (g *Git) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Already gone; prune any stale registration.
		return g.PruneWorktrees(ctx, repoPath)
	}

	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	if _, err := g.run(ctx, repoPath, args...); err != nil {
		if !force {
			return err
		}
		// Broken worktrees resist git removal; fall back to rm + prune.
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("failed to remove worktree directory: %w", rmErr)
		}
		return g.PruneWorktrees(ctx, repoPath)
	}
	return nil
}

func (g *Git) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := g.run(ctx, repoPath, "worktree", "prune")
	return err
}

// Merge checks out base in repoPath and merges branch with --no-ff so
// the lineage keeps an explicit merge commit per spec branch.
func (g *Git) Merge(ctx context.Context, repoPath, branch, base string) error {
	if _, err := g.run(ctx, repoPath, "checkout", base); err != nil {
		return err
	}
	if _, err := g.run(ctx, repoPath, "merge", "--no-ff", "--no-edit", branch); err != nil {
		return err
	}
	return nil
}

func (g *Git) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	output, err := g.run(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

func (g *Git) CurrentBranch(ctx context.Context, path string) (string, error) {
	return g.run(ctx, path, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g *Git) BranchExists(ctx context.Context, repoPath, branch string) (bool, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath,
		"rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, fmt.Errorf("git rev-parse failed in %s: %w", repoPath, err)
	}
	return true, nil
}

func (g *Git) DeleteBranch(ctx context.Context, repoPath, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, repoPath, "branch", flag, branch)
	return err
}

func (g *Git) IsMerged(ctx context.Context, repoPath, branch, base string) (bool, error) {
	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath,
		"merge-base", "--is-ancestor", branch, base)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("git merge-base failed in %s: %w", repoPath, err)
	}
	return true, nil
}

func (g *Git) ListBranches(ctx context.Context, repoPath, prefix string) ([]string, error) {
	output, err := g.run(ctx, repoPath,
		"for-each-ref", "--format=%(refname:short)", "refs/heads/"+prefix)
	if err != nil {
		return nil, err
	}
	return parseBranchList(output), nil
}

// parseBranchList splits for-each-ref output into branch names,
// dropping blank lines.
func parseBranchList(output string) []string {
	var branches []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches
}
