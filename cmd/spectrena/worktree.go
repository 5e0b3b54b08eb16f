package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/git"
	"github.com/spectrena/spectrena/internal/worktree"
)

var (
	worktreeForce bool
)

var worktreeCmd = &cobra.Command{
	Use:     "worktree",
	Aliases: []string{"wt"},
	Short:   "Manage per-spec git worktrees",
}

// newWorktreeManager wires the manager from config and a real git
// backend.
func newWorktreeManager(ctx context.Context) (*worktree.Manager, error) {
	gitOps, err := git.New(ctx)
	if err != nil {
		return nil, err
	}
	mcfg := worktree.Config{
		RepoPath:     repoRoot,
		Root:         cfg.WorktreeRoot(repoRoot),
		BranchPrefix: cfg.Worktree.BranchPrefix,
		BaseBranch:   cfg.Worktree.BaseBranch,
	}
	return worktree.NewManager(mcfg, store, gitOps), nil
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <spec>",
	Short: "Create a worktree and branch for a spec",
	Long: `Create a branch and isolated worktree for a spec and mark the spec
in_progress. A spec with incomplete dependencies is refused unless
--force is given; the override is recorded in the audit trail.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager, err := newWorktreeManager(ctx)
		if err != nil {
			fail(err)
		}
		handle, err := manager.Create(ctx, args[0], worktree.CreateOptions{
			Force: worktreeForce,
			Actor: actor(),
		})
		if err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s created %s\n", green("✓"), cyan(handle.Branch))
		fmt.Printf("  cd %s\n", handle.Path)
	},
}

var worktreeMergeCmd = &cobra.Command{
	Use:   "merge <spec>",
	Short: "Merge a spec's branch and complete the spec",
	Long: `Merge the spec's branch into the base branch, mark the worktree
handle merged, and promote the spec to complete. The worktree must
have no uncommitted changes; the working copy is removed afterwards.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager, err := newWorktreeManager(ctx)
		if err != nil {
			fail(err)
		}
		if err := manager.Merge(ctx, args[0], actor()); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s merged %s into %s\n", green("✓"), args[0], cfg.Worktree.BaseBranch)
	},
}

var worktreeAbandonCmd = &cobra.Command{
	Use:   "abandon <spec>",
	Short: "Discard a spec's worktree without merging",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager, err := newWorktreeManager(ctx)
		if err != nil {
			fail(err)
		}
		if err := manager.Abandon(ctx, args[0], worktreeForce, actor()); err != nil {
			fail(err)
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s abandoned worktree for %s\n", yellow("✓"), args[0])
	},
}

var worktreeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List live worktrees with spec and git state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		manager, err := newWorktreeManager(ctx)
		if err != nil {
			fail(err)
		}
		statuses, err := manager.Status(ctx)
		if err != nil {
			fail(err)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(statuses) == 0 {
			fmt.Println(gray("no live worktrees"))
			return
		}
		for _, s := range statuses {
			notes := ""
			if s.Merged {
				notes += color.GreenString(" (merged)")
			}
			if s.Dirty {
				notes += color.YellowString(" (uncommitted changes)")
			}
			if s.CheckedOut != "" && s.CheckedOut != s.Handle.Branch {
				notes += color.RedString(" (checked out %s)", s.CheckedOut)
			}
			fmt.Printf("%-40s %s  %s%s\n", s.Handle.SpecID, statusColor(s.SpecStatus), s.Handle.Branch, notes)
			fmt.Printf("    %s\n", gray(s.Handle.Path))
		}
	},
}

func init() {
	rootCmd.AddCommand(worktreeCmd)
	worktreeCmd.AddCommand(worktreeCreateCmd)
	worktreeCmd.AddCommand(worktreeMergeCmd)
	worktreeCmd.AddCommand(worktreeAbandonCmd)
	worktreeCmd.AddCommand(worktreeStatusCmd)
	worktreeCreateCmd.Flags().BoolVar(&worktreeForce, "force", false, "Create even when dependencies are unmet")
	worktreeAbandonCmd.Flags().BoolVar(&worktreeForce, "force", false, "Discard even with uncommitted changes")
}
