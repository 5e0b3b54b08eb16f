package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store-wide counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := store.Statistics(context.Background())
		if err != nil {
			fail(err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("specs:            %s (%d complete, %d in progress)\n",
			cyan(stats.TotalSpecs), stats.CompleteSpecs, stats.InProgressSpecs)
		fmt.Printf("dependency edges: %s\n", cyan(stats.TotalEdges))
		fmt.Printf("tasks:            %s (%d done)\n", cyan(stats.TotalTasks), stats.DoneTasks)
		fmt.Printf("live worktrees:   %s\n", cyan(stats.ActiveWorktrees))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
