package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage spec plans",
}

var planSetCmd = &cobra.Command{
	Use:   "set <spec> <summary>",
	Short: "Create or replace a spec's plan",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		plan := &types.Plan{SpecID: args[0], Summary: args[1]}
		if err := store.PutPlan(ctx, plan); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s plan set for %s\n", green("✓"), args[0])
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <spec>",
	Short: "Show a spec's plan and tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		plan, err := store.GetPlan(ctx, args[0])
		if err != nil {
			fail(err)
		}
		tasks, err := store.ListTasksForSpec(ctx, args[0])
		if err != nil {
			fail(err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s\n  %s\n", cyan(plan.SpecID), plan.Summary)
		for _, task := range tasks {
			fmt.Printf("  %s\n", formatTask(task))
		}
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.AddCommand(planSetCmd)
	planCmd.AddCommand(planShowCmd)
}
