package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/types"
)

var specWeight string

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Register and inspect specs",
}

var specRegisterCmd = &cobra.Command{
	Use:   "register <id>",
	Short: "Register a new spec",
	Long: `Register a new spec. Identifiers follow <component>-<number>-<slug>,
e.g. auth-001-login. The component prefix is derived from the id.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		spec := &types.Spec{ID: args[0], Weight: types.Weight(specWeight)}
		if err := store.RegisterSpec(ctx, spec); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s registered %s (%s, %s)\n", green("✓"), spec.ID, spec.Component, spec.Weight)
	},
}

var specStatusCmd = &cobra.Command{
	Use:   "status <id> [new-status]",
	Short: "Show or change a spec's status",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if len(args) == 2 {
			status := types.Status(args[1])
			if err := store.UpdateSpecStatus(ctx, args[0], status, actor()); err != nil {
				fail(err)
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %s is now %s\n", green("✓"), args[0], status)
			return
		}

		spec, err := store.GetSpec(ctx, args[0])
		if err != nil {
			fail(err)
		}
		progress, err := store.SpecProgress(ctx, spec.ID)
		if err != nil {
			fail(err)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s  %s\n", cyan(spec.ID), statusColor(spec.Status))
		fmt.Printf("  component: %s\n", spec.Component)
		fmt.Printf("  weight:    %s\n", spec.Weight)
		if progress.HasPlan {
			fmt.Printf("  plan:      yes\n")
			fmt.Printf("  tasks:     %d/%d done", progress.DoneTasks, progress.TotalTasks)
			if progress.MinutesSpent > 0 {
				fmt.Printf(" (%d min)", progress.MinutesSpent)
			}
			fmt.Println()
		}
	},
}

var specListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered specs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		specs, err := store.ListSpecs(context.Background())
		if err != nil {
			fail(err)
		}
		for _, spec := range specs {
			fmt.Printf("%-40s %s\n", spec.ID, statusColor(spec.Status))
		}
	},
}

func statusColor(status types.Status) string {
	switch status {
	case types.StatusComplete:
		return color.GreenString(string(status))
	case types.StatusInProgress:
		return color.YellowString(string(status))
	default:
		return color.New(color.FgHiBlack).Sprint(string(status))
	}
}

func init() {
	rootCmd.AddCommand(specCmd)
	specCmd.AddCommand(specRegisterCmd)
	specCmd.AddCommand(specStatusCmd)
	specCmd.AddCommand(specListCmd)
	specRegisterCmd.Flags().StringVar(&specWeight, "weight", "standard", "Process weight: lightweight, standard, or formal")
}
