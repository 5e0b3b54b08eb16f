package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log <spec>",
	Short: "Show a spec's audit trail",
	Long: `Show a spec's audit trail, newest first: status changes, edge
changes, and worktree events, with the actor and whether a readiness
override was forced.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		events, err := store.ListAuditEvents(context.Background(), args[0], logLimit)
		if err != nil {
			fail(err)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		for _, event := range events {
			forced := ""
			if event.Forced {
				forced = red(" [forced]")
			}
			fmt.Printf("%s  %-18s %s%s %s\n",
				event.CreatedAt.Format("2006-01-02 15:04"),
				event.Kind, event.Detail, forced, gray("("+event.Actor+")"))
		}
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVar(&logLimit, "limit", 50, "Maximum events to show")
}
