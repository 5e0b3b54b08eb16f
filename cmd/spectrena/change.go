package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/types"
)

var (
	changeTaskID int64
	changeSymbol string
	changeCommit string
)

var changeCmd = &cobra.Command{
	Use:   "change",
	Short: "Record and inspect code change lineage",
}

var changeRecordCmd = &cobra.Command{
	Use:   "record <spec> <file-path>",
	Short: "Record a code change against a spec",
	Long: `Record that a file (and optionally a symbol within it) was modified
for a spec. Records are append-only and link the spec, and optionally
a task and commit, to the touched location.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		change := &types.CodeChange{
			SpecID:    args[0],
			FilePath:  args[1],
			Symbol:    changeSymbol,
			CommitSHA: changeCommit,
		}
		if cmd.Flags().Changed("task") {
			change.TaskID = &changeTaskID
		}
		if err := store.AppendCodeChange(ctx, change); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s recorded %s for %s\n", green("✓"), args[1], args[0])
	},
}

var changeListCmd = &cobra.Command{
	Use:   "list <spec>",
	Short: "List a spec's code change records",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		changes, err := store.ListCodeChanges(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, change := range changes {
			line := change.FilePath
			if change.Symbol != "" {
				line += ":" + change.Symbol
			}
			if change.CommitSHA != "" {
				line += " " + gray(change.CommitSHA)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(changeCmd)
	changeCmd.AddCommand(changeRecordCmd)
	changeCmd.AddCommand(changeListCmd)
	changeRecordCmd.Flags().Int64Var(&changeTaskID, "task", 0, "Task this change belongs to")
	changeRecordCmd.Flags().StringVar(&changeSymbol, "symbol", "", "Symbol modified within the file")
	changeRecordCmd.Flags().StringVar(&changeCommit, "commit", "", "Commit SHA carrying the change")
}
