package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/types"
)

var taskMinutes int

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks under a spec's plan",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <spec> <title>",
	Short: "Add a task to a spec",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		id, err := store.AddTask(ctx, &types.Task{SpecID: args[0], Title: args[1]})
		if err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s task %d: %s\n", green("✓"), id, args[1])
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done",
	Long: `Mark a task done, optionally recording the minutes spent. When the
spec has a plan and this was its last open task, the spec itself is
promoted to complete.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail(fmt.Errorf("invalid task id %q", args[0]))
		}
		var minutes *int
		if cmd.Flags().Changed("minutes") {
			minutes = &taskMinutes
		}
		if err := store.CompleteTask(ctx, id, minutes, actor()); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s task %d done\n", green("✓"), id)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list <spec>",
	Short: "List a spec's tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		tasks, err := store.ListTasksForSpec(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		for _, task := range tasks {
			fmt.Println(formatTask(task))
		}
	},
}

func formatTask(task *types.Task) string {
	box := "[ ]"
	if task.Done {
		box = color.GreenString("[x]")
	}
	line := fmt.Sprintf("%s %d. %s", box, task.ID, task.Title)
	if task.ActualMinutes != nil {
		line += color.New(color.FgHiBlack).Sprintf(" (%d min)", *task.ActualMinutes)
	}
	return line
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskListCmd)
	taskDoneCmd.Flags().IntVar(&taskMinutes, "minutes", 0, "Minutes actually spent on the task")
}
