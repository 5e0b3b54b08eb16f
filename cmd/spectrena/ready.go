package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/readiness"
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List specs whose dependencies are all complete",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		engine := readiness.New(store)
		ready, err := engine.Ready(context.Background())
		if err != nil {
			fail(err)
		}
		if len(ready) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no specs are ready"))
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		for _, id := range ready {
			fmt.Printf("%s %s\n", green("●"), id)
		}
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List blocked specs with their unmet dependencies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		engine := readiness.New(store)
		blocked, err := engine.Blocked(context.Background())
		if err != nil {
			fail(err)
		}
		if len(blocked) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("no specs are blocked"))
			return
		}

		ids := make([]string, 0, len(blocked))
		for id := range blocked {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, id := range ids {
			fmt.Printf("%s %s %s\n", red("■"), id, gray("waiting on "+strings.Join(blocked[id], ", ")))
		}
	},
}

func init() {
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)
}
