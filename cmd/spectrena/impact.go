package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/readiness"
)

var impactCmd = &cobra.Command{
	Use:   "impact <spec>",
	Short: "List every spec that transitively depends on the given spec",
	Long: `List the specs a change could ripple into: everything that
transitively depends on the given spec, directly or through
intermediates.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := readiness.New(store)
		impact, err := engine.Impact(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		if len(impact) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("nothing depends on " + args[0]))
			return
		}
		for _, id := range impact {
			fmt.Println(id)
		}
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain <spec>",
	Short: "List every spec the given spec transitively depends on",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		engine := readiness.New(store)
		chain, err := engine.Chain(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		if len(chain) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray(args[0] + " has no dependencies"))
			return
		}
		for _, id := range chain {
			fmt.Println(id)
		}
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(chainCmd)
}
