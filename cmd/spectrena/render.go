package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/mermaid"
	"github.com/spectrena/spectrena/internal/readiness"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the store's dependency graph in diagram form",
	Long: `Print the store's specs and edges as deterministic diagram text.
The same render backs sync --to-file; this command only prints.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		engine := readiness.New(store)
		g, err := engine.Snapshot(context.Background())
		if err != nil {
			fail(err)
		}
		fmt.Print(mermaid.Render(g))
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
