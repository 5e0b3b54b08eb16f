package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	depsync "github.com/spectrena/spectrena/internal/sync"
)

var (
	syncPrune  bool
	syncToFile bool
	syncWatch  bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the diagram file with the lineage store",
	Long: `Reconcile deps.mermaid with the lineage store.

By default the file is folded into the store: unknown identifiers are
registered as not_started stubs, file-only edges are inserted, and
store-only edges are reported (deleted with --prune). Edges that would
close a cycle are rejected and reported. Spec status never moves in
either direction through sync.

With --to-file the direction reverses: the store's specs and edges are
rendered deterministically over the file.

With --watch the file is re-synced on every change until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		engine := depsync.New(store, cfg.DepsPath(repoRoot))

		if syncToFile {
			if _, err := engine.StoreToFile(ctx); err != nil {
				fail(err)
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s wrote %s\n", green("✓"), cfg.DepsFile)
			return
		}

		opts := depsync.Options{Prune: syncPrune, Actor: actor()}
		if syncWatch {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("%s watching %s\n", gray("→"), cfg.DepsFile)
			err := engine.Watch(ctx, opts, func(report *depsync.Report, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
					return
				}
				printSyncReport(report)
			})
			if err != nil {
				fail(err)
			}
			return
		}

		report, err := engine.FileToStore(ctx, opts)
		if err != nil {
			fail(err)
		}
		printSyncReport(report)
	},
}

func printSyncReport(report *depsync.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, id := range report.StubsRegistered {
		fmt.Printf("%s registered %s\n", green("+"), id)
	}
	for _, e := range report.EdgesAdded {
		fmt.Printf("%s %s --> %s\n", green("+"), e.SpecID, e.DependsOnID)
	}
	for _, e := range report.EdgesRemoved {
		fmt.Printf("%s %s --> %s\n", red("-"), e.SpecID, e.DependsOnID)
	}
	for _, e := range report.StoreOnly {
		fmt.Printf("%s store-only edge %s --> %s (use --prune to remove)\n", yellow("!"), e.SpecID, e.DependsOnID)
	}
	for _, w := range report.Warnings {
		fmt.Printf("%s %s\n", yellow("!"), w)
	}
	for _, c := range report.CycleRejections {
		fmt.Printf("%s %s\n", red("✗"), c)
	}
	if report.IsClean() {
		fmt.Printf("%s in sync\n", green("✓"))
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncPrune, "prune", false, "Delete store edges missing from the file")
	syncCmd.Flags().BoolVar(&syncToFile, "to-file", false, "Render the store over the diagram file")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Re-sync on every file change")
}
