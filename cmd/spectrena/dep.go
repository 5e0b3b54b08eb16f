package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/graph"
	"github.com/spectrena/spectrena/internal/mermaid"
	"github.com/spectrena/spectrena/internal/readiness"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage dependency edges between specs",
}

var depAddCmd = &cobra.Command{
	Use:   "add <spec> <depends-on>",
	Short: "Record that one spec depends on another",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.AddEdge(ctx, args[0], args[1], actor()); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s %s --> %s\n", green("✓"), args[0], args[1])
	},
}

var depRmCmd = &cobra.Command{
	Use:     "rm <spec> <depends-on>",
	Aliases: []string{"remove"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := store.RemoveEdge(ctx, args[0], args[1], actor()); err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s removed %s --> %s\n", green("✓"), args[0], args[1])
	},
}

var depCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the diagram file for cycles, bad syntax, and unregistered specs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		text, err := os.ReadFile(cfg.DepsPath(repoRoot))
		if err != nil {
			fail(err)
		}

		doc, warnings := mermaid.ParseDocument(string(text))
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		problems := 0

		for _, w := range warnings {
			fmt.Printf("%s %s\n", yellow("warning:"), w)
			problems++
		}

		g := graph.New()
		for _, n := range doc.Nodes {
			g.AddNode(n.ID)
		}
		for _, e := range doc.Edges {
			if err := g.AddEdge(e.Dependent, e.Dependency); err != nil {
				fmt.Printf("%s line %d: %v\n", red("cycle:"), e.Line, err)
				problems++
			}
		}

		specs, err := store.ListSpecs(ctx)
		if err != nil {
			fail(err)
		}
		known := make(map[string]bool, len(specs))
		for _, spec := range specs {
			known[spec.ID] = true
		}
		for _, id := range g.Nodes() {
			if !known[id] {
				fmt.Printf("%s %s is not registered (run sync to create it)\n", yellow("dangling:"), id)
				problems++
			}
		}

		if problems == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s %d specs, %d edges, no problems\n", green("✓"), len(g.Nodes()), len(g.Edges()))
			return
		}
		os.Exit(1)
	},
}

var depShowCmd = &cobra.Command{
	Use:   "show <spec>",
	Short: "Show a spec's dependency tree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		engine := readiness.New(store)
		g, err := engine.Snapshot(ctx)
		if err != nil {
			fail(err)
		}
		if _, err := store.GetSpec(ctx, args[0]); err != nil {
			fail(err)
		}
		printDepTree(g, args[0], "", map[string]bool{})
	},
}

// printDepTree renders the dependency tree below id. Nodes already
// printed on the current path are cut off to keep output finite on
// diamonds.
func printDepTree(g *graph.Graph, id, indent string, seen map[string]bool) {
	status := g.Status(id)
	line := fmt.Sprintf("%s%s [%s]", indent, id, status)
	fmt.Println(line)

	if seen[id] {
		return
	}
	seen[id] = true
	for _, dep := range g.Dependencies(id) {
		printDepTree(g, dep, indent+"    ", seen)
	}
}

func init() {
	rootCmd.AddCommand(depCmd)
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRmCmd)
	depCmd.AddCommand(depCheckCmd)
	depCmd.AddCommand(depShowCmd)
}
