package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/config"
	"github.com/spectrena/spectrena/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize spec tracking in the current directory",
	Long: `Initialize spec tracking by writing .spectrena.yaml with defaults,
creating the .spectrena/ store directory, and seeding an empty
deps.mermaid diagram.

Example:
  cd ~/myproject
  spectrena init`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		root := repoRoot
		if root == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fail(fmt.Errorf("failed to get working directory: %w", err))
			}
			root = cwd
		}

		cfg, err := config.Init(root)
		if err != nil {
			fail(err)
		}

		// Open once so the schema exists before the first command.
		s, err := sqlite.New(cfg.StorePath(root))
		if err != nil {
			fail(fmt.Errorf("failed to initialize store: %w", err))
		}
		_ = s.Close()

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized spec tracking\n\n", green("✓"))
		fmt.Printf("  Config:   %s\n", cyan(config.FileName))
		fmt.Printf("  Diagram:  %s\n", cyan(cfg.DepsFile))
		fmt.Printf("  Store:    %s\n", cyan(cfg.DatabasePath))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("edit deps.mermaid, then: spectrena sync"))
		fmt.Printf("  %s\n", gray("spectrena ready"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
