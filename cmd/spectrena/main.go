// Command spectrena tracks spec dependencies, worktrees, and lineage
// for a repository. The dependency diagram (deps.mermaid) is the
// human editing surface; the SQLite lineage store is the authority.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectrena/spectrena/internal/config"
	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/storage/sqlite"
)

var (
	cfg      *config.Config
	store    storage.Storage
	repoRoot string
)

var rootCmd = &cobra.Command{
	Use:   "spectrena",
	Short: "Dependency-aware spec lifecycle and lineage tracking",
	Long: `spectrena coordinates concurrently-developed specs: a dependency
graph with cycle detection and readiness queries, per-spec git
worktrees, and a lineage store tracing spec -> plan -> task -> change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "help", "completion", "version":
			return nil
		}
		return openStore()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

// openStore loads configuration and opens the lineage store for the
// working directory.
func openStore() error {
	var err error
	if repoRoot == "" {
		repoRoot, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
	}
	cfg, err = config.Load(repoRoot)
	if err != nil {
		return err
	}
	store, err = sqlite.New(cfg.StorePath(repoRoot))
	return err
}

// actor identifies the operator on audit events.
func actor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "spectrena"
}

// fail prints an error and exits. Commands use it for operational
// failures after flag parsing succeeded.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&repoRoot, "root", "C", "", "Repository root (default: current directory)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
