package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Report the store's schema version",
	Long: `Report the lineage store's schema version. Migrations are forward-only
and apply automatically when the store is opened; this command exists
to confirm what version a store file is at.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version, err := store.SchemaVersion(context.Background())
		if err != nil {
			fail(err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s schema version %d\n", green("✓"), version)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
