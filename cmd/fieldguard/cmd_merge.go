package main

import (
	"fmt"

	"github.com/fieldguard/fieldguard/internal/overrides"
	"github.com/spf13/cobra"
)

var mergeOverridesFile string

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge a developer override file into the pattern store",
	Long: `Merge a developer override file (manual_blacklist and
manual_whitelist) into the pattern store.

The merge is a union: repeated merges of the same file change nothing.
A whitelisted field always wins over a blacklisted one. The pattern
store is backed up before writing and the override file is deleted
after a successful merge.`,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOverridesFile, "file", "f", "", "Override file to merge (default from config)")
}

func runMerge(cmd *cobra.Command, args []string) error {
	overridesFile := cfg.Analysis.OverridesFile
	if mergeOverridesFile != "" {
		overridesFile = mergeOverridesFile
	}

	merged, err := overrides.Consume(overridesFile, cfg.Analysis.PatternsFile, log)
	if err != nil {
		return err
	}

	if !merged {
		fmt.Printf("Nothing to merge: %s is absent or empty.\n", overridesFile)
		return nil
	}

	fmt.Printf("Merged %s into %s.\n", overridesFile, cfg.Analysis.PatternsFile)
	return nil
}
