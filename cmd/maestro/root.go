package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "maestro",
	Short: "Assistant request orchestration engine",
	Long: `Maestro turns a natural-language assistant request into a dependency
graph of task units and executes it with bounded concurrency.

A request is classified into capabilities (notion, calendar, gmail, link),
decomposed into units with inferred ordering, scheduled with retries for
transient failures, aggregated into a single outcome, and persisted for
reflection over past performance.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
