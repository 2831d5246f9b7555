package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"maestro/internal/config"
)

var purgeOlderThan time.Duration

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old sessions from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		count, err := db.PurgeOldSessions(purgeOlderThan)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Printf("deleted %d session(s) older than %s\n", count, purgeOlderThan)
		return nil
	},
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 30*24*time.Hour, "Delete sessions older than this")
}
