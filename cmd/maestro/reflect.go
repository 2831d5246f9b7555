package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"maestro/internal/config"
	"maestro/internal/notify"
	"maestro/internal/reflection"
)

var reflectWindow time.Duration

var reflectCmd = &cobra.Command{
	Use:   "reflect",
	Short: "Summarize recent session performance",
	Long: `Reflect computes success rates, durations, and retry rates over the
sessions in the window and prints threshold-based improvement suggestions.`,
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

		report, err := reflection.New(db).Report(reflectWindow)
		if err != nil {
			return fmt.Errorf("compute report: %w", err)
		}
		return notify.NewConsoleNotifier().NotifyReflection(cmd.Context(), notify.ReflectionNotification{Report: report})
	},
}

func init() {
	reflectCmd.Flags().DurationVar(&reflectWindow, "window", 24*time.Hour, "Window of sessions to reflect over")
}
