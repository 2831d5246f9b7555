package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"maestro/internal/config"
	"maestro/internal/state"
	"maestro/pkg/models"
)

var sessionsSince time.Duration

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List recent sessions or show one session's units",
	Args:  cobra.MaximumNArgs(1),
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

		if len(args) == 1 {
			return showSession(db, args[0])
		}

		sessions, err := db.ListSessionsSince(time.Now().Add(-sessionsSince))
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions in window")
			return nil
		}

		for _, s := range sessions {
			fmt.Printf("%s  %-10s %-8s %-19s %s\n",
				s.ID, s.Status, colorOutcome(s.Outcome),
				s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(s.RawInput, 60))
		}
		return nil
	},
}

func init() {
	sessionsCmd.Flags().DurationVar(&sessionsSince, "since", 24*time.Hour, "Window to list sessions from")
}

// showSession prints one session with its units and execution log.
func showSession(db *state.DB, id string) error {
	s, err := db.GetSession(id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if s == nil {
		fmt.Fprintf(os.Stderr, "session %s not found\n", id)
		return nil
	}

	fmt.Printf("session %s (%s, %s)\n", s.ID, s.Status, colorOutcome(s.Outcome))
	fmt.Printf("  input: %s\n", s.RawInput)
	if s.Source != "" {
		fmt.Printf("  source: %s\n", s.Source)
	}
	if s.Summary != "" {
		fmt.Printf("  summary:\n")
		fmt.Println(indent(s.Summary, "    "))
	}

	units, err := db.ListTaskUnits(id)
	if err != nil {
		return fmt.Errorf("list units: %w", err)
	}
	if len(units) > 0 {
		fmt.Println("  units:")
		for _, u := range units {
			fmt.Printf("    %s %-8s %-16s attempt=%d deps=%v\n", u.ID, u.Capability, u.Status, u.Attempt, u.DependsOn)
		}
	}

	results, err := db.ListExecutionResults(id)
	if err != nil {
		return fmt.Errorf("list execution log: %w", err)
	}
	if len(results) > 0 {
		fmt.Println("  execution log:")
		for _, r := range results {
			line := fmt.Sprintf("    %s attempt %d: %s (%s)", r.UnitID, r.Attempt, r.Status, r.Duration.Round(time.Millisecond))
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Println(line)
		}
	}
	return nil
}

func colorOutcome(o models.SessionOutcome) string {
	switch o {
	case models.OutcomeSuccess:
		return color.GreenString(string(o))
	case models.OutcomePartial:
		return color.YellowString(string(o))
	case models.OutcomeFailure:
		return color.RedString(string(o))
	default:
		return "-"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func indent(s, prefix string) string {
	out := prefix
	for _, r := range s {
		out += string(r)
		if r == '\n' {
			out += prefix
		}
	}
	return out
}
