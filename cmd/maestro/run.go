package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"maestro/internal/capability"
	"maestro/internal/config"
	"maestro/internal/engine"
	"maestro/internal/notify"
	"maestro/internal/reflection"
	"maestro/internal/router"
	"maestro/internal/state"
	"maestro/pkg/models"
)

var (
	runSource    string
	runMessageID string
	runDebugLog  string
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Process one assistant request end to end",
	Long: `Run classifies the request, decomposes it into task units, executes
them with bounded concurrency, and prints the aggregated outcome.

With ANTHROPIC_API_KEY set, classification uses Claude; otherwise a
deterministic keyword classifier is used.`,
	Args: cobra.MinimumNArgs(1),
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

		classifier, err := buildClassifier(cfg)
		if err != nil {
			return err
		}

		logger := engine.NopLogger()
		if runDebugLog != "" {
			logger, err = engine.NewDebugLogger(runDebugLog)
			if err != nil {
				return fmt.Errorf("open debug log: %w", err)
			}
			defer logger.Close()
		}

		eng := engine.New(cfg, classifier, localRegistry(),
			engine.WithStore(db),
			engine.WithNotifier(notify.NewConsoleNotifier()),
			engine.WithReflector(reflection.New(db)),
			engine.WithLogger(logger),
		)

		sess, err := eng.Process(cmd.Context(), engine.Request{
			Source:    runSource,
			MessageID: runMessageID,
			Text:      strings.Join(args, " "),
		})
		if errors.Is(err, engine.ErrSourceBlocked) || errors.Is(err, engine.ErrDuplicateMessage) {
			fmt.Fprintf(os.Stderr, "request dropped: %v\n", err)
			return nil
		}
		if err != nil {
			if sess != nil {
				fmt.Fprintf(os.Stderr, "session %s failed: %v\n", sess.ID, err)
				return nil
			}
			return err
		}

		fmt.Printf("session %s: %s (%s)\n", sess.ID, sess.Outcome, sess.Duration().Round(time.Millisecond))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "cli", "Source identifier for the request")
	runCmd.Flags().StringVar(&runMessageID, "message-id", "", "External message ID for duplicate suppression")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write engine debug output to this file")
}

// openStore opens and migrates the session store at the configured path.
func openStore(cfg *config.Config) (*state.DB, error) {
	path := cfg.Store.Path
	if path == "" {
		path = config.DefaultStorePath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return db, nil
}

// buildClassifier selects the Claude classifier when an API key is configured
// and falls back to the keyword classifier otherwise.
func buildClassifier(cfg *config.Config) (router.Classifier, error) {
	if cfg.Anthropic.APIKey != "" {
		return router.NewClaudeClassifier(cfg.Anthropic.APIKey, "")
	}
	return router.NewKeywordClassifier(), nil
}

// localRegistry wires the built-in local collaborators. Notion appends to a
// local notes file; the others acknowledge the action. Real deployments swap
// these for API-backed executors.
func localRegistry() *capability.Registry {
	reg := capability.NewRegistry()

	reg.Register(models.CapabilityNotion, capability.Func(func(_ context.Context, payload string) (string, error) {
		return appendNote(payload)
	}))
	reg.Register(models.CapabilityCalendar, capability.Func(func(_ context.Context, payload string) (string, error) {
		return "calendar event recorded: " + payload, nil
	}))
	reg.Register(models.CapabilityGmail, capability.Func(func(_ context.Context, payload string) (string, error) {
		return "mail queued: " + payload, nil
	}))
	reg.Register(models.CapabilityLink, capability.Func(func(_ context.Context, payload string) (string, error) {
		return "link captured: " + payload, nil
	}))

	return reg
}

// appendNote appends a timestamped note to the local notes file.
func appendNote(payload string) (string, error) {
	path := filepath.Join(filepath.Dir(config.DefaultStorePath()), "notes.md")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", capability.NewError(capability.KindInternal, "create notes directory: %v", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", capability.NewError(capability.KindUnavailable, "open notes file: %v", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "- %s %s\n", time.Now().Format("2006-01-02 15:04"), payload); err != nil {
		return "", capability.NewError(capability.KindInternal, "write note: %v", err)
	}
	return "note saved to " + path, nil
}
