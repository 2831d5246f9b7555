// Package notify delivers session outcomes and reflection reports to a sink.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"maestro/pkg/models"
)

// OutcomeNotification carries one finished session's aggregated result.
type OutcomeNotification struct {
	SessionID   string
	Outcome     models.SessionOutcome
	Summary     string
	CompletedAt time.Time
}

// ReflectionNotification carries a reflection report.
type ReflectionNotification struct {
	Report models.ReflectionReport
}

// Notifier is the outbound delivery interface. Delivery failures are reported
// but never retried: a lost notification does not change session state.
type Notifier interface {
	NotifyOutcome(ctx context.Context, n OutcomeNotification) error
	NotifyReflection(ctx context.Context, n ReflectionNotification) error
}

// ConsoleNotifier writes notifications to a terminal writer.
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier creates a notifier writing to stdout.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{out: os.Stdout}
}

// NewConsoleNotifierTo creates a notifier writing to the given writer.
func NewConsoleNotifierTo(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: w}
}

var (
	successColor = color.New(color.FgGreen, color.Bold)
	partialColor = color.New(color.FgYellow, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgCyan, color.Bold)
)

func outcomeColor(o models.SessionOutcome) *color.Color {
	switch o {
	case models.OutcomeSuccess:
		return successColor
	case models.OutcomePartial:
		return partialColor
	default:
		return failureColor
	}
}

// NotifyOutcome implements Notifier.
func (c *ConsoleNotifier) NotifyOutcome(_ context.Context, n OutcomeNotification) error {
	label := outcomeColor(n.Outcome).Sprint(string(n.Outcome))
	fmt.Fprintf(c.out, "session %s finished: %s\n", n.SessionID, label)
	if n.Summary != "" {
		fmt.Fprintln(c.out, n.Summary)
	}
	return nil
}

// NotifyReflection implements Notifier.
func (c *ConsoleNotifier) NotifyReflection(_ context.Context, n ReflectionNotification) error {
	r := n.Report
	headerColor.Fprintf(c.out, "reflection %s — %s\n",
		r.WindowStart.Format("2006-01-02 15:04"), r.WindowEnd.Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  sessions: %d (%.0f%% success), mean duration %s\n",
		r.TotalSessions, r.SuccessRate*100, r.MeanDuration.Round(time.Millisecond))
	fmt.Fprintf(c.out, "  units: %d, retries: %d (%.2f per unit)\n",
		r.TotalUnits, r.TotalRetries, r.RetryRate)
	for _, cap := range models.Capabilities() {
		m, ok := r.PerCapability[cap]
		if !ok {
			continue
		}
		fmt.Fprintf(c.out, "  %-8s %d runs, %.0f%% success, mean %s\n",
			cap, m.Executions, m.SuccessRate()*100, m.MeanDuration.Round(time.Millisecond))
	}
	for _, s := range r.Suggestions {
		fmt.Fprintf(c.out, "  suggestion: %s\n", s)
	}
	return nil
}

// ChannelNotifier buffers notifications on channels. Used in tests to assert
// on delivery without parsing terminal output.
type ChannelNotifier struct {
	Outcomes    chan OutcomeNotification
	Reflections chan ReflectionNotification
}

// NewChannelNotifier creates a channel notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{
		Outcomes:    make(chan OutcomeNotification, buffer),
		Reflections: make(chan ReflectionNotification, buffer),
	}
}

// NotifyOutcome implements Notifier. A full buffer drops the notification.
func (c *ChannelNotifier) NotifyOutcome(_ context.Context, n OutcomeNotification) error {
	select {
	case c.Outcomes <- n:
		return nil
	default:
		return fmt.Errorf("outcome buffer full")
	}
}

// NotifyReflection implements Notifier.
func (c *ChannelNotifier) NotifyReflection(_ context.Context, n ReflectionNotification) error {
	select {
	case c.Reflections <- n:
		return nil
	default:
		return fmt.Errorf("reflection buffer full")
	}
}
