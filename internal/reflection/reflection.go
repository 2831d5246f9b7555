// Package reflection derives periodic performance summaries from the session
// store. Reports are read-only: reflection never mutates sessions or units.
package reflection

import (
	"fmt"
	"time"

	"maestro/internal/state"
	"maestro/pkg/models"
)

// Thresholds drive the suggestion rules. Zero values fall back to defaults.
type Thresholds struct {
	// MinSuccessRate below which error handling is flagged.
	MinSuccessRate float64
	// MaxRetryRate above which collaborator timeouts are flagged.
	MaxRetryRate float64
	// MaxMeanDuration above which session latency is flagged.
	MaxMeanDuration time.Duration
}

// DefaultThresholds returns the standard suggestion thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSuccessRate:  0.8,
		MaxRetryRate:    0.5,
		MaxMeanDuration: 30 * time.Second,
	}
}

// Engine computes reflection reports over a store window.
type Engine struct {
	store      state.Store
	thresholds Thresholds
	now        func() time.Time
}

// New creates a reflection engine with default thresholds.
func New(store state.Store) *Engine {
	return &Engine{store: store, thresholds: DefaultThresholds(), now: time.Now}
}

// NewWithThresholds creates a reflection engine with explicit thresholds.
func NewWithThresholds(store state.Store, t Thresholds) *Engine {
	return &Engine{store: store, thresholds: t, now: time.Now}
}

// Report computes a reflection report over sessions created within the window
// ending now. Only terminal sessions contribute to success and duration
// metrics; open sessions are counted but not judged.
func (e *Engine) Report(window time.Duration) (models.ReflectionReport, error) {
	end := e.now()
	start := end.Add(-window)

	sessions, err := e.store.ListSessionsSince(start)
	if err != nil {
		return models.ReflectionReport{}, fmt.Errorf("load sessions: %w", err)
	}
	results, err := e.store.ListExecutionResultsSince(start)
	if err != nil {
		return models.ReflectionReport{}, fmt.Errorf("load execution log: %w", err)
	}

	report := models.ReflectionReport{
		WindowStart:   start,
		WindowEnd:     end,
		TotalSessions: len(sessions),
		PerCapability: make(map[models.Capability]models.CapabilityMetrics),
		GeneratedAt:   end,
	}

	var totalDuration time.Duration
	var terminal int
	for i := range sessions {
		s := &sessions[i]
		if !s.Status.Terminal() {
			continue
		}
		terminal++
		totalDuration += s.Duration()
		if s.Outcome == models.OutcomeSuccess {
			report.SucceededSessions++
		}
	}
	if terminal > 0 {
		report.SuccessRate = float64(report.SucceededSessions) / float64(terminal)
		report.MeanDuration = totalDuration / time.Duration(terminal)
	}

	// One log record per attempt. A unit's retries are its records beyond
	// the first, so retries = records - distinct units.
	units := make(map[string]bool)
	capDurations := make(map[models.Capability]time.Duration)
	for _, r := range results {
		units[r.UnitID] = true

		m := report.PerCapability[r.Capability]
		m.Executions++
		if r.Status == models.UnitStatusSucceeded {
			m.Successes++
		}
		capDurations[r.Capability] += r.Duration
		report.PerCapability[r.Capability] = m
	}
	for cap, m := range report.PerCapability {
		if m.Executions > 0 {
			m.MeanDuration = capDurations[cap] / time.Duration(m.Executions)
			report.PerCapability[cap] = m
		}
	}

	report.TotalUnits = len(units)
	report.TotalRetries = len(results) - len(units)
	if report.TotalUnits > 0 {
		report.RetryRate = float64(report.TotalRetries) / float64(report.TotalUnits)
	}

	report.Suggestions = e.suggest(report)
	return report, nil
}

// suggest applies the threshold rules to a computed report.
func (e *Engine) suggest(r models.ReflectionReport) []string {
	var suggestions []string

	if r.TotalSessions > 0 && r.SuccessRate < e.thresholds.MinSuccessRate {
		suggestions = append(suggestions, fmt.Sprintf(
			"session success rate %.0f%% is below %.0f%%; review recent failure errors and strengthen collaborator error handling",
			r.SuccessRate*100, e.thresholds.MinSuccessRate*100))
	}
	if r.TotalUnits > 0 && r.RetryRate > e.thresholds.MaxRetryRate {
		suggestions = append(suggestions, fmt.Sprintf(
			"retry rate %.2f per unit exceeds %.2f; consider raising collaborator timeouts or checking availability",
			r.RetryRate, e.thresholds.MaxRetryRate))
	}
	if r.MeanDuration > e.thresholds.MaxMeanDuration && e.thresholds.MaxMeanDuration > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"mean session duration %s exceeds %s; consider raising the parallel execution limit",
			r.MeanDuration.Round(time.Millisecond), e.thresholds.MaxMeanDuration))
	}

	for _, cap := range models.Capabilities() {
		m, ok := r.PerCapability[cap]
		if !ok || m.Executions < 3 {
			continue
		}
		if m.SuccessRate() < e.thresholds.MinSuccessRate {
			suggestions = append(suggestions, fmt.Sprintf(
				"%s success rate %.0f%% is below %.0f%%; inspect that collaborator",
				cap, m.SuccessRate()*100, e.thresholds.MinSuccessRate*100))
		}
	}

	return suggestions
}
