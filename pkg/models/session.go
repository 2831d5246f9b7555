package models

import "time"

// SessionStatus represents a session's position in its lifecycle state machine.
type SessionStatus string

const (
	// SessionReceived indicates the raw request has been accepted.
	SessionReceived SessionStatus = "received"
	// SessionIntentAnalyzed indicates classification completed.
	SessionIntentAnalyzed SessionStatus = "intent_analyzed"
	// SessionDecomposed indicates a compound intent was expanded into a graph.
	SessionDecomposed SessionStatus = "decomposed"
	// SessionExecuting indicates the scheduler is running the graph.
	SessionExecuting SessionStatus = "executing"
	// SessionAggregating indicates unit outcomes are being merged.
	SessionAggregating SessionStatus = "aggregating"
	// SessionReflected indicates the reflection pass has run.
	SessionReflected SessionStatus = "reflected"
	// SessionNotified indicates the outcome was delivered to the notifier.
	SessionNotified SessionStatus = "notified"
	// SessionDone is the normal terminal state.
	SessionDone SessionStatus = "done"
	// SessionFailed is the terminal state for classification or cycle errors.
	SessionFailed SessionStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionReceived, SessionIntentAnalyzed, SessionDecomposed, SessionExecuting,
		SessionAggregating, SessionReflected, SessionNotified, SessionDone, SessionFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the session will not change state again.
func (s SessionStatus) Terminal() bool {
	return s == SessionDone || s == SessionFailed
}

// SessionOutcome is the aggregated result of a session's units.
type SessionOutcome string

const (
	// OutcomeSuccess means every unit succeeded.
	OutcomeSuccess SessionOutcome = "success"
	// OutcomePartial means at least one unit succeeded and at least one did not.
	OutcomePartial SessionOutcome = "partial"
	// OutcomeFailure means no unit succeeded.
	OutcomeFailure SessionOutcome = "failure"
)

// Session identifies one end-to-end processing lifecycle for a single request.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// RawInput is the original natural-language request.
	RawInput string `json:"raw_input"`
	// Source identifies where the request came from (channel, user, hook).
	Source string `json:"source,omitempty"`
	// MessageID is the external message identifier, used for duplicate suppression.
	MessageID string `json:"message_id,omitempty"`
	// Status is the session's lifecycle state.
	Status SessionStatus `json:"status"`
	// Outcome is the aggregated result once the session reaches AGGREGATING.
	Outcome SessionOutcome `json:"outcome,omitempty"`
	// Summary is the human-readable per-unit outcome listing, in graph order.
	Summary string `json:"summary,omitempty"`
	// UnitIDs lists the session's task units in decomposition order.
	UnitIDs []string `json:"unit_ids,omitempty"`
	// CreatedAt is when the request was received.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the session reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the session's wall-clock duration, or zero if still open.
func (s *Session) Duration() time.Duration {
	if s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(s.CreatedAt)
}

// CapabilityMetrics summarizes execution log records for one capability.
type CapabilityMetrics struct {
	// Executions is the total number of attempts recorded.
	Executions int `json:"executions"`
	// Successes is the number of attempts that succeeded.
	Successes int `json:"successes"`
	// MeanDuration is the mean attempt duration.
	MeanDuration time.Duration `json:"mean_duration"`
}

// SuccessRate returns successes over executions, or zero when empty.
func (m CapabilityMetrics) SuccessRate() float64 {
	if m.Executions == 0 {
		return 0
	}
	return float64(m.Successes) / float64(m.Executions)
}

// ReflectionReport is a derived, read-only summary over a window of sessions.
type ReflectionReport struct {
	// WindowStart and WindowEnd bound the sessions considered.
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	// TotalSessions is the number of sessions in the window.
	TotalSessions int `json:"total_sessions"`
	// SucceededSessions is the number with OutcomeSuccess.
	SucceededSessions int `json:"succeeded_sessions"`
	// SuccessRate is SucceededSessions / TotalSessions.
	SuccessRate float64 `json:"success_rate"`
	// MeanDuration is the mean time from session creation to terminal state.
	MeanDuration time.Duration `json:"mean_duration"`
	// TotalUnits is the number of task units across the window.
	TotalUnits int `json:"total_units"`
	// TotalRetries counts attempts beyond each unit's first.
	TotalRetries int `json:"total_retries"`
	// RetryRate is TotalRetries / TotalUnits.
	RetryRate float64 `json:"retry_rate"`
	// PerCapability breaks execution metrics down by collaborator.
	PerCapability map[Capability]CapabilityMetrics `json:"per_capability,omitempty"`
	// Suggestions holds threshold-rule improvement suggestions.
	Suggestions []string `json:"suggestions,omitempty"`
	// GeneratedAt is when the report was computed.
	GeneratedAt time.Time `json:"generated_at"`
}
