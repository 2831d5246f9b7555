// Package engine runs sessions end to end: intent routing, decomposition,
// concurrency-limited graph execution with retries, aggregation, reflection,
// and notification.
package engine

import (
	"time"

	"maestro/pkg/models"
)

// EventType represents the type of engine event.
type EventType string

const (
	// EventSessionReceived indicates a raw request was accepted.
	EventSessionReceived EventType = "session_received"
	// EventIntentAnalyzed indicates classification completed.
	EventIntentAnalyzed EventType = "intent_analyzed"
	// EventUnitDispatched indicates a unit was handed to a collaborator.
	EventUnitDispatched EventType = "unit_dispatched"
	// EventUnitSucceeded indicates a unit attempt succeeded.
	EventUnitSucceeded EventType = "unit_succeeded"
	// EventUnitRetrying indicates a transient failure scheduled for re-dispatch.
	EventUnitRetrying EventType = "unit_retrying"
	// EventUnitFailed indicates a unit failed permanently.
	EventUnitFailed EventType = "unit_failed"
	// EventUnitSkipped indicates a unit was skipped after an ancestor's failure.
	EventUnitSkipped EventType = "unit_skipped"
	// EventSessionDone indicates the session reached a terminal state.
	EventSessionDone EventType = "session_done"
)

// Event is one observable engine occurrence. Events are advisory: dropping
// them never affects session state.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SessionID is the owning session.
	SessionID string
	// UnitID is the related task unit, if applicable.
	UnitID string
	// Capability is the related collaborator category, if applicable.
	Capability models.Capability
	// Attempt is the dispatch count for unit events.
	Attempt int
	// Message provides additional context.
	Message string
	// Err carries failure details for failure events.
	Err error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
