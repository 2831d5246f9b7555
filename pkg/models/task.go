package models

import "time"

// UnitStatus represents the current state of a task unit.
type UnitStatus string

const (
	// UnitStatusPending indicates the unit is waiting on dependencies.
	UnitStatusPending UnitStatus = "pending"
	// UnitStatusReady indicates all dependencies succeeded and the unit can be dispatched.
	UnitStatusReady UnitStatus = "ready"
	// UnitStatusRunning indicates the unit has been handed to a collaborator.
	UnitStatusRunning UnitStatus = "running"
	// UnitStatusSucceeded indicates the unit completed successfully.
	UnitStatusSucceeded UnitStatus = "succeeded"
	// UnitStatusFailedRetryable indicates a transient failure awaiting re-dispatch.
	UnitStatusFailedRetryable UnitStatus = "failed_retryable"
	// UnitStatusFailedFatal indicates a permanent failure; the unit will not run again.
	UnitStatusFailedFatal UnitStatus = "failed_fatal"
	// UnitStatusSkipped indicates an ancestor failed fatally and the unit was never dispatched.
	UnitStatusSkipped UnitStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusPending, UnitStatusReady, UnitStatusRunning, UnitStatusSucceeded,
		UnitStatusFailedRetryable, UnitStatusFailedFatal, UnitStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the unit will not change state again.
// FailedRetryable is not terminal: the retry coordinator re-queues it.
func (s UnitStatus) Terminal() bool {
	switch s {
	case UnitStatusSucceeded, UnitStatusFailedFatal, UnitStatusSkipped:
		return true
	default:
		return false
	}
}

// TaskUnit is one schedulable, independently retryable action within a session.
type TaskUnit struct {
	// ID is the unique identifier, derived from session id + sequence index.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id"`
	// Seq is the position assigned during decomposition.
	Seq int `json:"seq"`
	// Capability names the external collaborator that handles this unit.
	Capability Capability `json:"capability"`
	// Payload is the opaque instruction passed to the collaborator.
	Payload string `json:"payload"`
	// DependsOn lists unit IDs that must succeed before this unit runs.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the unit.
	Status UnitStatus `json:"status"`
	// Attempt is the number of dispatches so far.
	Attempt int `json:"attempt"`
	// Rank orders simultaneously-ready units; lower runs first.
	Rank int `json:"rank"`
	// Result holds the collaborator's success payload.
	Result string `json:"result,omitempty"`
	// Error holds the failure description if the unit failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the unit was generated by the decomposer.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the unit reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExecutionResult is one append-only execution log record.
// A unit produces one record per attempt; records are never mutated.
type ExecutionResult struct {
	SessionID  string        `json:"session_id"`
	UnitID     string        `json:"unit_id"`
	Capability Capability    `json:"capability"`
	Attempt    int           `json:"attempt"`
	Status     UnitStatus    `json:"status"`
	Result     string        `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}
