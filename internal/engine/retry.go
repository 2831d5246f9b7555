package engine

import (
	"math/rand"
	"time"

	"maestro/internal/capability"
)

// RetryDecision is the coordinator's verdict on a failed attempt.
type RetryDecision string

const (
	// DecisionRetry re-queues the unit after a backoff delay.
	DecisionRetry RetryDecision = "retry"
	// DecisionFatal marks the unit failed permanently.
	DecisionFatal RetryDecision = "fatal"
)

// RetryCoordinator decides whether a failed unit runs again and how long
// to wait before it does.
type RetryCoordinator struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
	// jitter produces a random fraction in [0, 1). Replaced in tests.
	jitter func() float64
}

// NewRetryCoordinator creates a coordinator with the given attempt cap and
// backoff bounds.
func NewRetryCoordinator(maxAttempts int, base, max time.Duration) *RetryCoordinator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	return &RetryCoordinator{
		maxAttempts: maxAttempts,
		base:        base,
		max:         max,
		jitter:      rand.Float64,
	}
}

// MaxAttempts returns the dispatch cap per unit.
func (r *RetryCoordinator) MaxAttempts() int {
	return r.maxAttempts
}

// Decide classifies a failure after the given attempt number (1-based).
// Permanent error kinds and exhausted attempts are fatal; transient kinds
// with attempts remaining are retried.
func (r *RetryCoordinator) Decide(kind capability.ErrorKind, attempt int) RetryDecision {
	if !kind.Retryable() {
		return DecisionFatal
	}
	if attempt >= r.maxAttempts {
		return DecisionFatal
	}
	return DecisionRetry
}

// Backoff returns the delay before re-dispatching after the given attempt.
// The delay doubles per attempt from the base, is capped at the max, and
// carries up to 25% random jitter so parked units don't re-queue in lockstep.
func (r *RetryCoordinator) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := r.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.max {
			delay = r.max
			break
		}
	}
	if delay > r.max {
		delay = r.max
	}

	jitter := time.Duration(float64(delay) * 0.25 * r.jitter())
	return delay + jitter
}
