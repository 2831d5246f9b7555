package engine

import (
	"testing"
	"time"

	"maestro/internal/capability"
)

func TestDecideRetryableWithAttemptsLeft(t *testing.T) {
	r := NewRetryCoordinator(3, time.Millisecond, time.Second)

	if got := r.Decide(capability.KindTimeout, 1); got != DecisionRetry {
		t.Errorf("timeout on attempt 1 should retry, got %s", got)
	}
	if got := r.Decide(capability.KindUnavailable, 2); got != DecisionRetry {
		t.Errorf("unavailable on attempt 2 should retry, got %s", got)
	}
}

func TestDecideExhaustedAttempts(t *testing.T) {
	r := NewRetryCoordinator(3, time.Millisecond, time.Second)

	if got := r.Decide(capability.KindTimeout, 3); got != DecisionFatal {
		t.Errorf("timeout on final attempt should be fatal, got %s", got)
	}
}

func TestDecidePermanentKinds(t *testing.T) {
	r := NewRetryCoordinator(3, time.Millisecond, time.Second)

	for _, kind := range []capability.ErrorKind{
		capability.KindInvalidPayload,
		capability.KindPermissionDenied,
		capability.KindInternal,
	} {
		if got := r.Decide(kind, 1); got != DecisionFatal {
			t.Errorf("%s should be fatal on first attempt, got %s", kind, got)
		}
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	r := NewRetryCoordinator(10, 100*time.Millisecond, 400*time.Millisecond)
	r.jitter = func() float64 { return 0 }

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 400 * time.Millisecond},
		{8, 400 * time.Millisecond},
	}
	for _, c := range cases {
		if got := r.Backoff(c.attempt); got != c.want {
			t.Errorf("attempt %d: expected %s, got %s", c.attempt, c.want, got)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	r := NewRetryCoordinator(3, 100*time.Millisecond, time.Second)

	for i := 0; i < 50; i++ {
		d := r.Backoff(1)
		if d < 100*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("backoff %s outside jitter bounds", d)
		}
	}
}

func TestCoordinatorDefaults(t *testing.T) {
	r := NewRetryCoordinator(0, 0, 0)
	if r.MaxAttempts() != 1 {
		t.Errorf("expected floor of 1 attempt, got %d", r.MaxAttempts())
	}
	if r.Backoff(1) <= 0 {
		t.Error("expected positive default backoff")
	}
}
