package engine

import (
	"context"
	"time"

	"maestro/internal/capability"
	"maestro/internal/graph"
	"maestro/pkg/models"
)

// completion is one finished dispatch reported back to the run loop.
type completion struct {
	unitID     string
	result     string
	err        error
	startedAt  time.Time
	finishedAt time.Time
}

// runGraph executes the session's graph until every unit settles. It is the
// only goroutine that mutates unit statuses; dispatched work reports back on
// the completion channel and retry timers on the requeue channel.
func (e *Engine) runGraph(ctx context.Context, sess *models.Session, g *graph.TaskGraph) error {
	scheduler := NewScheduler(g, e.parallelLimit)
	completionCh := make(chan completion, e.parallelLimit)
	requeueCh := make(chan string, g.Size())

	inflight := 0
	pendingRetries := 0

	for {
		for _, u := range scheduler.Schedule() {
			e.dispatch(ctx, sess, u, scheduler, completionCh)
			inflight++
		}

		if inflight == 0 && pendingRetries == 0 {
			if !g.Settled() {
				// Nothing running, nothing parked, graph not settled: the
				// remaining units can never become ready. Settle them so
				// aggregation sees a consistent graph.
				e.settleStranded(sess, g)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			e.cancelRemaining(sess, g)
			return ctx.Err()

		case c := <-completionCh:
			inflight--
			scheduler.OnUnitComplete(c.unitID)
			if e.handleCompletion(ctx, sess, g, c, requeueCh) {
				pendingRetries++
			}

		case unitID := <-requeueCh:
			pendingRetries--
			u := g.Unit(unitID)
			if u != nil && u.Status == models.UnitStatusFailedRetryable {
				u.Status = models.UnitStatusPending
				e.persistUnit(u)
				debugLog("[runloop] unit %s re-queued for attempt %d", unitID, u.Attempt+1)
			}
		}
	}
}

// dispatch hands a unit to its collaborator in a fresh goroutine.
func (e *Engine) dispatch(ctx context.Context, sess *models.Session, u *models.TaskUnit, scheduler *Scheduler, completionCh chan<- completion) {
	u.Status = models.UnitStatusRunning
	u.Attempt++
	e.persistUnit(u)
	scheduler.OnUnitStart(u.ID)

	e.emit(Event{
		Type:       EventUnitDispatched,
		SessionID:  sess.ID,
		UnitID:     u.ID,
		Capability: u.Capability,
		Attempt:    u.Attempt,
	})
	debugLog("[runloop] dispatching unit %s (%s) attempt %d", u.ID, u.Capability, u.Attempt)

	unitCap := u.Capability
	payload := u.Payload
	unitID := u.ID

	go func() {
		started := e.now()
		result, err := e.execute(ctx, unitCap, payload)
		completionCh <- completion{
			unitID:     unitID,
			result:     result,
			err:        err,
			startedAt:  started,
			finishedAt: e.now(),
		}
	}()
}

// execute resolves and invokes the collaborator for a capability.
func (e *Engine) execute(ctx context.Context, cap models.Capability, payload string) (string, error) {
	exec, err := e.registry.Lookup(cap)
	if err != nil {
		return "", err
	}
	return exec.Execute(ctx, payload)
}

// handleCompletion applies one attempt's result to the graph. Returns true
// when a retry timer was started for the unit.
func (e *Engine) handleCompletion(ctx context.Context, sess *models.Session, g *graph.TaskGraph, c completion, requeueCh chan<- string) bool {
	u := g.Unit(c.unitID)
	if u == nil {
		return false
	}

	if c.err == nil {
		finished := c.finishedAt
		u.Status = models.UnitStatusSucceeded
		u.Result = c.result
		u.Error = ""
		u.CompletedAt = &finished
		e.persistUnit(u)
		e.appendResult(sess, u, c)
		e.emit(Event{
			Type:       EventUnitSucceeded,
			SessionID:  sess.ID,
			UnitID:     u.ID,
			Capability: u.Capability,
			Attempt:    u.Attempt,
		})
		return false
	}

	kind := capability.Classify(c.err)
	u.Error = c.err.Error()

	if e.retry.Decide(kind, u.Attempt) == DecisionRetry {
		u.Status = models.UnitStatusFailedRetryable
		e.persistUnit(u)
		e.appendResult(sess, u, c)

		delay := e.retry.Backoff(u.Attempt)
		e.emit(Event{
			Type:       EventUnitRetrying,
			SessionID:  sess.ID,
			UnitID:     u.ID,
			Capability: u.Capability,
			Attempt:    u.Attempt,
			Err:        c.err,
			Message:    delay.String(),
		})
		debugLog("[runloop] unit %s failed (%s), retrying in %s", u.ID, kind, delay)

		go func(unitID string) {
			select {
			case <-time.After(delay):
				requeueCh <- unitID
			case <-ctx.Done():
				// The loop settles parked units on cancellation.
			}
		}(u.ID)
		return true
	}

	finished := c.finishedAt
	u.Status = models.UnitStatusFailedFatal
	u.CompletedAt = &finished
	e.persistUnit(u)
	e.appendResult(sess, u, c)
	e.emit(Event{
		Type:       EventUnitFailed,
		SessionID:  sess.ID,
		UnitID:     u.ID,
		Capability: u.Capability,
		Attempt:    u.Attempt,
		Err:        c.err,
	})
	debugLog("[runloop] unit %s failed permanently after %d attempt(s): %v", u.ID, u.Attempt, c.err)

	e.skipDescendants(sess, g, u.ID)
	return false
}

// skipDescendants marks every unit transitively depending on the failed unit
// as SKIPPED. Descendants are never running: their dependencies have not all
// succeeded.
func (e *Engine) skipDescendants(sess *models.Session, g *graph.TaskGraph, failedID string) {
	now := e.now()
	for _, id := range g.Descendants(failedID) {
		u := g.Unit(id)
		if u == nil || u.Status.Terminal() {
			continue
		}
		u.Status = models.UnitStatusSkipped
		u.Error = "dependency failed"
		u.CompletedAt = &now
		e.persistUnit(u)
		e.emit(Event{
			Type:       EventUnitSkipped,
			SessionID:  sess.ID,
			UnitID:     u.ID,
			Capability: u.Capability,
		})
	}
}

// cancelRemaining settles every non-terminal unit when the session context
// expires: running and parked units fail permanently, waiting units are skipped.
func (e *Engine) cancelRemaining(sess *models.Session, g *graph.TaskGraph) {
	now := e.now()
	for _, u := range g.Units() {
		switch u.Status {
		case models.UnitStatusRunning, models.UnitStatusFailedRetryable:
			u.Status = models.UnitStatusFailedFatal
			u.Error = "session timeout"
			u.CompletedAt = &now
			e.persistUnit(u)
			e.emit(Event{
				Type:       EventUnitFailed,
				SessionID:  sess.ID,
				UnitID:     u.ID,
				Capability: u.Capability,
				Attempt:    u.Attempt,
			})
		case models.UnitStatusPending, models.UnitStatusReady:
			u.Status = models.UnitStatusSkipped
			u.Error = "session timeout"
			u.CompletedAt = &now
			e.persistUnit(u)
			e.emit(Event{
				Type:       EventUnitSkipped,
				SessionID:  sess.ID,
				UnitID:     u.ID,
				Capability: u.Capability,
			})
		}
	}
}

// settleStranded skips units that can never run. Should not happen with a
// well-formed graph; kept so aggregation always sees terminal statuses.
func (e *Engine) settleStranded(sess *models.Session, g *graph.TaskGraph) {
	now := e.now()
	for _, u := range g.Units() {
		if u.Status.Terminal() {
			continue
		}
		u.Status = models.UnitStatusSkipped
		u.Error = "unreachable"
		u.CompletedAt = &now
		e.persistUnit(u)
	}
}

// appendResult writes one attempt record to the execution log.
func (e *Engine) appendResult(sess *models.Session, u *models.TaskUnit, c completion) {
	if e.store == nil {
		return
	}
	rec := &models.ExecutionResult{
		SessionID:  sess.ID,
		UnitID:     u.ID,
		Capability: u.Capability,
		Attempt:    u.Attempt,
		Status:     u.Status,
		Result:     u.Result,
		Error:      u.Error,
		StartedAt:  c.startedAt,
		FinishedAt: c.finishedAt,
		Duration:   c.finishedAt.Sub(c.startedAt),
	}
	if err := e.store.AppendExecutionResult(rec); err != nil {
		e.logger.Log("[engine] append execution result for %s: %v", u.ID, err)
	}
}
