package engine

import (
	"sync"

	"maestro/internal/graph"
	"maestro/pkg/models"
)

// Scheduler hands ready units to available execution slots. It respects the
// parallel execution limit and never dispatches a unit that is already running.
type Scheduler struct {
	// graph is the dependency graph of the session's units.
	graph *graph.TaskGraph
	// maxSlots is the maximum number of concurrently running units.
	maxSlots int
	// running tracks unit IDs currently held by a slot.
	running map[string]bool
	// mu protects running.
	mu sync.RWMutex
}

// NewScheduler creates a Scheduler over the given graph with the given slot limit.
func NewScheduler(g *graph.TaskGraph, maxSlots int) *Scheduler {
	if maxSlots < 1 {
		maxSlots = 1
	}
	return &Scheduler{
		graph:    g,
		maxSlots: maxSlots,
		running:  make(map[string]bool),
	}
}

// Schedule returns the units to dispatch now: ready units, in rank order,
// capped by the free slot count. Returns nil when no slot is free or nothing
// is ready.
func (s *Scheduler) Schedule() []*models.TaskUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	available := s.maxSlots - len(s.running)
	if available <= 0 {
		debugLog("[scheduler] no available slots: maxSlots=%d, running=%d", s.maxSlots, len(s.running))
		return nil
	}

	ready := s.graph.Ready()
	if len(ready) == 0 {
		return nil
	}

	var schedulable []*models.TaskUnit
	for _, u := range ready {
		if s.running[u.ID] {
			continue
		}
		schedulable = append(schedulable, u)
		if len(schedulable) == available {
			break
		}
	}

	debugLog("[scheduler] scheduled %d of %d ready units (%d slots free)", len(schedulable), len(ready), available)
	return schedulable
}

// OnUnitStart records that a unit has taken a slot.
func (s *Scheduler) OnUnitStart(unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[unitID] = true
}

// OnUnitComplete releases a unit's slot. Called for every completion,
// including transient failures: a parked unit holds no slot while it waits
// out its backoff.
func (s *Scheduler) OnUnitComplete(unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, unitID)
}

// RunningCount returns the number of units currently holding slots.
func (s *Scheduler) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}
