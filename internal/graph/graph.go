// Package graph provides the dependency graph over a session's task units.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"maestro/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// TaskGraph is a directed acyclic graph of task units for one session.
// Units are nodes; edges point from a unit to the units it depends on.
// The graph reads unit statuses but never mutates them: status transitions
// belong to the scheduler and retry coordinator.
type TaskGraph struct {
	mu sync.RWMutex
	// nodes maps unit ID to the unit itself.
	nodes map[string]*models.TaskUnit
	// edges maps unit ID to the IDs it depends on.
	edges map[string][]string
	// order preserves decomposition order for deterministic iteration.
	order []string
}

// New creates an empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes: make(map[string]*models.TaskUnit),
		edges: make(map[string][]string),
	}
}

// Build registers the units and their dependency edges.
// Returns an error if a dependency references an unknown unit or a cycle exists.
func (g *TaskGraph) Build(units []*models.TaskUnit) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range units {
		g.nodes[u.ID] = u
		g.edges[u.ID] = nil
		g.order = append(g.order, u.ID)
	}

	for _, u := range units {
		for _, depID := range u.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("unit %s depends on unknown unit %s", u.ID, depID)
			}
			g.edges[u.ID] = append(g.edges[u.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *TaskGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs a DFS with three-color marking to find back edges.
// Caller must hold the lock.
func (g *TaskGraph) hasCycleLocked() bool {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully processed
	)
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case gray:
				return true
			case white:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for id := range g.nodes {
		if colors[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalOrder returns unit IDs with every dependency before its dependents.
// Ties are broken by decomposition order so the result is deterministic.
func (g *TaskGraph) TopologicalOrder() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Ready returns units that are PENDING with every dependency SUCCEEDED,
// sorted by rank then sequence so dispatch order is deterministic.
func (g *TaskGraph) Ready() []*models.TaskUnit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.TaskUnit
	for _, id := range g.order {
		u := g.nodes[id]
		if u.Status != models.UnitStatusPending {
			continue
		}

		eligible := true
		for _, depID := range g.edges[id] {
			if g.nodes[depID].Status != models.UnitStatusSucceeded {
				eligible = false
				break
			}
		}
		if eligible {
			ready = append(ready, u)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Rank != ready[j].Rank {
			return ready[i].Rank < ready[j].Rank
		}
		return ready[i].Seq < ready[j].Seq
	})
	return ready
}

// Unit returns the unit for an ID, or nil if not found.
func (g *TaskGraph) Unit(id string) *models.TaskUnit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Units returns all units in decomposition order.
func (g *TaskGraph) Units() []*models.TaskUnit {
	g.mu.RLock()
	defer g.mu.RUnlock()

	units := make([]*models.TaskUnit, 0, len(g.order))
	for _, id := range g.order {
		units = append(units, g.nodes[id])
	}
	return units
}

// Size returns the number of units in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependents returns the IDs of units that directly depend on the given unit.
func (g *TaskGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dependentsLocked(id)
}

func (g *TaskGraph) dependentsLocked(id string) []string {
	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// Descendants returns the IDs of all units transitively depending on the
// given unit. Used to skip the unscheduled subtree under a fatal failure.
func (g *TaskGraph) Descendants(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		for _, dep := range g.dependentsLocked(id) {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)

	var result []string
	for _, candidate := range g.order {
		if seen[candidate] {
			result = append(result, candidate)
		}
	}
	return result
}

// Settled returns true when no unit is PENDING, READY, or RUNNING.
// FailedRetryable units are not settled: they re-enter the ready cycle.
func (g *TaskGraph) Settled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, u := range g.nodes {
		if !u.Status.Terminal() {
			return false
		}
	}
	return true
}
