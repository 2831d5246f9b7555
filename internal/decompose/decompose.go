// Package decompose expands a classified intent into a dependency graph of
// task units.
package decompose

import (
	"errors"
	"fmt"
	"time"

	"maestro/internal/graph"
	"maestro/pkg/models"
)

// GraphCycleError indicates the decomposed units form a dependency cycle.
// It is fatal: the session ends at DECOMPOSED without retry.
type GraphCycleError struct {
	// SessionID is the session whose decomposition failed.
	SessionID string
}

// Error implements the error interface.
func (e *GraphCycleError) Error() string {
	return fmt.Sprintf("session %s: task graph contains a dependency cycle", e.SessionID)
}

// Decomposer expands intents into task graphs.
type Decomposer struct {
	now func() time.Time
}

// New creates a Decomposer.
func New() *Decomposer {
	return &Decomposer{now: time.Now}
}

// Decompose produces the task graph for a session.
//
// A simple intent yields a single-unit graph carrying the raw input as its
// payload. A compound intent yields one unit per decomposition hint, in hint
// order (confidence descending), with dependencies inferred from each hint's
// declared ordering requirements. Unit ids are derived from the session id
// plus the sequence index, so a given decomposition is reproducible.
func (d *Decomposer) Decompose(sessionID string, intent models.Intent, rawInput string) (*graph.TaskGraph, error) {
	hints := intent.Hints
	if !intent.IsCompound {
		if len(hints) > 1 {
			hints = hints[:1]
		}
		if len(hints) == 0 {
			hints = []models.Hint{{Capability: intent.Kind, Confidence: intent.Confidence, Action: rawInput}}
		}
	}

	now := d.now()

	// First pass: create units and remember which unit realizes each capability.
	// The first unit for a capability wins; hints are already ranked.
	units := make([]*models.TaskUnit, 0, len(hints))
	byCapability := make(map[models.Capability]string, len(hints))
	for i, h := range hints {
		payload := h.Action
		if payload == "" {
			payload = rawInput
		}

		unit := &models.TaskUnit{
			ID:         UnitID(sessionID, i),
			SessionID:  sessionID,
			Seq:        i,
			Capability: h.Capability,
			Payload:    payload,
			Status:     models.UnitStatusPending,
			Rank:       i,
			CreatedAt:  now,
		}
		units = append(units, unit)
		if _, exists := byCapability[h.Capability]; !exists {
			byCapability[h.Capability] = unit.ID
		}
	}

	// Second pass: resolve ordering hints to unit ids. A declared dependency
	// on a capability absent from this decomposition is hint noise and is dropped.
	for i, h := range hints {
		for _, depCap := range h.DependsOn {
			depID, ok := byCapability[depCap]
			if !ok || depID == units[i].ID {
				continue
			}
			units[i].DependsOn = append(units[i].DependsOn, depID)
		}
	}

	g := graph.New()
	if err := g.Build(units); err != nil {
		if errors.Is(err, graph.ErrCycleDetected) {
			return nil, &GraphCycleError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("build task graph: %w", err)
	}
	return g, nil
}

// UnitID derives the stable id for the unit at the given sequence index.
func UnitID(sessionID string, seq int) string {
	return fmt.Sprintf("%s-u%02d", sessionID, seq+1)
}
