package engine

import (
	"fmt"
	"strings"

	"maestro/internal/graph"
	"maestro/pkg/models"
)

// Aggregate merges a settled graph's unit outcomes into a session outcome and
// a human-readable summary. Units are listed in topological order so the same
// graph always aggregates to the same summary regardless of completion order.
func Aggregate(g *graph.TaskGraph) (models.SessionOutcome, string) {
	order, err := g.TopologicalOrder()
	if err != nil {
		// A built graph is acyclic; fall back to decomposition order.
		order = nil
		for _, u := range g.Units() {
			order = append(order, u.ID)
		}
	}

	var succeeded, failed int
	var lines []string
	for _, id := range order {
		u := g.Unit(id)
		if u == nil {
			continue
		}

		switch u.Status {
		case models.UnitStatusSucceeded:
			succeeded++
			lines = append(lines, fmt.Sprintf("%s: succeeded (attempt %d)", u.Capability, u.Attempt))
		case models.UnitStatusFailedFatal:
			failed++
			lines = append(lines, fmt.Sprintf("%s: failed permanently after %d attempt(s): %s", u.Capability, u.Attempt, u.Error))
		case models.UnitStatusSkipped:
			failed++
			lines = append(lines, fmt.Sprintf("%s: skipped (dependency failed)", u.Capability))
		default:
			// Aggregation runs on settled graphs only; anything else means the
			// session was cut short. Count it as not succeeded.
			failed++
			lines = append(lines, fmt.Sprintf("%s: %s", u.Capability, u.Status))
		}
	}

	var outcome models.SessionOutcome
	switch {
	case failed == 0 && succeeded > 0:
		outcome = models.OutcomeSuccess
	case succeeded > 0:
		outcome = models.OutcomePartial
	default:
		outcome = models.OutcomeFailure
	}

	return outcome, strings.Join(lines, "\n")
}
