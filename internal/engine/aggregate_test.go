package engine

import (
	"strings"
	"testing"
	"time"

	"maestro/internal/graph"
	"maestro/pkg/models"
)

func settledGraph(t *testing.T, units []*models.TaskUnit) *graph.TaskGraph {
	t.Helper()
	g := graph.New()
	if err := g.Build(units); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func settledUnit(id string, cap models.Capability, status models.UnitStatus, attempt int, deps ...string) *models.TaskUnit {
	return &models.TaskUnit{
		ID:         id,
		Capability: cap,
		Status:     status,
		Attempt:    attempt,
		DependsOn:  deps,
		CreatedAt:  time.Now(),
	}
}

func TestAggregateAllSucceeded(t *testing.T) {
	g := settledGraph(t, []*models.TaskUnit{
		settledUnit("a", models.CapabilityCalendar, models.UnitStatusSucceeded, 1),
		settledUnit("b", models.CapabilityGmail, models.UnitStatusSucceeded, 2, "a"),
	})

	outcome, summary := Aggregate(g)
	if outcome != models.OutcomeSuccess {
		t.Errorf("expected success, got %s", outcome)
	}
	if !strings.Contains(summary, "calendar: succeeded (attempt 1)") {
		t.Errorf("missing calendar line in summary: %q", summary)
	}
	if !strings.Contains(summary, "gmail: succeeded (attempt 2)") {
		t.Errorf("missing gmail line in summary: %q", summary)
	}
}

func TestAggregatePartial(t *testing.T) {
	failed := settledUnit("b", models.CapabilityGmail, models.UnitStatusFailedFatal, 3, "a")
	failed.Error = "mailbox unavailable"
	g := settledGraph(t, []*models.TaskUnit{
		settledUnit("a", models.CapabilityCalendar, models.UnitStatusSucceeded, 1),
		failed,
	})

	outcome, summary := Aggregate(g)
	if outcome != models.OutcomePartial {
		t.Errorf("expected partial, got %s", outcome)
	}
	if !strings.Contains(summary, "failed permanently after 3 attempt(s): mailbox unavailable") {
		t.Errorf("missing failure detail in summary: %q", summary)
	}
}

func TestAggregateFailure(t *testing.T) {
	g := settledGraph(t, []*models.TaskUnit{
		settledUnit("a", models.CapabilityCalendar, models.UnitStatusFailedFatal, 3),
		settledUnit("b", models.CapabilityGmail, models.UnitStatusSkipped, 0, "a"),
	})

	outcome, summary := Aggregate(g)
	if outcome != models.OutcomeFailure {
		t.Errorf("expected failure, got %s", outcome)
	}
	if !strings.Contains(summary, "gmail: skipped (dependency failed)") {
		t.Errorf("missing skip line in summary: %q", summary)
	}
}

func TestAggregateDeterministicOrder(t *testing.T) {
	build := func() *graph.TaskGraph {
		return settledGraph(t, []*models.TaskUnit{
			settledUnit("a", models.CapabilityCalendar, models.UnitStatusSucceeded, 1),
			settledUnit("b", models.CapabilityGmail, models.UnitStatusSucceeded, 1, "a"),
			settledUnit("c", models.CapabilityNotion, models.UnitStatusSucceeded, 1),
		})
	}

	_, first := Aggregate(build())
	for i := 0; i < 10; i++ {
		if _, next := Aggregate(build()); next != first {
			t.Fatalf("summary changed between runs:\n%q\n%q", first, next)
		}
	}
}
