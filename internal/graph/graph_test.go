package graph

import (
	"errors"
	"testing"
	"time"

	"maestro/pkg/models"
)

func unit(id string, deps ...string) *models.TaskUnit {
	return &models.TaskUnit{
		ID:         id,
		Capability: models.CapabilityNotion,
		Status:     models.UnitStatusPending,
		DependsOn:  deps,
		CreatedAt:  time.Now(),
	}
}

func TestBuildAndSize(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskUnit{unit("a"), unit("b", "a"), unit("c", "a")})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 units, got %d", g.Size())
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskUnit{unit("a", "ghost")})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskUnit{unit("a", "b"), unit("b", "a")})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestBuildDetectsSelfCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskUnit{unit("a", "a")})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := New()
	if err := g.Build([]*models.TaskUnit{unit("a"), unit("b", "a"), unit("c", "b")}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("TopologicalOrder failed: %v", err)
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("dependencies out of order: %v", order)
	}
}

func TestTopologicalOrderDeterministic(t *testing.T) {
	build := func() *TaskGraph {
		g := New()
		if err := g.Build([]*models.TaskUnit{unit("a"), unit("b"), unit("c", "a", "b"), unit("d")}); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return g
	}

	first, _ := build().TopologicalOrder()
	for i := 0; i < 10; i++ {
		next, _ := build().TopologicalOrder()
		for j := range first {
			if first[j] != next[j] {
				t.Fatalf("order changed between runs: %v vs %v", first, next)
			}
		}
	}
}

func TestReadyRespectsDependencies(t *testing.T) {
	a := unit("a")
	b := unit("b", "a")
	g := New()
	if err := g.Build([]*models.TaskUnit{a, b}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "a" {
		t.Fatalf("expected only a ready, got %v", ready)
	}

	a.Status = models.UnitStatusSucceeded
	ready = g.Ready()
	if len(ready) != 1 || ready[0].ID != "b" {
		t.Fatalf("expected b ready after a succeeded, got %v", ready)
	}
}

func TestReadyOrdersByRank(t *testing.T) {
	a := unit("a")
	a.Rank = 2
	a.Seq = 0
	b := unit("b")
	b.Rank = 1
	b.Seq = 1
	g := New()
	if err := g.Build([]*models.TaskUnit{a, b}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 2 || ready[0].ID != "b" {
		t.Fatalf("expected b first by rank, got %v", ready)
	}
}

func TestReadyExcludesFailedDependency(t *testing.T) {
	a := unit("a")
	b := unit("b", "a")
	g := New()
	if err := g.Build([]*models.TaskUnit{a, b}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	a.Status = models.UnitStatusFailedFatal
	if ready := g.Ready(); len(ready) != 0 {
		t.Fatalf("expected nothing ready under failed dependency, got %v", ready)
	}
}

func TestDescendants(t *testing.T) {
	g := New()
	err := g.Build([]*models.TaskUnit{
		unit("a"), unit("b", "a"), unit("c", "b"), unit("d"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	desc := g.Descendants("a")
	if len(desc) != 2 {
		t.Fatalf("expected 2 descendants of a, got %v", desc)
	}
	seen := map[string]bool{}
	for _, id := range desc {
		seen[id] = true
	}
	if !seen["b"] || !seen["c"] || seen["d"] {
		t.Errorf("wrong descendants: %v", desc)
	}
}

func TestSettled(t *testing.T) {
	a := unit("a")
	b := unit("b")
	g := New()
	if err := g.Build([]*models.TaskUnit{a, b}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.Settled() {
		t.Error("pending graph should not be settled")
	}

	a.Status = models.UnitStatusSucceeded
	b.Status = models.UnitStatusFailedRetryable
	if g.Settled() {
		t.Error("graph with retryable failure should not be settled")
	}

	b.Status = models.UnitStatusSkipped
	if !g.Settled() {
		t.Error("graph with all terminal units should be settled")
	}
}
