package decompose

import (
	"errors"
	"testing"

	"maestro/pkg/models"
)

func TestDecomposeSimpleIntent(t *testing.T) {
	d := New()
	intent := models.Intent{
		Kind:       models.CapabilityNotion,
		Confidence: 0.9,
		Hints: []models.Hint{
			{Capability: models.CapabilityNotion, Confidence: 0.9, Action: "save the note"},
		},
	}

	g, err := d.Decompose("abc12345", intent, "save the note")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if g.Size() != 1 {
		t.Fatalf("expected 1 unit, got %d", g.Size())
	}

	u := g.Units()[0]
	if u.ID != "abc12345-u01" {
		t.Errorf("unexpected unit id %s", u.ID)
	}
	if u.Capability != models.CapabilityNotion {
		t.Errorf("expected notion, got %s", u.Capability)
	}
	if u.Status != models.UnitStatusPending {
		t.Errorf("new units should be pending, got %s", u.Status)
	}
}

func TestDecomposeSimpleIntentWithoutHints(t *testing.T) {
	d := New()
	intent := models.Intent{Kind: models.CapabilityLink, Confidence: 0.7}

	g, err := d.Decompose("s1", intent, "https://example.com")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if g.Size() != 1 {
		t.Fatalf("expected synthesized unit, got %d", g.Size())
	}
	if g.Units()[0].Payload != "https://example.com" {
		t.Errorf("expected raw input payload, got %q", g.Units()[0].Payload)
	}
}

func TestDecomposeCompoundWithDependencies(t *testing.T) {
	d := New()
	intent := models.Intent{
		Kind:       models.CapabilityCalendar,
		IsCompound: true,
		Confidence: 0.9,
		Hints: []models.Hint{
			{Capability: models.CapabilityCalendar, Confidence: 0.9, Action: "schedule the meeting"},
			{Capability: models.CapabilityGmail, Confidence: 0.8, Action: "email attendees",
				DependsOn: []models.Capability{models.CapabilityCalendar}},
		},
	}

	g, err := d.Decompose("s2", intent, "schedule a meeting and email attendees")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if g.Size() != 2 {
		t.Fatalf("expected 2 units, got %d", g.Size())
	}

	units := g.Units()
	if units[0].Capability != models.CapabilityCalendar {
		t.Errorf("expected calendar first by rank, got %s", units[0].Capability)
	}
	gmail := units[1]
	if len(gmail.DependsOn) != 1 || gmail.DependsOn[0] != units[0].ID {
		t.Errorf("gmail should depend on calendar unit, got %v", gmail.DependsOn)
	}
}

func TestDecomposeDropsUnresolvableDependency(t *testing.T) {
	d := New()
	intent := models.Intent{
		Kind:       models.CapabilityGmail,
		IsCompound: true,
		Confidence: 0.8,
		Hints: []models.Hint{
			{Capability: models.CapabilityGmail, Confidence: 0.8,
				DependsOn: []models.Capability{models.CapabilityCalendar}},
			{Capability: models.CapabilityNotion, Confidence: 0.7},
		},
	}

	g, err := d.Decompose("s3", intent, "email and note")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	for _, u := range g.Units() {
		if len(u.DependsOn) != 0 {
			t.Errorf("dependency on absent capability should be dropped, got %v", u.DependsOn)
		}
	}
}

func TestDecomposeCycleIsFatal(t *testing.T) {
	d := New()
	intent := models.Intent{
		Kind:       models.CapabilityGmail,
		IsCompound: true,
		Confidence: 0.8,
		Hints: []models.Hint{
			{Capability: models.CapabilityGmail, Confidence: 0.8,
				DependsOn: []models.Capability{models.CapabilityCalendar}},
			{Capability: models.CapabilityCalendar, Confidence: 0.7,
				DependsOn: []models.Capability{models.CapabilityGmail}},
		},
	}

	_, err := d.Decompose("s4", intent, "mutually dependent")
	var ce *GraphCycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected GraphCycleError, got %v", err)
	}
	if ce.SessionID != "s4" {
		t.Errorf("expected session id in error, got %q", ce.SessionID)
	}
}

func TestDecomposeDeterministicIDs(t *testing.T) {
	d := New()
	intent := models.Intent{
		Kind:       models.CapabilityNotion,
		IsCompound: true,
		Confidence: 0.9,
		Hints: []models.Hint{
			{Capability: models.CapabilityNotion, Confidence: 0.9},
			{Capability: models.CapabilityLink, Confidence: 0.8},
		},
	}

	g1, err := d.Decompose("same", intent, "x")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	g2, err := d.Decompose("same", intent, "x")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	u1, u2 := g1.Units(), g2.Units()
	for i := range u1 {
		if u1[i].ID != u2[i].ID {
			t.Errorf("unit ids differ across identical decompositions: %s vs %s", u1[i].ID, u2[i].ID)
		}
	}
}

func TestUnitID(t *testing.T) {
	if got := UnitID("abc", 0); got != "abc-u01" {
		t.Errorf("expected abc-u01, got %s", got)
	}
	if got := UnitID("abc", 9); got != "abc-u10" {
		t.Errorf("expected abc-u10, got %s", got)
	}
}
