package reflection

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"maestro/internal/state"
	"maestro/pkg/models"
)

func testStore(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "maestro.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *state.DB, id string, outcome models.SessionOutcome, age, duration time.Duration) {
	t.Helper()
	created := time.Now().Add(-age)
	completed := created.Add(duration)
	s := &models.Session{
		ID: id, RawInput: "x", Status: models.SessionDone,
		Outcome: outcome, CreatedAt: created, CompletedAt: &completed,
	}
	if err := db.CreateSession(s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func seedResult(t *testing.T, db *state.DB, sessionID, unitID string, cap models.Capability, attempt int, status models.UnitStatus, age time.Duration) {
	t.Helper()
	started := time.Now().Add(-age)
	rec := &models.ExecutionResult{
		SessionID: sessionID, UnitID: unitID, Capability: cap,
		Attempt: attempt, Status: status,
		StartedAt: started, FinishedAt: started.Add(100 * time.Millisecond),
		Duration: 100 * time.Millisecond,
	}
	if err := db.AppendExecutionResult(rec); err != nil {
		t.Fatalf("seed result: %v", err)
	}
}

func TestReportBasicMetrics(t *testing.T) {
	db := testStore(t)
	seedSession(t, db, "s1", models.OutcomeSuccess, time.Hour, 2*time.Second)
	seedSession(t, db, "s2", models.OutcomeFailure, time.Hour, 4*time.Second)

	seedResult(t, db, "s1", "s1-u01", models.CapabilityNotion, 1, models.UnitStatusSucceeded, time.Hour)
	seedResult(t, db, "s2", "s2-u01", models.CapabilityGmail, 1, models.UnitStatusFailedRetryable, time.Hour)
	seedResult(t, db, "s2", "s2-u01", models.CapabilityGmail, 2, models.UnitStatusFailedFatal, time.Hour)

	report, err := New(db).Report(24 * time.Hour)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if report.TotalSessions != 2 {
		t.Errorf("expected 2 sessions, got %d", report.TotalSessions)
	}
	if report.SucceededSessions != 1 || report.SuccessRate != 0.5 {
		t.Errorf("expected 50%% success, got %d/%.2f", report.SucceededSessions, report.SuccessRate)
	}
	if report.MeanDuration != 3*time.Second {
		t.Errorf("expected mean duration 3s, got %s", report.MeanDuration)
	}
	if report.TotalUnits != 2 {
		t.Errorf("expected 2 units, got %d", report.TotalUnits)
	}
	if report.TotalRetries != 1 {
		t.Errorf("expected 1 retry, got %d", report.TotalRetries)
	}
	if report.RetryRate != 0.5 {
		t.Errorf("expected retry rate 0.5, got %.2f", report.RetryRate)
	}

	gmail := report.PerCapability[models.CapabilityGmail]
	if gmail.Executions != 2 || gmail.Successes != 0 {
		t.Errorf("gmail metrics wrong: %+v", gmail)
	}
	notion := report.PerCapability[models.CapabilityNotion]
	if notion.SuccessRate() != 1.0 {
		t.Errorf("notion success rate wrong: %.2f", notion.SuccessRate())
	}
}

func TestReportWindowExcludesOldSessions(t *testing.T) {
	db := testStore(t)
	seedSession(t, db, "recent", models.OutcomeSuccess, time.Hour, time.Second)
	seedSession(t, db, "ancient", models.OutcomeFailure, 72*time.Hour, time.Second)

	report, err := New(db).Report(24 * time.Hour)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.TotalSessions != 1 {
		t.Errorf("expected 1 session in window, got %d", report.TotalSessions)
	}
	if report.SuccessRate != 1.0 {
		t.Errorf("old failure leaked into window: %.2f", report.SuccessRate)
	}
}

func TestReportSuggestsOnLowSuccessRate(t *testing.T) {
	db := testStore(t)
	seedSession(t, db, "s1", models.OutcomeFailure, time.Hour, time.Second)
	seedSession(t, db, "s2", models.OutcomeFailure, time.Hour, time.Second)
	seedSession(t, db, "s3", models.OutcomeSuccess, time.Hour, time.Second)

	report, err := New(db).Report(24 * time.Hour)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	found := false
	for _, s := range report.Suggestions {
		if strings.Contains(s, "success rate") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected success-rate suggestion, got %v", report.Suggestions)
	}
}

func TestReportSuggestsOnHighRetryRate(t *testing.T) {
	db := testStore(t)
	seedSession(t, db, "s1", models.OutcomeSuccess, time.Hour, time.Second)
	for attempt := 1; attempt <= 3; attempt++ {
		status := models.UnitStatusFailedRetryable
		if attempt == 3 {
			status = models.UnitStatusSucceeded
		}
		seedResult(t, db, "s1", "s1-u01", models.CapabilityLink, attempt, status, time.Hour)
	}

	report, err := New(db).Report(24 * time.Hour)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	found := false
	for _, s := range report.Suggestions {
		if strings.Contains(s, "retry rate") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected retry-rate suggestion, got %v", report.Suggestions)
	}
}

func TestReportEmptyWindow(t *testing.T) {
	db := testStore(t)
	report, err := New(db).Report(24 * time.Hour)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.TotalSessions != 0 || report.SuccessRate != 0 || len(report.Suggestions) != 0 {
		t.Errorf("empty window should yield zero report, got %+v", report)
	}
}
