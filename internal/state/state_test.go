package state

import (
	"path/filepath"
	"testing"
	"time"

	"maestro/pkg/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "maestro.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := testDB(t)

	created := time.Now().Truncate(time.Millisecond)
	sess := &models.Session{
		ID:        "s1",
		RawInput:  "schedule a meeting",
		Source:    "cli",
		MessageID: "m-1",
		Status:    models.SessionReceived,
		CreatedAt: created,
	}
	if err := db.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := db.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("session not found")
	}
	if got.RawInput != sess.RawInput || got.Source != "cli" || got.MessageID != "m-1" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("open session should have nil completion time")
	}

	completed := created.Add(2 * time.Second)
	sess.Status = models.SessionDone
	sess.Outcome = models.OutcomeSuccess
	sess.Summary = "calendar: succeeded (attempt 1)"
	sess.CompletedAt = &completed
	if err := db.UpdateSession(sess); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}

	got, err = db.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != models.SessionDone || got.Outcome != models.OutcomeSuccess {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("completion time mismatch: %v", got.CompletedAt)
	}
}

func TestGetSessionMissing(t *testing.T) {
	db := testDB(t)
	got, err := db.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing session, got %+v", got)
	}
}

func TestListSessionsSince(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	old := &models.Session{ID: "old", RawInput: "x", Status: models.SessionDone, CreatedAt: now.Add(-48 * time.Hour)}
	recent := &models.Session{ID: "recent", RawInput: "y", Status: models.SessionDone, CreatedAt: now.Add(-time.Hour)}
	for _, s := range []*models.Session{old, recent} {
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	sessions, err := db.ListSessionsSince(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("ListSessionsSince failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "recent" {
		t.Errorf("expected only the recent session, got %+v", sessions)
	}
}

func TestHasMessageID(t *testing.T) {
	db := testDB(t)
	sess := &models.Session{ID: "s1", RawInput: "x", MessageID: "m-9", Status: models.SessionReceived, CreatedAt: time.Now()}
	if err := db.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	dup, err := db.HasMessageID("m-9")
	if err != nil {
		t.Fatalf("HasMessageID failed: %v", err)
	}
	if !dup {
		t.Error("expected m-9 to be known")
	}

	dup, err = db.HasMessageID("m-10")
	if err != nil {
		t.Fatalf("HasMessageID failed: %v", err)
	}
	if dup {
		t.Error("m-10 should be unknown")
	}

	dup, err = db.HasMessageID("")
	if err != nil || dup {
		t.Errorf("empty message id is never a duplicate, got %v %v", dup, err)
	}
}

func TestTaskUnitRoundTrip(t *testing.T) {
	db := testDB(t)
	sess := &models.Session{ID: "s1", RawInput: "x", Status: models.SessionReceived, CreatedAt: time.Now()}
	if err := db.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	u := &models.TaskUnit{
		ID:         "s1-u01",
		SessionID:  "s1",
		Seq:        0,
		Capability: models.CapabilityGmail,
		Payload:    "email attendees",
		DependsOn:  []string{"s1-u02"},
		Status:     models.UnitStatusPending,
		Rank:       1,
		CreatedAt:  time.Now(),
	}
	if err := db.CreateTaskUnit(u); err != nil {
		t.Fatalf("CreateTaskUnit failed: %v", err)
	}

	u.Status = models.UnitStatusSucceeded
	u.Attempt = 2
	u.Result = "sent"
	completed := time.Now()
	u.CompletedAt = &completed
	if err := db.UpdateTaskUnit(u); err != nil {
		t.Fatalf("UpdateTaskUnit failed: %v", err)
	}

	units, err := db.ListTaskUnits("s1")
	if err != nil {
		t.Fatalf("ListTaskUnits failed: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	got := units[0]
	if got.Status != models.UnitStatusSucceeded || got.Attempt != 2 || got.Result != "sent" {
		t.Errorf("update not persisted: %+v", got)
	}
	if len(got.DependsOn) != 1 || got.DependsOn[0] != "s1-u02" {
		t.Errorf("depends_on not round-tripped: %v", got.DependsOn)
	}
}

func TestExecutionLogAppendAndList(t *testing.T) {
	db := testDB(t)
	started := time.Now().Add(-time.Second)

	for attempt := 1; attempt <= 2; attempt++ {
		status := models.UnitStatusFailedRetryable
		if attempt == 2 {
			status = models.UnitStatusSucceeded
		}
		rec := &models.ExecutionResult{
			SessionID:  "s1",
			UnitID:     "s1-u01",
			Capability: models.CapabilityLink,
			Attempt:    attempt,
			Status:     status,
			StartedAt:  started,
			FinishedAt: started.Add(50 * time.Millisecond),
			Duration:   50 * time.Millisecond,
		}
		if err := db.AppendExecutionResult(rec); err != nil {
			t.Fatalf("AppendExecutionResult failed: %v", err)
		}
	}

	results, err := db.ListExecutionResults("s1")
	if err != nil {
		t.Fatalf("ListExecutionResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 records, got %d", len(results))
	}
	if results[0].Attempt != 1 || results[1].Attempt != 2 {
		t.Errorf("records out of append order: %+v", results)
	}
	if results[0].Duration != 50*time.Millisecond {
		t.Errorf("duration not round-tripped: %s", results[0].Duration)
	}

	since, err := db.ListExecutionResultsSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListExecutionResultsSince failed: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("expected 2 records in window, got %d", len(since))
	}
}

func TestPurgeOldSessions(t *testing.T) {
	db := testDB(t)
	now := time.Now()

	old := &models.Session{ID: "old", RawInput: "x", Status: models.SessionDone, CreatedAt: now.Add(-60 * 24 * time.Hour)}
	fresh := &models.Session{ID: "fresh", RawInput: "y", Status: models.SessionDone, CreatedAt: now}
	for _, s := range []*models.Session{old, fresh} {
		if err := db.CreateSession(s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}
	if err := db.CreateTaskUnit(&models.TaskUnit{
		ID: "old-u01", SessionID: "old", Capability: models.CapabilityNotion,
		Status: models.UnitStatusSucceeded, CreatedAt: old.CreatedAt,
	}); err != nil {
		t.Fatalf("CreateTaskUnit failed: %v", err)
	}

	count, err := db.PurgeOldSessions(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldSessions failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 purged session, got %d", count)
	}

	if got, _ := db.GetSession("old"); got != nil {
		t.Error("old session should be gone")
	}
	if got, _ := db.GetSession("fresh"); got == nil {
		t.Error("fresh session should remain")
	}
	units, _ := db.ListTaskUnits("old")
	if len(units) != 0 {
		t.Errorf("old units should cascade, got %d", len(units))
	}
}
