package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"maestro/pkg/models"
)

// Session CRUD operations

// CreateSession creates a new session record.
func (db *DB) CreateSession(s *models.Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (id, raw_input, source, message_id, status, outcome, summary, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.RawInput, s.Source, s.MessageID, string(s.Status), string(s.Outcome), s.Summary,
		formatTime(s.CreatedAt), nullableTimeString(s.CompletedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil if not found.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.QueryRow(`
		SELECT id, raw_input, source, message_id, status, outcome, summary, created_at, completed_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateSession updates a session record.
func (db *DB) UpdateSession(s *models.Session) error {
	_, err := db.Exec(`
		UPDATE sessions SET status = ?, outcome = ?, summary = ?, completed_at = ?
		WHERE id = ?
	`, string(s.Status), string(s.Outcome), s.Summary, nullableTimeString(s.CompletedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ListSessionsSince lists sessions created at or after the cutoff,
// newest first.
func (db *DB) ListSessionsSince(cutoff time.Time) ([]models.Session, error) {
	rows, err := db.Query(`
		SELECT id, raw_input, source, message_id, status, outcome, summary, created_at, completed_at
		FROM sessions WHERE created_at >= ? ORDER BY created_at DESC
	`, formatTime(cutoff))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// HasMessageID reports whether any session carries the given external
// message id. Used for duplicate suppression across engine restarts.
func (db *DB) HasMessageID(messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int
	row := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE message_id = ?`, messageID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check message id: %w", err)
	}
	return count > 0, nil
}

// scanSession scans one session row via the given scan function.
func scanSession(scan func(...any) error) (*models.Session, error) {
	var s models.Session
	var createdAt string
	var completedAt sql.NullString
	var source, messageID, outcome, summary sql.NullString

	err := scan(&s.ID, &s.RawInput, &source, &messageID, &s.Status, &outcome, &summary, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if source.Valid {
		s.Source = source.String
	}
	if messageID.Valid {
		s.MessageID = messageID.String
	}
	if outcome.Valid {
		s.Outcome = models.SessionOutcome(outcome.String)
	}
	if summary.Valid {
		s.Summary = summary.String
	}
	s.CreatedAt, _ = parseTime(createdAt)
	s.CompletedAt = parseNullableTime(completedAt)
	return &s, nil
}

// Task unit CRUD operations

// CreateTaskUnit creates a new task unit record.
func (db *DB) CreateTaskUnit(u *models.TaskUnit) error {
	dependsOn, _ := json.Marshal(u.DependsOn)

	_, err := db.Exec(`
		INSERT INTO task_units (id, session_id, seq, capability, payload, depends_on, status, attempt, rank, result, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.SessionID, u.Seq, string(u.Capability), u.Payload, string(dependsOn),
		string(u.Status), u.Attempt, u.Rank, u.Result, u.Error, formatTime(u.CreatedAt), nullableTimeString(u.CompletedAt))
	if err != nil {
		return fmt.Errorf("create task unit: %w", err)
	}
	return nil
}

// UpdateTaskUnit updates a task unit record.
func (db *DB) UpdateTaskUnit(u *models.TaskUnit) error {
	_, err := db.Exec(`
		UPDATE task_units SET status = ?, attempt = ?, result = ?, error = ?, completed_at = ?
		WHERE id = ?
	`, string(u.Status), u.Attempt, u.Result, u.Error, nullableTimeString(u.CompletedAt), u.ID)
	if err != nil {
		return fmt.Errorf("update task unit: %w", err)
	}
	return nil
}

// ListTaskUnits lists a session's units in decomposition order.
func (db *DB) ListTaskUnits(sessionID string) ([]models.TaskUnit, error) {
	rows, err := db.Query(`
		SELECT id, session_id, seq, capability, payload, depends_on, status, attempt, rank, result, error, created_at, completed_at
		FROM task_units WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list task units: %w", err)
	}
	defer rows.Close()

	var units []models.TaskUnit
	for rows.Next() {
		var u models.TaskUnit
		var createdAt string
		var completedAt sql.NullString
		var payload, dependsOn, result, errMsg sql.NullString

		if err := rows.Scan(&u.ID, &u.SessionID, &u.Seq, &u.Capability, &payload, &dependsOn,
			&u.Status, &u.Attempt, &u.Rank, &result, &errMsg, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan task unit: %w", err)
		}

		if payload.Valid {
			u.Payload = payload.String
		}
		if dependsOn.Valid {
			json.Unmarshal([]byte(dependsOn.String), &u.DependsOn)
		}
		if result.Valid {
			u.Result = result.String
		}
		if errMsg.Valid {
			u.Error = errMsg.String
		}
		u.CreatedAt, _ = parseTime(createdAt)
		u.CompletedAt = parseNullableTime(completedAt)
		units = append(units, u)
	}
	return units, rows.Err()
}

// Execution log operations. The log is append-only: records are inserted on
// each attempt's completion and never updated or deleted outside purges.

// AppendExecutionResult appends one attempt record to the execution log.
func (db *DB) AppendExecutionResult(r *models.ExecutionResult) error {
	_, err := db.Exec(`
		INSERT INTO execution_log (session_id, unit_id, capability, attempt, status, result, error, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.UnitID, string(r.Capability), r.Attempt, string(r.Status), r.Result, r.Error,
		formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("append execution result: %w", err)
	}
	return nil
}

// ListExecutionResults lists a session's log records in append order.
func (db *DB) ListExecutionResults(sessionID string) ([]models.ExecutionResult, error) {
	return db.listResults(`
		SELECT session_id, unit_id, capability, attempt, status, result, error, started_at, finished_at, duration_ms
		FROM execution_log WHERE session_id = ? ORDER BY id
	`, sessionID)
}

// ListExecutionResultsSince lists log records started at or after the cutoff.
func (db *DB) ListExecutionResultsSince(cutoff time.Time) ([]models.ExecutionResult, error) {
	return db.listResults(`
		SELECT session_id, unit_id, capability, attempt, status, result, error, started_at, finished_at, duration_ms
		FROM execution_log WHERE started_at >= ? ORDER BY id
	`, formatTime(cutoff))
}

func (db *DB) listResults(query string, args ...any) ([]models.ExecutionResult, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution results: %w", err)
	}
	defer rows.Close()

	var results []models.ExecutionResult
	for rows.Next() {
		var r models.ExecutionResult
		var startedAt, finishedAt string
		var result, errMsg sql.NullString
		var durationMs int64

		if err := rows.Scan(&r.SessionID, &r.UnitID, &r.Capability, &r.Attempt, &r.Status,
			&result, &errMsg, &startedAt, &finishedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("scan execution result: %w", err)
		}

		if result.Valid {
			r.Result = result.String
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt, _ = parseTime(finishedAt)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// nullableTimeString converts an optional time to a nullable SQLite string.
func nullableTimeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
