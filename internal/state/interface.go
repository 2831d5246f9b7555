package state

import (
	"time"

	"maestro/pkg/models"
)

// SessionStore persists session records.
type SessionStore interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	UpdateSession(s *models.Session) error
	ListSessionsSince(cutoff time.Time) ([]models.Session, error)
	HasMessageID(messageID string) (bool, error)
}

// UnitStore persists task unit records.
type UnitStore interface {
	CreateTaskUnit(u *models.TaskUnit) error
	UpdateTaskUnit(u *models.TaskUnit) error
	ListTaskUnits(sessionID string) ([]models.TaskUnit, error)
}

// ExecutionLog persists the append-only per-attempt execution records.
type ExecutionLog interface {
	AppendExecutionResult(r *models.ExecutionResult) error
	ListExecutionResults(sessionID string) ([]models.ExecutionResult, error)
	ListExecutionResultsSince(cutoff time.Time) ([]models.ExecutionResult, error)
}

// Store combines everything the engine and reflection pass need.
type Store interface {
	SessionStore
	UnitStore
	ExecutionLog
}

var _ Store = (*DB)(nil)
