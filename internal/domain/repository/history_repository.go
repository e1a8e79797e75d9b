package repository

import (
	"time"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// HistoryRepository defines the interface for run history persistence
type HistoryRepository interface {
	// CreateRun records the start of a run
	CreateRun(run *domain.Run) error

	// RecordAttempt stores the outcome of one task within a round
	RecordAttempt(attempt *domain.AttemptRecord) error

	// FinishRun stores the final counts of a run
	FinishRun(run *domain.Run) error

	// GetRun retrieves a run by ID
	// Returns domain.ErrRunNotFound if no such run exists
	GetRun(id string) (*domain.Run, error)

	// ListRuns returns the most recent runs, newest first
	ListRuns(limit int) ([]*domain.Run, error)

	// ListAttempts returns the attempts recorded for a run in insertion order
	ListAttempts(runID string) ([]*domain.AttemptRecord, error)

	// CleanupOldRuns removes runs started before now-olderThan
	CleanupOldRuns(olderThan time.Duration) (int, error)
}
