package domain

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown
var ErrRunNotFound = errors.New("run not found")

// Run status constants
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
)

// Run is the persisted summary of one orchestrator run
type Run struct {
	ID     string
	Status string
	Total  int
	Rounds int

	Skipped   int
	Succeeded int
	Failed    int

	StartedAt  time.Time
	FinishedAt *time.Time
}

// Finish copies the counts of a report into the run
func (r *Run) Finish(report *Report) {
	r.Status = RunStatusFinished
	r.Rounds = report.Rounds
	r.Skipped = len(report.Skipped)
	r.Succeeded = len(report.Succeeded)
	r.Failed = len(report.Failed)
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	r.FinishedAt = &finished
}

// AttemptRecord is the persisted outcome of one task in one round
type AttemptRecord struct {
	ID         int64
	RunID      string
	Round      int
	Name       string
	RawID      string
	Attempts   int
	Outcome    Outcome
	ErrorKind  ErrorKind
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

// NewAttemptRecord builds a record from a worker result
func NewAttemptRecord(runID string, round int, res TaskResult) *AttemptRecord {
	rec := &AttemptRecord{
		RunID:      runID,
		Round:      round,
		Name:       res.Task.Name(),
		RawID:      res.Task.RawID,
		Attempts:   res.Attempts,
		Outcome:    res.Outcome,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		rec.ErrorKind = KindOf(res.Err)
		rec.Error = res.Err.Error()
	}
	return rec
}
