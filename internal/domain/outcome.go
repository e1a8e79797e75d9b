package domain

import (
	"sort"
	"time"
)

// Outcome is the result of processing one task within a round
type Outcome string

const (
	OutcomeExists  Outcome = "exists"
	OutcomeSuccess Outcome = "success"
	OutcomeFail    Outcome = "fail"
)

// TaskResult is what a worker reports back to the round controller
type TaskResult struct {
	Task     Task
	Outcome  Outcome
	Attempts int
	Err      error
	Duration time.Duration
}

// RoundState is the working set of one retry round
type RoundState struct {
	Number  int
	Pending []Task
	Failed  []TaskResult
}

// NewRoundState creates the state for round number n over pending
func NewRoundState(n int, pending []Task) *RoundState {
	return &RoundState{
		Number:  n,
		Pending: pending,
	}
}

// Carry returns the round failures that are still absent from completed.
// These are the next round's pending tasks.
func (s *RoundState) Carry(completed map[string]struct{}) []Task {
	var next []Task
	for _, r := range s.Failed {
		if _, ok := completed[r.Task.Name()]; ok {
			continue
		}
		next = append(next, r.Task)
	}
	return next
}

// Report is the terminal summary of a run. The three name lists are
// disjoint and together cover every input task once.
type Report struct {
	RunID     string
	Rounds    int
	Skipped   []string
	Succeeded []string
	Failed    []string

	// Errors holds an ExhaustedError for every failed name
	Errors map[string]*ExhaustedError

	StartedAt  time.Time
	FinishedAt time.Time
}

// Total returns the number of tasks covered by the report
func (r *Report) Total() int {
	return len(r.Skipped) + len(r.Succeeded) + len(r.Failed)
}

// HasFailures returns true if any task exhausted all rounds
func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// Sort orders every name list lexically
func (r *Report) Sort() {
	sort.Strings(r.Skipped)
	sort.Strings(r.Succeeded)
	sort.Strings(r.Failed)
}
