package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// errNotStarted is the last error of a task the run never got to attempt
var errNotStarted = errors.New("not attempted")

// Config contains orchestrator configuration
type Config struct {
	MaxRounds int
	Workers   int
	Retry     domain.RetryPolicy
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRounds: 3,
		Workers:   5,
		Retry:     domain.DefaultRetryPolicy(),
	}
}

// Orchestrator drives tasks through bounded-concurrency retry rounds
type Orchestrator struct {
	config  *Config
	runner  port.TaskRunner
	tracker port.CompletionTracker
	history port.HistoryRepository
	logger  *zap.Logger

	newRunID func() string
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a new Orchestrator. history may be nil.
func New(
	cfg *Config,
	runner port.TaskRunner,
	tracker port.CompletionTracker,
	history port.HistoryRepository,
	logger *zap.Logger,
) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		config:   cfg,
		runner:   runner,
		tracker:  tracker,
		history:  history,
		logger:   logger,
		newRunID: uuid.NewString,
		sleep:    sleepContext,
	}
}

// Run processes tasks until every one is completed or MaxRounds have run.
// Each task ends up in exactly one of the report's Skipped, Succeeded or
// Failed lists. Cancelling ctx stops new attempts and rounds from starting;
// attempts already in flight finish. An error is returned only when the
// initial completion scan fails.
func (o *Orchestrator) Run(ctx context.Context, tasks []domain.Task) (*domain.Report, error) {
	report := &domain.Report{
		RunID:     o.newRunID(),
		Errors:    make(map[string]*domain.ExhaustedError),
		StartedAt: time.Now(),
	}
	logger := o.logger.With(zap.String("run_id", report.RunID))

	completed, err := o.tracker.ListCompleted()
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed artifacts: %w", err)
	}

	run := &domain.Run{
		ID:        report.RunID,
		Status:    domain.RunStatusRunning,
		Total:     len(tasks),
		StartedAt: report.StartedAt,
	}
	if o.history != nil {
		if err := o.history.CreateRun(run); err != nil {
			logger.Warn("Failed to record run start", zap.Error(err))
		}
	}

	logger.Info("Run started",
		zap.Int("tasks", len(tasks)),
		zap.Int("already_completed", countCompleted(tasks, completed)),
		zap.Int("max_rounds", o.config.MaxRounds),
		zap.Int("workers", o.config.Workers))

	produced := make(map[string]struct{})
	lastErr := make(map[string]error)
	pending := tasks

	for round := 1; round <= o.config.MaxRounds && len(pending) > 0; round++ {
		if ctx.Err() != nil {
			logger.Warn("Run cancelled, not starting round", zap.Int("round", round))
			break
		}

		state := domain.NewRoundState(round, pending)
		roundStart := time.Now()
		logger.Info("Round started", zap.Int("round", round), zap.Int("pending", len(pending)))

		var exists, succeeded int
		for _, res := range o.runRound(ctx, logger, state) {
			o.record(logger, report.RunID, round, res)

			name := res.Task.Name()
			switch res.Outcome {
			case domain.OutcomeExists:
				exists++
			case domain.OutcomeSuccess:
				succeeded++
				produced[name] = struct{}{}
				delete(lastErr, name)
			default:
				state.Failed = append(state.Failed, res)
				lastErr[name] = res.Err
			}
		}

		if snapshot, err := o.tracker.ListCompleted(); err != nil {
			logger.Warn("Failed to rescan completed artifacts", zap.Error(err))
			for name := range produced {
				completed[name] = struct{}{}
			}
		} else {
			completed = snapshot
		}

		pending = state.Carry(completed)
		report.Rounds = round

		logger.Info("Round finished",
			zap.Int("round", round),
			zap.Int("exists", exists),
			zap.Int("succeeded", succeeded),
			zap.Int("failed", len(state.Failed)),
			zap.Int("carried", len(pending)),
			zap.Duration("elapsed", time.Since(roundStart)))
	}

	for _, t := range tasks {
		name := t.Name()
		if _, ok := produced[name]; ok {
			report.Succeeded = append(report.Succeeded, name)
			continue
		}
		if _, ok := completed[name]; ok {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		last := lastErr[name]
		if last == nil {
			last = errNotStarted
			if ctx.Err() != nil {
				last = ctx.Err()
			}
		}
		report.Failed = append(report.Failed, name)
		report.Errors[name] = &domain.ExhaustedError{Name: name, Rounds: report.Rounds, Last: last}
	}
	report.Sort()
	report.FinishedAt = time.Now()

	if o.history != nil {
		run.Finish(report)
		if err := o.history.FinishRun(run); err != nil {
			logger.Warn("Failed to record run finish", zap.Error(err))
		}
	}

	logger.Info("Run finished",
		zap.Int("rounds", report.Rounds),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))

	return report, nil
}

// runRound feeds the pending tasks to the worker pool and collects exactly
// one result per task from the result channel
func (o *Orchestrator) runRound(ctx context.Context, logger *zap.Logger, state *domain.RoundState) []domain.TaskResult {
	jobs := make(chan domain.Task)
	results := make(chan domain.TaskResult, len(state.Pending))

	workers := o.config.Workers
	if workers > len(state.Pending) {
		workers = len(state.Pending)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go o.worker(ctx, logger.With(zap.String("worker", fmt.Sprintf("worker-%d", i))), state.Number, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for _, t := range state.Pending {
			select {
			case jobs <- t:
			case <-ctx.Done():
				results <- domain.TaskResult{Task: t, Outcome: domain.OutcomeFail, Err: ctx.Err()}
			}
		}
	}()

	collected := make([]domain.TaskResult, 0, len(state.Pending))
	for range state.Pending {
		collected = append(collected, <-results)
	}
	wg.Wait()
	return collected
}

// worker processes tasks from the job channel until it is closed
func (o *Orchestrator) worker(ctx context.Context, logger *zap.Logger, round int, jobs <-chan domain.Task, results chan<- domain.TaskResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for t := range jobs {
		results <- o.processTask(ctx, logger, round, t)
	}
}

// processTask runs the in-round attempt loop for one task
func (o *Orchestrator) processTask(ctx context.Context, logger *zap.Logger, round int, t domain.Task) domain.TaskResult {
	start := time.Now()
	name := t.Name()
	policy := o.config.Retry
	res := domain.TaskResult{Task: t, Outcome: domain.OutcomeFail}

	for attempt := 1; attempt <= policy.Attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			if res.Err == nil {
				res.Err = err
			}
			break
		}

		// The artifact may have been published since the round started
		if o.isCompleted(logger, name) {
			res.Outcome = domain.OutcomeExists
			res.Err = nil
			break
		}

		res.Attempts = attempt
		err := o.runner.Attempt(ctx, t)
		if err == nil {
			res.Outcome = domain.OutcomeSuccess
			res.Err = nil
			break
		}
		res.Err = err

		logger.Warn("Attempt failed",
			zap.String("name", name),
			zap.Int("round", round),
			zap.Int("attempt", attempt),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err))

		if !domain.IsRetryable(err) {
			break
		}
		if attempt < policy.Attempts() {
			if err := o.sleep(ctx, policy.Delay(attempt)); err != nil {
				break
			}
		}
	}

	res.Duration = time.Since(start)
	return res
}

func (o *Orchestrator) isCompleted(logger *zap.Logger, name string) bool {
	completed, err := o.tracker.ListCompleted()
	if err != nil {
		logger.Warn("Completion check failed", zap.String("name", name), zap.Error(err))
		return false
	}
	_, ok := completed[name]
	return ok
}

func (o *Orchestrator) record(logger *zap.Logger, runID string, round int, res domain.TaskResult) {
	if o.history == nil {
		return
	}
	if err := o.history.RecordAttempt(domain.NewAttemptRecord(runID, round, res)); err != nil {
		logger.Warn("Failed to record attempt",
			zap.String("name", res.Task.Name()),
			zap.Error(err))
	}
}

func countCompleted(tasks []domain.Task, completed map[string]struct{}) int {
	n := 0
	for _, t := range tasks {
		if _, ok := completed[t.Name()]; ok {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
