package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/adapter/filesystem"
	"github.com/vertextoedge/vod-fetcher/internal/domain"
)

// fakeRunner publishes a final artifact on success. Failures are scripted
// per name as a queue of errors consumed one per attempt.
type fakeRunner struct {
	store *filesystem.Manager

	mu       sync.Mutex
	failures map[string][]error
	calls    map[string]int
	delay    time.Duration

	// publishOnFail names tasks whose final artifact appears from elsewhere
	// while our attempt fails
	publishOnFail map[string]bool

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeRunner(store *filesystem.Manager) *fakeRunner {
	return &fakeRunner{
		store:         store,
		failures:      make(map[string][]error),
		calls:         make(map[string]int),
		publishOnFail: make(map[string]bool),
	}
}

func (r *fakeRunner) failWith(name string, errs ...error) {
	r.failures[name] = append(r.failures[name], errs...)
}

func (r *fakeRunner) Attempt(ctx context.Context, t domain.Task) error {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		cur := r.maxActive.Load()
		if n <= cur || r.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	name := t.Name()
	r.mu.Lock()
	r.calls[name]++
	var err error
	if queue := r.failures[name]; len(queue) > 0 {
		err = queue[0]
		r.failures[name] = queue[1:]
	}
	r.mu.Unlock()

	if err != nil {
		if r.publishOnFail[name] {
			os.WriteFile(r.store.FinalPath(name), []byte("external"), 0644)
		}
		return err
	}
	return os.WriteFile(r.store.FinalPath(name), []byte("mp4"), 0644)
}

func (r *fakeRunner) callCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

type fakeHistory struct {
	mu       sync.Mutex
	created  []*domain.Run
	finished []*domain.Run
	attempts []*domain.AttemptRecord
}

func (h *fakeHistory) CreateRun(run *domain.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.created = append(h.created, run)
	return nil
}

func (h *fakeHistory) RecordAttempt(a *domain.AttemptRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, a)
	return nil
}

func (h *fakeHistory) FinishRun(run *domain.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, run)
	return nil
}

func (h *fakeHistory) GetRun(id string) (*domain.Run, error)     { return nil, domain.ErrRunNotFound }
func (h *fakeHistory) ListRuns(limit int) ([]*domain.Run, error) { return nil, nil }
func (h *fakeHistory) ListAttempts(runID string) ([]*domain.AttemptRecord, error) {
	return nil, nil
}
func (h *fakeHistory) CleanupOldRuns(olderThan time.Duration) (int, error) { return 0, nil }

func transient() error {
	return &domain.TransientError{URL: "http://cdn/1.ts", Err: errors.New("connection reset")}
}

func newTestOrchestrator(t *testing.T, cfg *Config) (*Orchestrator, *fakeRunner, *filesystem.Manager, *fakeHistory) {
	t.Helper()
	store, err := filesystem.NewManager(t.TempDir(), "mp4")
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	runner := newFakeRunner(store)
	history := &fakeHistory{}
	o := New(cfg, runner, store, history, zap.NewNop())
	return o, runner, store, history
}

func testConfig(rounds, workers, attempts int) *Config {
	return &Config{
		MaxRounds: rounds,
		Workers:   workers,
		Retry:     domain.RetryPolicy{MaxAttempts: attempts},
	}
}

func tasks(names ...string) []domain.Task {
	out := make([]domain.Task, 0, len(names))
	for i, n := range names {
		out = append(out, domain.NewTask("v"+string(rune('a'+i)), "", n))
	}
	return out
}

func assertList(t *testing.T, label string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s = %v, want %v", label, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", label, got, want)
			return
		}
	}
}

func TestRun_SkipsExistingAndRetriesFailures(t *testing.T) {
	o, runner, store, _ := newTestOrchestrator(t, testConfig(3, 5, 1))

	if err := os.WriteFile(store.FinalPath("1.1 Intro"), []byte("done"), 0644); err != nil {
		t.Fatal(err)
	}
	runner.failWith("1.2 Setup", transient())

	report, err := o.Run(context.Background(), tasks("1.1 Intro", "1.2 Setup"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertList(t, "Skipped", report.Skipped, []string{"1.1 Intro"})
	assertList(t, "Succeeded", report.Succeeded, []string{"1.2 Setup"})
	assertList(t, "Failed", report.Failed, nil)
	if report.Rounds != 2 {
		t.Errorf("Rounds = %d, want 2", report.Rounds)
	}
	if runner.callCount("1.1 Intro") != 0 {
		t.Error("existing artifact was fetched again")
	}
}

func TestRun_AlwaysFailingExhaustsRounds(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(3, 5, 1))

	for i := 0; i < 3; i++ {
		runner.failWith("1.2 Setup", transient())
	}

	report, err := o.Run(context.Background(), tasks("1.1 Intro", "1.2 Setup"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	assertList(t, "Succeeded", report.Succeeded, []string{"1.1 Intro"})
	assertList(t, "Failed", report.Failed, []string{"1.2 Setup"})
	if report.Rounds != 3 {
		t.Errorf("Rounds = %d, want 3", report.Rounds)
	}
	if !report.HasFailures() {
		t.Error("HasFailures() = false")
	}

	exhausted := report.Errors["1.2 Setup"]
	if exhausted == nil || exhausted.Rounds != 3 {
		t.Fatalf("Errors[1.2 Setup] = %+v", exhausted)
	}
	if domain.KindOf(exhausted.Last) != domain.KindTransient {
		t.Errorf("Last error kind = %q, want transient", domain.KindOf(exhausted.Last))
	}
	if got := runner.callCount("1.2 Setup"); got != 3 {
		t.Errorf("attempts = %d, want 3 (one per round)", got)
	}
}

func TestRun_ConvergesInOneRound(t *testing.T) {
	o, _, _, history := newTestOrchestrator(t, testConfig(3, 2, 3))

	report, err := o.Run(context.Background(), tasks("a", "b", "c", "d", "e"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", report.Rounds)
	}
	assertList(t, "Succeeded", report.Succeeded, []string{"a", "b", "c", "d", "e"})

	if len(history.created) != 1 || len(history.finished) != 1 {
		t.Fatalf("history runs created/finished = %d/%d", len(history.created), len(history.finished))
	}
	if history.created[0].ID != report.RunID || report.RunID == "" {
		t.Errorf("run ID mismatch: %q vs %q", history.created[0].ID, report.RunID)
	}
	if fin := history.finished[0]; fin.Status != domain.RunStatusFinished || fin.Succeeded != 5 {
		t.Errorf("finished run = %+v", fin)
	}
	if len(history.attempts) != 5 {
		t.Errorf("recorded attempts = %d, want 5", len(history.attempts))
	}
}

func TestRun_Idempotent(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(3, 3, 1))
	input := tasks("a", "b", "c")

	if _, err := o.Run(context.Background(), input); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	report, err := o.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	assertList(t, "Skipped", report.Skipped, []string{"a", "b", "c"})
	if len(report.Succeeded) != 0 || len(report.Failed) != 0 {
		t.Errorf("second run report = %+v", report)
	}
	for _, n := range []string{"a", "b", "c"} {
		if got := runner.callCount(n); got != 1 {
			t.Errorf("%s attempted %d times across runs, want 1", n, got)
		}
	}
}

func TestRun_ExhaustiveClassification(t *testing.T) {
	o, runner, store, _ := newTestOrchestrator(t, testConfig(2, 4, 2))

	os.WriteFile(store.FinalPath("skip"), []byte("done"), 0644)
	runner.failWith("late", transient(), transient())
	runner.failWith("never", transient(), transient(), transient(), transient())

	input := tasks("ok", "skip", "late", "never")
	report, err := o.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Total() != len(input) {
		t.Fatalf("Total() = %d, want %d", report.Total(), len(input))
	}
	seen := map[string]int{}
	for _, list := range [][]string{report.Skipped, report.Succeeded, report.Failed} {
		for _, n := range list {
			seen[n]++
		}
	}
	for _, task := range input {
		if seen[task.Name()] != 1 {
			t.Errorf("%s appears %d times in report", task.Name(), seen[task.Name()])
		}
	}
	assertList(t, "Succeeded", report.Succeeded, []string{"late", "ok"})
	assertList(t, "Failed", report.Failed, []string{"never"})
	if got := runner.callCount("never"); got != 4 {
		t.Errorf("never attempted %d times, want 2 rounds x 2 attempts", got)
	}
}

func TestRun_AssemblyErrorEndsRoundLoop(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(2, 1, 3))

	asm := &domain.AssemblyError{Output: "a.mp4", Err: errors.New("exit status 1")}
	runner.failWith("a", asm, asm)

	report, err := o.Run(context.Background(), tasks("a"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := runner.callCount("a"); got != 2 {
		t.Errorf("attempts = %d, want 1 per round", got)
	}
	assertList(t, "Failed", report.Failed, []string{"a"})
	if domain.KindOf(report.Errors["a"].Last) != domain.KindAssembly {
		t.Errorf("Last = %v, want assembly error", report.Errors["a"].Last)
	}
}

func TestRun_UnclassifiedErrorNotRetriedInRound(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(2, 1, 3))
	o.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	boom := errors.New("disk full")
	runner.failWith("a", boom, boom)

	report, err := o.Run(context.Background(), tasks("a"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := runner.callCount("a"); got != 2 {
		t.Errorf("attempts = %d, want 1 per round", got)
	}
	assertList(t, "Failed", report.Failed, []string{"a"})
	if !errors.Is(report.Errors["a"], boom) {
		t.Errorf("Last = %v, want %v", report.Errors["a"].Last, boom)
	}
}

func TestRun_InRoundRetry(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(1, 1, 3))

	var slept []time.Duration
	o.config.Retry.BaseDelay = 2 * time.Second
	o.config.Retry.Multiplier = 1
	o.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	runner.failWith("a", transient(), &domain.AuthError{Key: "a", Err: errors.New("denied")})

	report, err := o.Run(context.Background(), tasks("a"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertList(t, "Succeeded", report.Succeeded, []string{"a"})
	if report.Rounds != 1 || runner.callCount("a") != 3 {
		t.Errorf("rounds = %d, attempts = %d", report.Rounds, runner.callCount("a"))
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 2*time.Second {
		t.Errorf("sleeps = %v, want two 2s pauses", slept)
	}
}

func TestRun_BoundedConcurrency(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(1, 3, 1))
	runner.delay = 20 * time.Millisecond

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	report, err := o.Run(context.Background(), tasks(names...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Succeeded) != len(names) {
		t.Errorf("Succeeded = %v", report.Succeeded)
	}
	if peak := runner.maxActive.Load(); peak > 3 {
		t.Errorf("max concurrent attempts = %d, want <= 3", peak)
	}
}

func TestRun_ExternalProducerCountsAsSkipped(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(3, 1, 1))

	runner.failWith("a", transient())
	runner.publishOnFail["a"] = true

	report, err := o.Run(context.Background(), tasks("a"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertList(t, "Skipped", report.Skipped, []string{"a"})
	if report.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", report.Rounds)
	}
}

func TestRun_RecheckBeforeEachAttempt(t *testing.T) {
	o, runner, _, _ := newTestOrchestrator(t, testConfig(1, 1, 3))

	runner.failWith("a", transient())
	runner.publishOnFail["a"] = true

	report, err := o.Run(context.Background(), tasks("a"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := runner.callCount("a"); got != 1 {
		t.Errorf("attempts = %d, want 1 (second attempt sees the artifact)", got)
	}
	assertList(t, "Skipped", report.Skipped, []string{"a"})
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	o, runner, _, history := newTestOrchestrator(t, testConfig(3, 2, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, tasks("a", "b"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertList(t, "Failed", report.Failed, []string{"a", "b"})
	if report.Rounds != 0 {
		t.Errorf("Rounds = %d, want 0", report.Rounds)
	}
	if !errors.Is(report.Errors["a"].Last, context.Canceled) {
		t.Errorf("Last = %v, want context.Canceled", report.Errors["a"].Last)
	}
	if runner.callCount("a")+runner.callCount("b") != 0 {
		t.Error("attempts started after cancellation")
	}
	if len(history.finished) != 1 {
		t.Error("cancelled run not finished in history")
	}
}

func TestRun_CancelMidRoundLetsInFlightFinish(t *testing.T) {
	o, runner, store, _ := newTestOrchestrator(t, testConfig(3, 1, 1))
	runner.delay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	report, err := o.Run(ctx, tasks("a", "b", "c"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The single worker was mid-attempt on "a" when cancel arrived
	assertList(t, "Succeeded", report.Succeeded, []string{"a"})
	assertList(t, "Failed", report.Failed, []string{"b", "c"})
	if _, err := os.Stat(store.FinalPath("a")); err != nil {
		t.Errorf("in-flight artifact not published: %v", err)
	}
	if report.Total() != 3 {
		t.Errorf("Total() = %d, want 3", report.Total())
	}
}
