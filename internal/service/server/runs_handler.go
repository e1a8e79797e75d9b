package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/vod-fetcher/internal/domain"
	"github.com/vertextoedge/vod-fetcher/internal/port"
)

// RunsHandler serves run history and completion views
type RunsHandler struct {
	history port.HistoryRepository
	tracker port.CompletionTracker
	logger  *zap.Logger
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(history port.HistoryRepository, tracker port.CompletionTracker, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{
		history: history,
		tracker: tracker,
		logger:  logger,
	}
}

type runView struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Rounds     int        `json:"rounds"`
	Skipped    int        `json:"skipped"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type attemptView struct {
	Round      int    `json:"round"`
	Name       string `json:"name"`
	RawID      string `json:"raw_id"`
	Attempts   int    `json:"attempts"`
	Outcome    string `json:"outcome"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func newRunView(run *domain.Run) runView {
	return runView{
		ID:         run.ID,
		Status:     run.Status,
		Total:      run.Total,
		Rounds:     run.Rounds,
		Skipped:    run.Skipped,
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// HandleList handles GET /runs?limit=N
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": views})
}

// HandleGet handles GET /runs/{id}
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.history.GetRun(id)
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to get run", http.StatusInternalServerError)
		return
	}

	records, err := h.history.ListAttempts(id)
	if err != nil {
		h.logger.Error("Failed to list attempts", zap.String("run_id", id), zap.Error(err))
		http.Error(w, "Failed to list attempts", http.StatusInternalServerError)
		return
	}

	attempts := make([]attemptView, 0, len(records))
	for _, rec := range records {
		attempts = append(attempts, attemptView{
			Round:      rec.Round,
			Name:       rec.Name,
			RawID:      rec.RawID,
			Attempts:   rec.Attempts,
			Outcome:    string(rec.Outcome),
			ErrorKind:  string(rec.ErrorKind),
			Error:      rec.Error,
			DurationMs: rec.DurationMs,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":      newRunView(run),
		"attempts": attempts,
	})
}

// HandleCompleted handles GET /completed
func (h *RunsHandler) HandleCompleted(w http.ResponseWriter, r *http.Request) {
	completed, err := h.tracker.ListCompleted()
	if err != nil {
		h.logger.Error("Failed to list completed artifacts", zap.Error(err))
		http.Error(w, "Failed to list completed artifacts", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(completed))
	for name := range completed {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(names),
		"names": names,
	})
}
