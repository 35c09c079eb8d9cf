package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"redfin-data-pipeline/internal/model"
	"redfin-data-pipeline/internal/store"
)

const runsPrefix = "/api/v1/runs/"

// Launcher starts a pipeline run in the background and returns its ID.
type Launcher interface {
	Launch(ctx context.Context) string
}

// RunHandler serves the run history and lets clients trigger runs.
type RunHandler struct {
	DB       *store.DB
	Launcher Launcher
	Logger   hclog.Logger
	// Triggers limits CreateRun; nil means unlimited.
	Triggers *rate.Limiter
}

func NewRunHandler(db *store.DB, launcher Launcher, logger hclog.Logger) *RunHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RunHandler{DB: db, Launcher: launcher, Logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// runID extracts the run ID from /api/v1/runs/{id}<suffix>.
func runID(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, runsPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	id := path[len(runsPrefix) : len(path)-len(suffix)]
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// requireRun writes the error response and returns false when the run is unknown.
func (h *RunHandler) requireRun(w http.ResponseWriter, r *http.Request, suffix string) (*model.RunDetail, bool) {
	id, ok := runID(r.URL.Path, suffix)
	if !ok {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return nil, false
	}

	run, err := h.DB.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.Logger.Error("Failed to load run", "run_id", id, "error", err)
		http.Error(w, "Failed to retrieve run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// CreateRun triggers a pipeline run
// @Summary Trigger a run
// @Description Start fetch, transform and archive in the background with the configured run spec
// @Tags runs
// @Produce json
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 429 {string} string "Too many runs triggered"
// @Router /runs [post]
func (h *RunHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	if h.Triggers != nil && !h.Triggers.Allow() {
		http.Error(w, "Too many runs triggered, try again later", http.StatusTooManyRequests)
		return
	}

	id := h.Launcher.Launch(r.Context())
	h.Logger.Info("Run triggered over HTTP", "run_id", id, "remote", r.RemoteAddr)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":    "Run submitted",
		"run_id":     id,
		"status":     model.StatusPending,
		"created_at": time.Now().UTC(),
	})
}

// ListRuns lists all runs
// @Summary List runs
// @Description Get every run with its current status, newest first
// @Tags runs
// @Produce json
// @Success 200 {array} model.RunSummary
// @Failure 500 {string} string "Internal server error"
// @Router /runs [get]
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.DB.ListRuns()
	if err != nil {
		h.Logger.Error("Failed to list runs", "error", err)
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunDetail
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.requireRun(w, r, "")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunErrors returns the errors of a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/errors [get]
func (h *RunHandler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.requireRun(w, r, "/errors")
	if !ok {
		return
	}

	errs, err := h.DB.GetRunErrors(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunStages returns every stage attempt of a run
// @Summary Get stage progress
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/stages [get]
func (h *RunHandler) GetRunStages(w http.ResponseWriter, r *http.Request) {
	run, ok := h.requireRun(w, r, "/stages")
	if !ok {
		return
	}

	progress, err := h.DB.GetStageProgress(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"stages": progress,
		"count":  len(progress),
	})
}

// GetRunLogs returns the persisted log lines of a run
// @Summary Get run logs
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Param limit query int false "Maximum number of lines" default(100)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/logs [get]
func (h *RunHandler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	run, ok := h.requireRun(w, r, "/logs")
	if !ok {
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	logs, err := h.DB.GetPipelineLogs(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve logs", http.StatusInternalServerError)
		return
	}
	if len(logs) > limit {
		logs = logs[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": run.ID,
		"logs":   logs,
		"count":  len(logs),
		"limit":  limit,
	})
}

// GetRunSummary combines a run with its stage attempts and errors
// @Summary Get run summary
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {string} string "Run not found"
// @Router /runs/{id}/summary [get]
func (h *RunHandler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := h.requireRun(w, r, "/summary")
	if !ok {
		return
	}

	progress, err := h.DB.GetStageProgress(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	errs, err := h.DB.GetRunErrors(run.ID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}

	// latest attempt per stage
	stages := map[string]model.StageProgress{}
	for _, p := range progress {
		stages[p.Stage] = p
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":         run,
		"stages":      stages,
		"attempts":    len(progress),
		"error_count": len(errs),
	})
}
