package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"orders-pipeline/internal/config"
	"orders-pipeline/internal/pipeline"
	"orders-pipeline/internal/store"
)

// Handler serves the pipeline API: it starts runs and exposes the read-only
// reports and rollup collections.
type Handler struct {
	cfg      config.Config
	store    *store.Store
	pipeline *pipeline.Pipeline
	logger   *log.Logger
}

func New(cfg config.Config, st *store.Store, p *pipeline.Pipeline, logger *log.Logger) *Handler {
	return &Handler{cfg: cfg, store: st, pipeline: p, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathSegment returns the n-th path segment (0-based), or "".
func pathSegment(r *http.Request, n int) string {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if n < 0 || n >= len(segments) {
		return ""
	}
	return segments[n]
}

// CreateRun starts a full pipeline run
// @Summary Start a pipeline run
// @Description Starts an asynchronous ingestion -> cleaning -> aggregation run
// @Tags runs
// @Produce json
// @Success 202 {object} map[string]interface{} "Run accepted"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	runID := uuid.New().String()
	if err := h.store.SaveRun(r.Context(), runID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register run")
		return
	}

	go func() {
		if _, err := h.pipeline.Run(context.Background(), runID); err != nil {
			h.logger.Printf("run %s failed: %v", runID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"runId":  runID,
		"status": "pending",
	})
}

// ListRuns lists all pipeline runs
// @Summary List runs
// @Tags runs
// @Produce json
// @Success 200 {array} store.RunSummary
// @Failure 500 {object} map[string]string
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run with its consolidated report
// @Summary Get run
// @Tags runs
// @Produce json
// @Param id path string true "run id"
// @Success 200 {object} store.RunDetail
// @Failure 404 {object} map[string]string
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := pathSegment(r, 3)
	detail, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetRunErrors returns the recorded failures of a run
// @Summary Get run errors
// @Tags runs
// @Produce json
// @Param id path string true "run id"
// @Success 200 {array} store.RunError
// @Failure 500 {object} map[string]string
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID := pathSegment(r, 3)
	runErrors, err := h.store.ListRunErrors(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch run errors")
		return
	}
	if runErrors == nil {
		runErrors = []store.RunError{}
	}
	writeJSON(w, http.StatusOK, runErrors)
}
