package handler

import (
	"encoding/json"
	"net/http"
)

// rollupSuffixes are the collections the presentation boundary may read.
var rollupSuffixes = map[string]bool{
	"category":    true,
	"month":       true,
	"status":      true,
	"user":        true,
	"day_of_week": true,
}

// QualityReport returns the clean-set quality report
// @Summary Data quality report
// @Tags reports
// @Produce json
// @Success 200 {object} pipeline.QualityReport
// @Failure 500 {object} map[string]string
// @Router /reports/quality [get]
func (h *Handler) QualityReport(w http.ResponseWriter, r *http.Request) {
	_, cleaning, _ := h.pipeline.Stages()
	report, err := cleaning.QualityReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build quality report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Summary returns the clean-set summary snapshot
// @Summary Pipeline summary statistics
// @Tags reports
// @Produce json
// @Success 200 {object} pipeline.Summary
// @Failure 500 {object} map[string]string
// @Router /reports/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	_, _, aggregation := h.pipeline.Stages()
	summary, err := aggregation.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetRollup serves one aggregate collection, read-only
// @Summary Read one rollup
// @Tags rollups
// @Produce json
// @Param name path string true "rollup name" Enums(category, month, status, user, day_of_week)
// @Success 200 {array} model.AggregateRecord
// @Failure 404 {object} map[string]string
// @Router /rollups/{name} [get]
func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	name := pathSegment(r, 3)
	if !rollupSuffixes[name] {
		writeError(w, http.StatusNotFound, "unknown rollup")
		return
	}
	docs, err := h.store.FindAll(r.Context(), h.cfg.Collections.Aggregated+"_"+name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read rollup")
		return
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, docs)
}
