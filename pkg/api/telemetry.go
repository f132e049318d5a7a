package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sla-prediction-engine/pkg/clients/telemetry"
	"sla-prediction-engine/pkg/config"

	"github.com/go-chi/chi/v5"
)

type TelemetryHandler struct {
	Client *telemetry.TelemetryClient
	Cfg    *config.Config
}

const MaxTimeRange = 7 * 24 * time.Hour

func (h *TelemetryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/link", h.GetLinkMetrics)
	return r
}

// GetLinkMetrics godoc
// @Summary Get link metrics
// @Description Fetches aggregated time series for a source→target link, or all links
// @Tags telemetry
// @Produce json
// @Param source query string false "Source node"
// @Param target query string false "Target node"
// @Param from query string true "Start timestamp (ISO 8601)"
// @Param to query string true "End timestamp (ISO 8601)"
// @Param step query int false "Step size in seconds" default(60)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /telemetry/link [get]
func (h *TelemetryHandler) GetLinkMetrics(w http.ResponseWriter, r *http.Request) {
	enabled, reason := h.Client.CheckStatus()
	if !enabled {
		respondError(w, http.StatusServiceUnavailable, reason)
		return
	}

	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	stepStr := r.URL.Query().Get("step")

	if fromStr == "" || toStr == "" {
		respondError(w, http.StatusBadRequest, "Missing required parameters: from, to")
		return
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid timestamp format")
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid timestamp format")
		return
	}

	if to.Sub(from) > MaxTimeRange {
		respondError(w, http.StatusBadRequest, "Time range exceeds maximum of 7 days")
		return
	}

	step := 60
	if stepStr != "" {
		if s, err := strconv.Atoi(stepStr); err == nil && s > 0 {
			step = s
		}
	}

	metrics, err := h.Client.GetLinkMetrics(r.Context(), source, target, fromStr, toStr, step)
	if err != nil {
		fmt.Printf("[Telemetry Error] Link metrics failed: %v\n", err)

		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := map[string]interface{}{
		"from":       fromStr,
		"to":         toStr,
		"step":       step,
		"datapoints": metrics,
	}
	if source != "" {
		resp["source"] = source
	}
	if target != "" {
		resp["target"] = target
	}

	respondJSON(w, http.StatusOK, resp)
}
