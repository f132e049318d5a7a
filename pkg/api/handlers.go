package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"sla-prediction-engine/pkg/clients/backend"
	"sla-prediction-engine/pkg/clients/telemetry"
	"sla-prediction-engine/pkg/common"
	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/notify"
	"sla-prediction-engine/pkg/scoring"
	"sla-prediction-engine/pkg/storage"
	"sla-prediction-engine/pkg/worker"
	"sla-prediction-engine/pkg/ws"
)

type Handler struct {
	Config    *config.Config
	Backend   *backend.Client
	Telemetry *telemetry.TelemetryClient
	Scorer    worker.Scorer
	Alerter   *worker.Alerter
	Tracker   *history.Tracker
	Store     *storage.Store
	Notifier  notify.Notifier
	Hub       *ws.Hub
	StartTime time.Time
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	uptimeSeconds := time.Since(h.StartTime).Seconds()

	uptimeSeconds = float64(int(uptimeSeconds*10)) / 10.0

	ctx := r.Context()
	backendHealth, err := h.Backend.CheckHealth(ctx)

	status := "ok"
	var backendAPI interface{}

	if err == nil {
		backendAPI = map[string]interface{}{
			"connected": true,
			"status":    backendHealth.Status,
			"baseUrl":   h.Config.BackendAPI.BaseURL,
			"timeoutMs": h.Config.BackendAPI.TimeoutMs,
		}
	} else {
		status = "degraded"
		backendAPI = map[string]interface{}{
			"connected": false,
			"error":     err.Error(),
			"baseUrl":   h.Config.BackendAPI.BaseURL,
			"timeoutMs": h.Config.BackendAPI.TimeoutMs,
		}
	}

	telemetryStatus := map[string]interface{}{"enabled": false}
	if h.Telemetry != nil {
		enabled, reason := h.Telemetry.CheckStatus()
		telemetryStatus["enabled"] = enabled
		if reason != "" {
			telemetryStatus["reason"] = reason
		}
	}

	resp := map[string]interface{}{
		"status":     status,
		"backendApi": backendAPI,
		"scoring": map[string]interface{}{
			"mode":         h.Config.Scoring.Mode,
			"modelVersion": h.Config.Scoring.ModelVersion,
		},
		"poller": map[string]interface{}{
			"enabled":    h.Config.Poller.Enabled,
			"intervalMs": h.Config.Poller.PollIntervalMs,
		},
		"store":            h.Store != nil,
		"telemetry":        telemetryStatus,
		"dashboardClients": h.Hub.ClientCount(),
		"uptimeSeconds":    uptimeSeconds,
	}

	respondJSON(w, http.StatusOK, resp)
}

// HistoryHandler serves the persisted scored-telemetry record with optional
// link and violation filters.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "History store not configured")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	records, err := h.Store.GetTelemetryHistory(storage.HistoryOptions{
		Limit:          limit,
		Offset:         offset,
		Source:         q.Get("source"),
		Target:         q.Get("target"),
		ViolationsOnly: q.Get("violations") == "true",
	})
	if err != nil {
		logger.Error("History query failed", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// PredictHandler is the manual prediction trigger: one sample, no batching,
// outside the poll cadence. The merged prediction still lands in the session
// list.
func (h *Handler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	var sample model.TelemetrySample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Scorer.Predict(r.Context(), sample)
	if err != nil {
		var vErr *scoring.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		logger.Error("Manual prediction failed", err)
		h.Notifier.Notify("Prediction failed", err.Error(), model.SeverityMedium)
		respondError(w, http.StatusBadGateway, "Prediction failed")
		return
	}

	prediction := model.Prediction{Sample: sample, Result: result}
	h.Tracker.AddPrediction(prediction)
	if h.Hub != nil {
		h.Hub.Broadcast("prediction", prediction)
	}
	h.Notifier.Notify("Prediction complete",
		fmt.Sprintf("Risk %.1f%% for %s → %s", result.RiskScore*100, sample.Source, sample.Target),
		model.SeverityLow)

	respondJSON(w, http.StatusOK, result)
}

// PredictAndStoreHandler predicts, persists the scored sample, and raises an
// alert when the session risk threshold is crossed.
func (h *Handler) PredictAndStoreHandler(w http.ResponseWriter, r *http.Request) {
	var sample model.TelemetrySample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Scorer.Predict(r.Context(), sample)
	if err != nil {
		var vErr *scoring.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		logger.Error("Predict-and-store failed", err)
		respondError(w, http.StatusBadGateway, "Prediction failed")
		return
	}

	prediction := model.Prediction{Sample: sample, Result: result}
	h.Tracker.AddPrediction(prediction)

	var recordID int64
	if h.Store != nil {
		recordID, err = h.Store.InsertPrediction(prediction, common.GetCorrelationID(r.Context()))
		if err != nil {
			logger.Error("Persist prediction failed", err)
			respondError(w, http.StatusInternalServerError, "Failed to store prediction")
			return
		}
	}

	alert := h.Alerter.RaiseIfNeeded(r.Context(), sample, result)

	resp := map[string]interface{}{
		"id":     recordID,
		"result": result,
	}
	if alert != nil {
		resp["alert"] = alert
	}

	respondJSON(w, http.StatusOK, resp)
}

// AnomalyHandler runs stateless anomaly detection on the posted sample.
func (h *Handler) AnomalyHandler(w http.ResponseWriter, r *http.Request) {
	var sample model.TelemetrySample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Scorer.DetectAnomaly(r.Context(), sample)
	if err != nil {
		var vErr *scoring.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		logger.Error("Anomaly detection failed", err)
		respondError(w, http.StatusBadGateway, "Anomaly detection failed")
		return
	}

	recommendedAction := "monitor_closely"
	if result.AnomalyScore > 0.8 {
		recommendedAction = "immediate_investigation"
	}

	resp := map[string]interface{}{
		"is_anomaly":         result.IsAnomaly,
		"anomaly_score":      result.AnomalyScore,
		"explanation":        result.Explanation,
		"timestamp":          result.Timestamp,
		"recommended_action": recommendedAction,
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) PredictionsHandler(w http.ResponseWriter, r *http.Request) {
	items := h.Tracker.Predictions()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(items),
		"predictions": items,
	})
}

func (h *Handler) AnomaliesHandler(w http.ResponseWriter, r *http.Request) {
	items := h.Tracker.Anomalies()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(items),
		"anomalies": items,
	})
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Statistics store not configured")
		return
	}

	stats, err := h.Store.GetStatistics()
	if err != nil {
		logger.Error("Statistics query failed", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := map[string]interface{}{
		"totalRecords":     stats.TotalRecords,
		"slaViolations":    stats.SLAViolations,
		"violationRate":    stats.ViolationRate,
		"avgLatency24h":    stats.AvgLatency24h,
		"avgThroughput24h": stats.AvgThroughput24h,
		"alertCount":       stats.AlertCount,
		"modelVersion":     h.Config.Scoring.ModelVersion,
		"scoringMode":      h.Config.Scoring.Mode,
	}

	respondJSON(w, http.StatusOK, resp)
}
