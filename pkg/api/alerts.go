package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sla-prediction-engine/pkg/clients/backend"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/storage"
)

type AlertsHandler struct {
	Tracker *history.Tracker
	Store   *storage.Store
	Backend *backend.Client
}

func (h *AlertsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts", h.ListAlerts)
	r.Get("/alerts/history", h.AlertHistory)
	r.Post("/alerts/send", h.SendAlert)
	r.Get("/alerts/settings", h.GetSettings)
	r.Put("/alerts/settings", h.UpdateSettings)
}

// ListAlerts returns the bounded session alert list, newest first.
func (h *AlertsHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	items := h.Tracker.Alerts()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(items),
		"alerts": items,
	})
}

// AlertHistory godoc
// @Summary Get persisted alert history
// @Description Returns alerts from the durable store, newest first
// @Tags alerts
// @Produce json
// @Param limit query int false "Max records" default(50)
// @Param offset query int false "Offset" default(0)
// @Param severity query string false "Filter by severity (low|medium|high)"
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string
// @Router /alerts/history [get]
func (h *AlertsHandler) AlertHistory(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Alert store not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	severity := r.URL.Query().Get("severity")

	records, err := h.Store.GetAlertHistory(limit, offset, severity)
	if err != nil {
		logger.Error("Alert history query failed", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(records),
		"alerts": records,
	})
}

// SendAlert forwards an alert payload to the backend's delivery channels.
func (h *AlertsHandler) SendAlert(w http.ResponseWriter, r *http.Request) {
	var payload backend.AlertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := h.Tracker.Settings()
	if payload.Email == "" && settings.EmailEnabled {
		payload.Email = settings.Email
	}
	if payload.TelegramChatID == "" && settings.TelegramEnabled {
		payload.TelegramChatID = settings.TelegramChatID
	}

	resp, err := h.Backend.SendAlert(r.Context(), payload)
	if err != nil {
		logger.Error("Alert dispatch failed", err)
		respondError(w, http.StatusBadGateway, "Failed to send alert")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *AlertsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Tracker.Settings())
}

// UpdateSettings replaces the session alert settings. The risk threshold is
// a percentage and must stay within [50,95].
func (h *AlertsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.AlertSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if settings.RiskThreshold < model.MinRiskThreshold || settings.RiskThreshold > model.MaxRiskThreshold {
		respondError(w, http.StatusBadRequest, "riskThreshold must be between 50 and 95")
		return
	}
	if settings.EmailEnabled && settings.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required when emailEnabled is true")
		return
	}
	if settings.TelegramEnabled && settings.TelegramChatID == "" {
		respondError(w, http.StatusBadRequest, "telegramChatId is required when telegramEnabled is true")
		return
	}

	h.Tracker.UpdateSettings(settings)
	respondJSON(w, http.StatusOK, settings)
}
