package worker

import (
	"context"
	"fmt"
	"time"

	"sla-prediction-engine/pkg/clients/backend"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/notify"
	"sla-prediction-engine/pkg/observability"
	"sla-prediction-engine/pkg/storage"
	"sla-prediction-engine/pkg/ws"
)

// Alerter turns high-risk predictions into alerts: session list, persistence,
// dashboard broadcast, and outbound dispatch. Shared by the poll loop and the
// predict-and-store path. Store, Hub, and Metrics may be nil.
type Alerter struct {
	Tracker    *history.Tracker
	Dispatcher AlertDispatcher
	Notifier   notify.Notifier
	Store      *storage.Store
	Hub        *ws.Hub
	Metrics    *observability.Collector
}

// RaiseIfNeeded generates an alert when the risk score exceeds the session
// threshold. Returns the alert, or nil when the threshold was not crossed.
// Dispatch failures are logged, never propagated: a lost notification must
// not abort the caller's tick.
func (a *Alerter) RaiseIfNeeded(ctx context.Context, sample model.TelemetrySample, result model.PredictionResult) *model.Alert {
	if result.RiskScore <= a.Tracker.RiskThreshold() {
		return nil
	}

	alert := model.Alert{
		Type:     "sla_violation",
		Severity: model.SeverityForRisk(result.RiskScore),
		Message: fmt.Sprintf("High SLA violation risk on %s → %s (%.1f%%)",
			sample.Source, sample.Target, result.RiskScore*100),
		Source:    sample.Source,
		Target:    sample.Target,
		Timestamp: time.Now().UTC(),
		RiskScore: result.RiskScore,
	}

	a.Tracker.AddAlert(alert)

	if a.Metrics != nil {
		a.Metrics.Alerts.WithLabelValues(string(alert.Severity)).Inc()
	}
	if a.Store != nil {
		if _, err := a.Store.InsertAlert(alert, ""); err != nil {
			logger.Error("[Alerter] Persist alert failed", err)
		}
	}
	if a.Hub != nil {
		a.Hub.Broadcast("alert", alert)
	}
	a.Notifier.Notify("SLA violation risk", alert.Message, alert.Severity)

	a.dispatch(ctx, alert)
	return &alert
}

func (a *Alerter) dispatch(ctx context.Context, alert model.Alert) {
	settings := a.Tracker.Settings()
	if !settings.EmailEnabled && !settings.TelegramEnabled {
		return
	}

	payload := backend.AlertPayload{
		Type:      alert.Type,
		Severity:  alert.Severity,
		Message:   alert.Message,
		Source:    alert.Source,
		Target:    alert.Target,
		Timestamp: alert.Timestamp,
		RiskScore: alert.RiskScore,
	}
	if settings.EmailEnabled {
		payload.Email = settings.Email
	}
	if settings.TelegramEnabled {
		payload.TelegramChatID = settings.TelegramChatID
	}

	if _, err := a.Dispatcher.SendAlert(ctx, payload); err != nil {
		logger.Error("[Alerter] Alert dispatch failed", err)
	}
}
