package notify

import (
	"fmt"

	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/ws"
)

// Notifier surfaces user-visible notifications. The scoring and polling core
// depends only on this interface, never on a UI transport.
type Notifier interface {
	Notify(title, message string, severity model.Severity)
}

// LogNotifier writes notifications to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(title, message string, severity model.Severity) {
	logger.Info(fmt.Sprintf("[Notify] %s", title), map[string]interface{}{
		"message":  message,
		"severity": severity,
	})
}

// HubNotifier pushes notifications to connected dashboards as toast events.
type HubNotifier struct {
	Hub *ws.Hub
}

func (n HubNotifier) Notify(title, message string, severity model.Severity) {
	n.Hub.Broadcast("notification", map[string]interface{}{
		"title":    title,
		"message":  message,
		"severity": severity,
	})
}

// Multi fans one notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(title, message string, severity model.Severity) {
	for _, n := range m {
		n.Notify(title, message, severity)
	}
}
