package history

import (
	"sync"

	"sla-prediction-engine/pkg/model"
)

// Caps for the session lists. Oldest entries are evicted once exceeded.
const (
	PredictionCap = 20
	AnomalyCap    = 10
	AlertCap      = 10
)

// Tracker owns the session state shared by the poll worker and the manual
// prediction path: the bounded prediction/anomaly/alert lists and the mutable
// alert settings. Both triggers run on independent goroutines, so every
// access goes through the mutex.
type Tracker struct {
	mu          sync.Mutex
	predictions *Log[model.Prediction]
	anomalies   *Log[model.Anomaly]
	alerts      *Log[model.Alert]
	settings    model.AlertSettings
}

func NewTracker(settings model.AlertSettings) *Tracker {
	return &Tracker{
		predictions: NewLog[model.Prediction](PredictionCap),
		anomalies:   NewLog[model.Anomaly](AnomalyCap),
		alerts:      NewLog[model.Alert](AlertCap),
		settings:    settings,
	}
}

func (t *Tracker) AddPrediction(p model.Prediction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.predictions.Push(p)
}

func (t *Tracker) AddAnomaly(a model.Anomaly) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anomalies.Push(a)
}

func (t *Tracker) AddAlert(a model.Alert) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alerts.Push(a)
}

func (t *Tracker) Predictions() []model.Prediction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.predictions.Items()
}

func (t *Tracker) Anomalies() []model.Anomaly {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.anomalies.Items()
}

func (t *Tracker) Alerts() []model.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alerts.Items()
}

func (t *Tracker) Settings() model.AlertSettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

func (t *Tracker) UpdateSettings(s model.AlertSettings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = s
}

// RiskThreshold returns the session alert threshold as a fraction in [0,1].
func (t *Tracker) RiskThreshold() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.settings.RiskThreshold) / 100.0
}
