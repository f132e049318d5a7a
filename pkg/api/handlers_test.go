package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/scoring"
	"sla-prediction-engine/pkg/worker"
	"sla-prediction-engine/pkg/ws"
)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingNotifier) Notify(title, message string, severity model.Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
}

func newTestHandler(t *testing.T, threshold int) (*Handler, *history.Tracker, *recordingNotifier) {
	t.Helper()

	tracker := history.NewTracker(model.AlertSettings{RiskThreshold: threshold})
	notifier := &recordingNotifier{}
	scorer := worker.LocalScorer{Engine: scoring.NewEngineWithRand("v1.0", func() float64 { return 0.5 })}

	h := &Handler{
		Config:    &config.Config{Scoring: config.ScoringConfig{Mode: "local", ModelVersion: "v1.0"}},
		Scorer:    scorer,
		Alerter:   &worker.Alerter{Tracker: tracker, Notifier: notifier},
		Tracker:   tracker,
		Notifier:  notifier,
		Hub:       ws.NewHub(),
		StartTime: time.Now(),
	}
	return h, tracker, notifier
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func validBody() model.TelemetrySample {
	return model.TelemetrySample{
		Source:     "node-a",
		Target:     "node-b",
		Bandwidth:  100,
		Throughput: 80,
		Congestion: 30,
		PacketLoss: 2,
		Latency:    10,
		Jitter:     1,
	}
}

func TestPredictHandler(t *testing.T) {
	t.Run("scores a valid sample", func(t *testing.T) {
		h, tracker, _ := newTestHandler(t, 75)

		rec := postJSON(t, h.PredictHandler, validBody())
		require.Equal(t, http.StatusOK, rec.Code)

		var result model.PredictionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.GreaterOrEqual(t, result.RiskScore, 0.0)
		assert.LessOrEqual(t, result.RiskScore, 1.0)
		assert.Equal(t, "v1.0", result.ModelVersion)

		assert.Len(t, tracker.Predictions(), 1)
	})

	t.Run("names the invalid field", func(t *testing.T) {
		h, tracker, _ := newTestHandler(t, 75)

		body := validBody()
		body.Bandwidth = 0

		rec := postJSON(t, h.PredictHandler, body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "bandwidth")
		assert.Empty(t, tracker.Predictions())
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		h, _, _ := newTestHandler(t, 75)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		h.PredictHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPredictAndStoreHandler(t *testing.T) {
	t.Run("raises an alert above the threshold", func(t *testing.T) {
		h, tracker, _ := newTestHandler(t, 50)

		body := validBody()
		body.Latency = 30
		body.PacketLoss = 20
		body.Jitter = 10
		body.Congestion = 95
		body.Throughput = 1
		body.Bandwidth = 4

		rec := postJSON(t, h.PredictAndStoreHandler, body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp, "alert")

		alerts := tracker.Alerts()
		require.Len(t, alerts, 1)
		assert.Equal(t, model.SeverityHigh, alerts[0].Severity)
	})

	t.Run("no alert below the threshold", func(t *testing.T) {
		h, tracker, _ := newTestHandler(t, 75)

		rec := postJSON(t, h.PredictAndStoreHandler, validBody())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotContains(t, resp, "alert")
		assert.Empty(t, tracker.Alerts())
	})
}

func TestAnomalyHandler(t *testing.T) {
	h, _, _ := newTestHandler(t, 75)

	body := validBody()
	body.Latency = 30
	body.PacketLoss = 20
	body.Jitter = 10

	rec := postJSON(t, h.AnomalyHandler, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		IsAnomaly         bool    `json:"is_anomaly"`
		AnomalyScore      float64 `json:"anomaly_score"`
		Explanation       string  `json:"explanation"`
		RecommendedAction string  `json:"recommended_action"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// base 0.9 plus 0.5*0.2 clamps at 1.0
	assert.True(t, resp.IsAnomaly)
	assert.InDelta(t, 1.0, resp.AnomalyScore, 1e-9)
	assert.Contains(t, resp.Explanation, "High latency (30.0ms)")
	assert.Equal(t, "immediate_investigation", resp.RecommendedAction)
}

func TestSessionListHandlers(t *testing.T) {
	h, tracker, _ := newTestHandler(t, 75)

	for i := 0; i < 3; i++ {
		tracker.AddPrediction(model.Prediction{Sample: validBody()})
	}
	tracker.AddAnomaly(model.Anomaly{Sample: validBody()})

	rec := httptest.NewRecorder()
	h.PredictionsHandler(rec, httptest.NewRequest(http.MethodGet, "/predictions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var predResp struct {
		Count       int                `json:"count"`
		Predictions []model.Prediction `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &predResp))
	assert.Equal(t, 3, predResp.Count)
	assert.Len(t, predResp.Predictions, 3)

	rec = httptest.NewRecorder()
	h.AnomaliesHandler(rec, httptest.NewRequest(http.MethodGet, "/anomalies", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var anomResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &anomResp))
	assert.Equal(t, 1, anomResp.Count)
}

func TestAlertSettingsEndpoints(t *testing.T) {
	tracker := history.NewTracker(model.AlertSettings{RiskThreshold: 75})
	h := &AlertsHandler{Tracker: tracker}

	putSettings := func(s model.AlertSettings) *httptest.ResponseRecorder {
		payload, err := json.Marshal(s)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPut, "/alerts/settings", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		h.UpdateSettings(rec, req)
		return rec
	}

	t.Run("accepts a valid update", func(t *testing.T) {
		rec := putSettings(model.AlertSettings{
			RiskThreshold: 90,
			EmailEnabled:  true,
			Email:         "ops@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 90, tracker.Settings().RiskThreshold)
	})

	t.Run("rejects a threshold below 50", func(t *testing.T) {
		rec := putSettings(model.AlertSettings{RiskThreshold: 40})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 90, tracker.Settings().RiskThreshold)
	})

	t.Run("rejects a threshold above 95", func(t *testing.T) {
		rec := putSettings(model.AlertSettings{RiskThreshold: 96})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires an address for an enabled channel", func(t *testing.T) {
		rec := putSettings(model.AlertSettings{RiskThreshold: 80, EmailEnabled: true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "email")

		rec = putSettings(model.AlertSettings{RiskThreshold: 80, TelegramEnabled: true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "telegramChatId")
	})

	t.Run("get returns current settings", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetSettings(rec, httptest.NewRequest(http.MethodGet, "/alerts/settings", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var settings model.AlertSettings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
		assert.Equal(t, 90, settings.RiskThreshold)
	})

	t.Run("session alert list", func(t *testing.T) {
		tracker.AddAlert(model.Alert{Type: "sla_violation", Severity: model.SeverityHigh})

		rec := httptest.NewRecorder()
		h.ListAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Count  int           `json:"count"`
			Alerts []model.Alert `json:"alerts"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})
}
