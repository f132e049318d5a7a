package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"sla-prediction-engine/pkg/model"
)

func defaultSettings() model.AlertSettings {
	return model.AlertSettings{RiskThreshold: 75}
}

func TestLogBounds(t *testing.T) {
	t.Run("keeps everything under the cap", func(t *testing.T) {
		l := NewLog[int](5)
		for i := 1; i <= 3; i++ {
			l.Push(i)
		}
		assert.Equal(t, 3, l.Len())
		assert.Equal(t, []int{3, 2, 1}, l.Items())
	})

	t.Run("evicts oldest beyond the cap", func(t *testing.T) {
		l := NewLog[int](5)
		for i := 1; i <= 12; i++ {
			l.Push(i)
		}
		assert.Equal(t, 5, l.Len())
		assert.Equal(t, []int{12, 11, 10, 9, 8}, l.Items())
	})

	t.Run("items returns a copy", func(t *testing.T) {
		l := NewLog[int](3)
		l.Push(1)
		items := l.Items()
		items[0] = 99
		assert.Equal(t, []int{1}, l.Items())
	})
}

func TestTrackerCaps(t *testing.T) {
	tr := NewTracker(defaultSettings())

	for i := 0; i < 25; i++ {
		tr.AddPrediction(model.Prediction{Sample: model.TelemetrySample{ID: int64(i)}})
		tr.AddAnomaly(model.Anomaly{Sample: model.TelemetrySample{ID: int64(i)}})
		tr.AddAlert(model.Alert{Message: fmt.Sprintf("alert-%d", i)})
	}

	predictions := tr.Predictions()
	assert.Len(t, predictions, PredictionCap)
	assert.Equal(t, int64(24), predictions[0].Sample.ID)
	assert.Equal(t, int64(5), predictions[len(predictions)-1].Sample.ID)

	anomalies := tr.Anomalies()
	assert.Len(t, anomalies, AnomalyCap)
	assert.Equal(t, int64(24), anomalies[0].Sample.ID)
	assert.Equal(t, int64(15), anomalies[len(anomalies)-1].Sample.ID)

	alerts := tr.Alerts()
	assert.Len(t, alerts, AlertCap)
	assert.Equal(t, "alert-24", alerts[0].Message)
	assert.Equal(t, "alert-15", alerts[len(alerts)-1].Message)
}

func TestTrackerSettings(t *testing.T) {
	tr := NewTracker(defaultSettings())
	assert.InDelta(t, 0.75, tr.RiskThreshold(), 1e-9)

	tr.UpdateSettings(model.AlertSettings{
		RiskThreshold: 90,
		EmailEnabled:  true,
		Email:         "ops@example.com",
	})

	settings := tr.Settings()
	assert.Equal(t, 90, settings.RiskThreshold)
	assert.True(t, settings.EmailEnabled)
	assert.InDelta(t, 0.90, tr.RiskThreshold(), 1e-9)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker(defaultSettings())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.AddPrediction(model.Prediction{})
				tr.Predictions()
				tr.RiskThreshold()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, tr.Predictions(), PredictionCap)
}
