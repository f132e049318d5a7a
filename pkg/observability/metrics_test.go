package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.PollTicks.Inc()
	c.PollTicks.Inc()
	c.PollFailures.Inc()
	c.Predictions.Inc()
	c.Anomalies.Inc()
	c.Alerts.WithLabelValues("high").Inc()
	c.Alerts.WithLabelValues("high").Inc()
	c.Alerts.WithLabelValues("medium").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.PollTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PollFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Predictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Anomalies))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Alerts.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Alerts.WithLabelValues("medium")))
}

func TestCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.Predictions.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "predictions_total 1"))
	assert.True(t, strings.Contains(body, "poll_ticks_total"))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}
