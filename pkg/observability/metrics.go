package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the polling loop and the
// scoring surface.
type Collector struct {
	gatherer prometheus.Gatherer

	PollTicks    prometheus.Counter
	PollFailures prometheus.Counter
	Predictions  prometheus.Counter
	Anomalies    prometheus.Counter
	Alerts       *prometheus.CounterVec
}

// NewCollector registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poll_ticks_total",
			Help: "Total number of telemetry poll ticks.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poll_failures_total",
			Help: "Total number of poll ticks that failed to fetch telemetry.",
		}),
		Predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of risk predictions produced.",
		}),
		Anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anomalies_total",
			Help: "Total number of samples flagged anomalous.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_total",
			Help: "Total number of alerts generated, labeled by severity.",
		}, []string{"severity"}),
	}

	for _, m := range []prometheus.Collector{
		c.PollTicks, c.PollFailures, c.Predictions, c.Anomalies, c.Alerts,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler serves the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
