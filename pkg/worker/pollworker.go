package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sla-prediction-engine/pkg/clients/backend"
	"sla-prediction-engine/pkg/clients/telemetry"
	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
	"sla-prediction-engine/pkg/notify"
	"sla-prediction-engine/pkg/observability"
	"sla-prediction-engine/pkg/scoring"
	"sla-prediction-engine/pkg/storage"
	"sla-prediction-engine/pkg/ws"
)

// TelemetrySource fetches the latest telemetry batch.
type TelemetrySource interface {
	GetTelemetry(ctx context.Context, limit int) ([]model.TelemetrySample, error)
}

// Scorer produces predictions and anomaly verdicts for single samples. The
// local scoring engine and the remote backend client both satisfy it.
type Scorer interface {
	Predict(ctx context.Context, sample model.TelemetrySample) (model.PredictionResult, error)
	DetectAnomaly(ctx context.Context, sample model.TelemetrySample) (model.AnomalyResult, error)
}

// AlertDispatcher sends an alert out through the backend's channels.
type AlertDispatcher interface {
	SendAlert(ctx context.Context, payload backend.AlertPayload) (*backend.SendAlertResponse, error)
}

// LocalScorer adapts the embedded scoring engine to the Scorer interface.
type LocalScorer struct {
	Engine *scoring.Engine
}

func (s LocalScorer) Predict(_ context.Context, sample model.TelemetrySample) (model.PredictionResult, error) {
	return s.Engine.Predict(sample)
}

func (s LocalScorer) DetectAnomaly(_ context.Context, sample model.TelemetrySample) (model.AnomalyResult, error) {
	return s.Engine.DetectAnomaly(sample)
}

// Deps are the collaborators a PollWorker drives each tick. Store, Telemetry,
// Hub, and Metrics may be nil when the corresponding sink is disabled.
type Deps struct {
	Source    TelemetrySource
	Scorer    Scorer
	Alerter   *Alerter
	Tracker   *history.Tracker
	Notifier  notify.Notifier
	Store     *storage.Store
	Telemetry *telemetry.TelemetryClient
	Hub       *ws.Hub
	Metrics   *observability.Collector
}

// PollWorker periodically fetches telemetry, scores each sample, maintains
// the bounded session lists, and raises alerts when the risk threshold is
// crossed. A single goroutine runs the ticks, so no two ticks ever overlap;
// Stop suppresses future ticks without aborting one in flight.
type PollWorker struct {
	cfg     *config.Config
	deps    Deps
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	runLock sync.Mutex
}

func NewPollWorker(cfg *config.Config, deps Deps) *PollWorker {
	return &PollWorker{
		cfg:    cfg,
		deps:   deps,
		stopCh: make(chan struct{}),
	}
}

func (w *PollWorker) Start() {
	if !w.cfg.Poller.Enabled {
		logger.Info("[PollWorker] Disabled (POLL_WORKER_ENABLED=false)", nil)
		return
	}

	w.runLock.Lock()
	if w.running {
		w.runLock.Unlock()
		logger.Info("[PollWorker] Already running", nil)
		return
	}
	w.running = true
	w.runLock.Unlock()

	logger.Info(fmt.Sprintf("[PollWorker] Starting with %dms interval", w.cfg.Poller.PollIntervalMs), nil)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.poll()

		ticker := time.NewTicker(time.Duration(w.cfg.Poller.PollIntervalMs) * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
}

// Stop is safe to call multiple times; after the first call no further ticks
// are scheduled.
func (w *PollWorker) Stop() {
	w.runLock.Lock()
	if !w.running {
		w.runLock.Unlock()
		return
	}
	w.running = false
	w.runLock.Unlock()

	logger.Info("[PollWorker] Stopping...", nil)
	close(w.stopCh)
	w.wg.Wait()

	logger.Info("[PollWorker] Stopped", nil)
}

func (w *PollWorker) poll() {
	ctx := context.Background()

	if w.deps.Metrics != nil {
		w.deps.Metrics.PollTicks.Inc()
	}

	samples, err := w.deps.Source.GetTelemetry(ctx, w.cfg.Poller.FetchLimit)
	if err != nil {
		// Fail soft: previously accumulated state stays untouched.
		if w.deps.Metrics != nil {
			w.deps.Metrics.PollFailures.Inc()
		}
		logger.Error("[PollWorker] Telemetry fetch failed", err)
		w.deps.Notifier.Notify("Connection error", "Unable to reach the telemetry backend", model.SeverityMedium)
		return
	}

	batch := samples
	if len(batch) > w.cfg.Poller.BatchSize {
		batch = batch[:w.cfg.Poller.BatchSize]
	}

	var points []telemetry.LinkPoint
	for _, sample := range batch {
		if point, ok := w.processSample(ctx, sample); ok {
			points = append(points, point)
		}
	}

	if len(points) > 0 && w.deps.Telemetry != nil {
		if err := w.deps.Telemetry.WriteLinkMetrics(ctx, points); err != nil {
			logger.Error("[PollWorker] Write link metrics failed", err)
		}
	}

	logger.Info(fmt.Sprintf("[PollWorker] Poll complete: %d samples processed", len(batch)), nil)
}

// processSample runs one sample through prediction, alerting, and anomaly
// detection. Failures are isolated per step: a failed dispatch or detection
// never aborts the tick.
func (w *PollWorker) processSample(ctx context.Context, sample model.TelemetrySample) (telemetry.LinkPoint, bool) {
	if err := scoring.Validate(sample); err != nil {
		logger.Warn("[PollWorker] Skipping invalid sample", map[string]interface{}{
			"source": sample.Source,
			"target": sample.Target,
			"error":  err.Error(),
		})
		return telemetry.LinkPoint{}, false
	}

	point := telemetry.LinkPoint{Sample: sample}

	result, err := w.deps.Scorer.Predict(ctx, sample)
	if err != nil {
		logger.Error("[PollWorker] Prediction failed", err)
	} else {
		prediction := model.Prediction{Sample: sample, Result: result}
		w.deps.Tracker.AddPrediction(prediction)
		point.RiskScore = &result.RiskScore

		if w.deps.Metrics != nil {
			w.deps.Metrics.Predictions.Inc()
		}
		if w.deps.Store != nil {
			if _, err := w.deps.Store.InsertPrediction(prediction, ""); err != nil {
				logger.Error("[PollWorker] Persist prediction failed", err)
			}
		}
		if w.deps.Hub != nil {
			w.deps.Hub.Broadcast("prediction", prediction)
		}

		w.deps.Alerter.RaiseIfNeeded(ctx, sample, result)
	}

	anomaly, err := w.deps.Scorer.DetectAnomaly(ctx, sample)
	if err != nil {
		logger.Error("[PollWorker] Anomaly detection failed", err)
	} else {
		point.AnomalyScore = &anomaly.AnomalyScore
		if anomaly.IsAnomaly {
			w.deps.Tracker.AddAnomaly(model.Anomaly{Sample: sample, Result: anomaly})
			if w.deps.Metrics != nil {
				w.deps.Metrics.Anomalies.Inc()
			}
			if w.deps.Hub != nil {
				w.deps.Hub.Broadcast("anomaly", model.Anomaly{Sample: sample, Result: anomaly})
			}
			w.deps.Notifier.Notify(
				fmt.Sprintf("Network anomaly: %s → %s", sample.Source, sample.Target),
				anomaly.Explanation,
				model.SeverityHigh,
			)
		}
	}

	return point, true
}
