package scoring

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"sla-prediction-engine/pkg/model"
)

// SLAViolationThreshold is the risk score above which a prediction counts as
// an SLA violation. Strictly above: a score of exactly 0.7 is not a violation.
const SLAViolationThreshold = 0.7

// AnomalyThreshold is the anomaly score above which a sample is anomalous.
const AnomalyThreshold = 0.8

// Risk weights for the linear combination. Each term is clamped to [0,1]
// before weighting and the sum is clamped to [0,1].
const (
	weightLatency     = 0.30
	weightPacketLoss  = 0.25
	weightJitter      = 0.15
	weightCongestion  = 0.20
	weightUtilization = 0.10

	latencyScale    = 20.0
	packetLossScale = 10.0
	jitterScale     = 5.0
)

// Anomaly trip points and their additive contributions.
const (
	anomalyLatencyTrip    = 25.0
	anomalyPacketLossTrip = 15.0
	anomalyJitterTrip     = 8.0
	anomalyCongestionTrip = 90.0

	anomalyJitterMax = 0.2
)

// ValidationError reports a sample field that is missing or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sample: field %q %s", e.Field, e.Reason)
}

// Validate rejects samples the scoring formulas cannot safely consume.
func Validate(s model.TelemetrySample) error {
	checks := []struct {
		field string
		value float64
	}{
		{"bandwidth", s.Bandwidth},
		{"throughput", s.Throughput},
		{"congestion", s.Congestion},
		{"packet_loss", s.PacketLoss},
		{"latency", s.Latency},
		{"jitter", s.Jitter},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &ValidationError{Field: c.field, Reason: "is not a finite number"}
		}
		if c.value < 0 {
			return &ValidationError{Field: c.field, Reason: "must not be negative"}
		}
	}
	if s.Bandwidth == 0 {
		return &ValidationError{Field: "bandwidth", Reason: "must be greater than zero"}
	}
	if s.Congestion > 100 {
		return &ValidationError{Field: "congestion", Reason: "must not exceed 100"}
	}
	if s.PacketLoss > 100 {
		return &ValidationError{Field: "packet_loss", Reason: "must not exceed 100"}
	}
	return nil
}

// RiskScore computes the SLA violation risk for a valid sample. Deterministic
// and side-effect free.
func RiskScore(s model.TelemetrySample) float64 {
	risk := weightLatency*clamp01(s.Latency/latencyScale) +
		weightPacketLoss*clamp01(s.PacketLoss/packetLossScale) +
		weightJitter*clamp01(s.Jitter/jitterScale) +
		weightCongestion*clamp01(s.Congestion/100)

	utilization := s.Throughput / s.Bandwidth
	risk += weightUtilization * math.Max(0, (0.5-utilization)/0.5)

	return math.Min(risk, 1)
}

// Engine produces predictions and anomaly verdicts from telemetry samples.
// The random source feeding the confidence estimate and the anomaly
// perturbation is injectable so tests can pin it.
type Engine struct {
	modelVersion string
	randFn       func() float64
}

// NewEngine returns an engine backed by a time-seeded random source.
func NewEngine(modelVersion string) *Engine {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return NewEngineWithRand(modelVersion, rng.Float64)
}

// NewEngineWithRand returns an engine using the given source of values in
// [0,1).
func NewEngineWithRand(modelVersion string, randFn func() float64) *Engine {
	return &Engine{modelVersion: modelVersion, randFn: randFn}
}

func (e *Engine) ModelVersion() string {
	return e.modelVersion
}

// Predict validates the sample and computes its risk prediction.
func (e *Engine) Predict(s model.TelemetrySample) (model.PredictionResult, error) {
	if err := Validate(s); err != nil {
		return model.PredictionResult{}, err
	}

	risk := RiskScore(s)
	return model.PredictionResult{
		RiskScore:    risk,
		SLAViolation: risk > SLAViolationThreshold,
		Confidence:   0.85 + 0.1*e.randFn(),
		ModelVersion: e.modelVersion,
		Timestamp:    time.Now().UTC(),
	}, nil
}

// DetectAnomaly validates the sample and scores it against the anomaly trip
// points, with a bounded random perturbation on top of the base score.
func (e *Engine) DetectAnomaly(s model.TelemetrySample) (model.AnomalyResult, error) {
	if err := Validate(s); err != nil {
		return model.AnomalyResult{}, err
	}

	var score float64
	var reasons []string

	if s.Latency > anomalyLatencyTrip {
		score += 0.4
		reasons = append(reasons, fmt.Sprintf("High latency (%.1fms)", s.Latency))
	}
	if s.PacketLoss > anomalyPacketLossTrip {
		score += 0.3
		reasons = append(reasons, fmt.Sprintf("High packet loss (%.1f%%)", s.PacketLoss))
	}
	if s.Jitter > anomalyJitterTrip {
		score += 0.2
		reasons = append(reasons, fmt.Sprintf("High jitter (%.1fms)", s.Jitter))
	}
	if s.Congestion > anomalyCongestionTrip {
		score += 0.1
		reasons = append(reasons, fmt.Sprintf("High congestion (%.1f%%)", s.Congestion))
	}

	score = math.Min(score+e.randFn()*anomalyJitterMax, 1)
	isAnomaly := score > AnomalyThreshold

	explanation := strings.Join(reasons, "; ")
	if explanation == "" {
		if isAnomaly {
			explanation = "Unusual network pattern detected"
		} else {
			explanation = "Network metrics are within normal parameters"
		}
	}

	return model.AnomalyResult{
		IsAnomaly:    isAnomaly,
		AnomalyScore: score,
		Explanation:  explanation,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
