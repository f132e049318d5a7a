package model

import "time"

// TelemetrySample is one periodic measurement of a source→target network
// link, produced by the external telemetry backend. Immutable once created.
type TelemetrySample struct {
	ID               int64     `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Source           string    `json:"source"`
	Target           string    `json:"target"`
	Bandwidth        float64   `json:"bandwidth"`
	Throughput       float64   `json:"throughput"`
	Congestion       float64   `json:"congestion"`
	PacketLoss       float64   `json:"packet_loss"`
	Latency          float64   `json:"latency"`
	Jitter           float64   `json:"jitter"`
	EnergyEfficiency float64   `json:"energy_efficiency"`
	CarbonFootprint  float64   `json:"carbon_footprint"`
}

type PredictionResult struct {
	RiskScore    float64   `json:"risk_score"`
	SLAViolation bool      `json:"sla_violation"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
}

// Prediction merges a sample with the result it produced.
type Prediction struct {
	Sample TelemetrySample  `json:"sample"`
	Result PredictionResult `json:"result"`
}

type AnomalyResult struct {
	IsAnomaly    bool      `json:"is_anomaly"`
	AnomalyScore float64   `json:"anomaly_score"`
	Explanation  string    `json:"explanation"`
	Timestamp    time.Time `json:"timestamp"`
}

type Anomaly struct {
	Sample TelemetrySample `json:"sample"`
	Result AnomalyResult   `json:"result"`
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityForRisk maps a risk score onto an alert severity.
func SeverityForRisk(riskScore float64) Severity {
	switch {
	case riskScore > 0.7:
		return SeverityHigh
	case riskScore > 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

type Alert struct {
	Type      string    `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	RiskScore float64   `json:"risk_score"`
}

// AlertSettings is session-held alerting configuration, edited through the
// API and never persisted.
type AlertSettings struct {
	EmailEnabled    bool   `json:"emailEnabled"`
	TelegramEnabled bool   `json:"telegramEnabled"`
	RiskThreshold   int    `json:"riskThreshold"`
	Email           string `json:"email"`
	TelegramChatID  string `json:"telegramChatId"`
}

const (
	MinRiskThreshold = 50
	MaxRiskThreshold = 95
)
