package config

import (
	"fmt"
	"os"
	"strconv"

	"sla-prediction-engine/pkg/model"
)

type Config struct {
	Server     ServerConfig
	BackendAPI BackendAPIConfig
	Retry      RetryConfig
	Poller     PollerConfig
	Scoring    ScoringConfig
	Alerts     AlertsConfig
	Influx     InfluxConfig
	SQLite     SQLiteConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port int
}

type BackendAPIConfig struct {
	BaseURL   string
	TimeoutMs int
}

type RetryConfig struct {
	MaxAttempts int
	BackoffMs   int
}

type PollerConfig struct {
	Enabled        bool
	PollIntervalMs int
	FetchLimit     int
	BatchSize      int
}

type ScoringConfig struct {
	// Mode selects where predictions come from: "local" runs the embedded
	// scoring engine, "remote" calls the backend API.
	Mode         string
	ModelVersion string
}

type AlertsConfig struct {
	EmailEnabled    bool
	TelegramEnabled bool
	RiskThreshold   int
	Email           string
	TelegramChatID  string
}

type InfluxConfig struct {
	Host     string
	Token    string
	Database string
}

type SQLiteConfig struct {
	DBPath string
}

type TelemetryConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 5000),
		},
		BackendAPI: BackendAPIConfig{
			BaseURL:   getBackendBaseURL(),
			TimeoutMs: getEnvInt("BACKEND_API_TIMEOUT_MS", 5000),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BackoffMs:   getEnvInt("RETRY_BACKOFF_MS", 1000),
		},
		Poller: PollerConfig{
			Enabled:        getEnv("POLL_WORKER_ENABLED", "true") != "false",
			PollIntervalMs: getEnvInt("POLL_INTERVAL_MS", 8000),
			FetchLimit:     getEnvInt("POLL_FETCH_LIMIT", 10),
			BatchSize:      getEnvInt("POLL_BATCH_SIZE", 3),
		},
		Scoring: ScoringConfig{
			Mode:         getEnv("SCORING_MODE", "local"),
			ModelVersion: getEnv("SCORING_MODEL_VERSION", "v1.0"),
		},
		Alerts: AlertsConfig{
			EmailEnabled:    getEnv("ALERT_EMAIL_ENABLED", "false") == "true",
			TelegramEnabled: getEnv("ALERT_TELEGRAM_ENABLED", "false") == "true",
			RiskThreshold:   getEnvInt("ALERT_RISK_THRESHOLD", 75),
			Email:           getEnv("ALERT_EMAIL", ""),
			TelegramChatID:  getEnv("ALERT_TELEGRAM_CHAT_ID", ""),
		},
		Influx: InfluxConfig{
			Host:     getEnv("INFLUX_HOST", ""),
			Token:    getEnv("INFLUX_TOKEN", ""),
			Database: getEnv("INFLUX_DATABASE", ""),
		},
		SQLite: SQLiteConfig{
			DBPath: getEnv("SQLITE_DB_PATH", "./data/telemetry.db"),
		},
		Telemetry: TelemetryConfig{
			Enabled: getEnv("TELEMETRY_ENABLED", "true") != "false",
		},
	}

	if cfg.Scoring.Mode != "local" && cfg.Scoring.Mode != "remote" {
		return nil, fmt.Errorf("SCORING_MODE must be 'local' or 'remote', got %q", cfg.Scoring.Mode)
	}
	if cfg.Alerts.RiskThreshold < model.MinRiskThreshold || cfg.Alerts.RiskThreshold > model.MaxRiskThreshold {
		return nil, fmt.Errorf("ALERT_RISK_THRESHOLD must be between %d and %d, got %d",
			model.MinRiskThreshold, model.MaxRiskThreshold, cfg.Alerts.RiskThreshold)
	}

	return cfg, nil
}

func ValidateEnv() error {
	v1 := os.Getenv("BACKEND_API_BASE_URL")
	v2 := os.Getenv("SLA_BACKEND_URL")

	if v1 == "" && v2 == "" {
		return fmt.Errorf("BACKEND_API_BASE_URL (or SLA_BACKEND_URL) is required")
	}
	return nil
}

func getBackendBaseURL() string {
	if v := os.Getenv("BACKEND_API_BASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("SLA_BACKEND_URL"); v != "" {
		return v
	}
	return "http://sla-backend:8000"
}

// SessionSettings derives the initial session alert settings from config.
func (c *Config) SessionSettings() model.AlertSettings {
	return model.AlertSettings{
		EmailEnabled:    c.Alerts.EmailEnabled,
		TelegramEnabled: c.Alerts.TelegramEnabled,
		RiskThreshold:   c.Alerts.RiskThreshold,
		Email:           c.Alerts.Email,
		TelegramChatID:  c.Alerts.TelegramChatID,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
