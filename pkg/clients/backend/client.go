package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sla-prediction-engine/pkg/common"
	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/model"
)

// Client talks to the external SLA backend API. Every call is retried up to
// MaxAttempts times with linearly increasing backoff; a non-2xx response
// counts as a failure. sendAlert is retried too: duplicate alert delivery is
// acceptable, lost alerts are not.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	sleep       func(time.Duration)
}

func NewClient(cfg config.BackendAPIConfig, retry config.RetryConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	maxAttempts := retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		maxAttempts: maxAttempts,
		backoff:     time.Duration(retry.BackoffMs) * time.Millisecond,
		sleep:       time.Sleep,
	}
}

// SendAlertResponse is the backend's acknowledgement of an alert dispatch.
type SendAlertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AlertPayload is the outbound alert dispatch request. Destination fields are
// taken from the session alert settings at dispatch time.
type AlertPayload struct {
	Type           string         `json:"type"`
	Severity       model.Severity `json:"severity"`
	Message        string         `json:"message"`
	Source         string         `json:"source"`
	Target         string         `json:"target"`
	Timestamp      time.Time      `json:"timestamp"`
	RiskScore      float64        `json:"risk_score"`
	Email          string         `json:"email,omitempty"`
	TelegramChatID string         `json:"telegram,omitempty"`
}

// ExportResponse carries serialized export data plus a suggested filename.
type ExportResponse struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

// HealthResponse is the backend's health report.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// CheckHealth probes the backend once, outside the retry policy.
func (c *Client) CheckHealth(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doOnce(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetTelemetry(ctx context.Context, limit int) ([]model.TelemetrySample, error) {
	var samples []model.TelemetrySample
	path := fmt.Sprintf("/telemetry/?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *Client) Predict(ctx context.Context, sample model.TelemetrySample) (model.PredictionResult, error) {
	var result model.PredictionResult
	if err := c.do(ctx, http.MethodPost, "/predict/", sample, &result); err != nil {
		return model.PredictionResult{}, err
	}
	return result, nil
}

func (c *Client) DetectAnomaly(ctx context.Context, sample model.TelemetrySample) (model.AnomalyResult, error) {
	var result model.AnomalyResult
	if err := c.do(ctx, http.MethodPost, "/anomaly/", sample, &result); err != nil {
		return model.AnomalyResult{}, err
	}
	return result, nil
}

func (c *Client) SendAlert(ctx context.Context, payload AlertPayload) (*SendAlertResponse, error) {
	var resp SendAlertResponse
	if err := c.do(ctx, http.MethodPost, "/alerts/send", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ExportData(ctx context.Context, exportType, format string) (*ExportResponse, error) {
	var resp ExportResponse
	path := fmt.Sprintf("/export/%s?format=%s", exportType, format)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do runs one request through the retry policy: attempts are made until one
// succeeds or maxAttempts is exhausted, sleeping attempt*backoff between
// tries, and the last failure is returned to the caller.
func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.doOnce(ctx, method, path, body, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < c.maxAttempts {
			logger.Warn("backend_retry", map[string]interface{}{
				"path":    path,
				"attempt": attempt,
				"error":   lastErr.Error(),
			})
			c.sleep(time.Duration(attempt) * c.backoff)
		}
	}

	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, dest interface{}) error {
	url := c.baseURL + path

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request failed: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if cid, ok := ctx.Value(common.CorrelationIDKey).(string); ok {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}

	return nil
}
