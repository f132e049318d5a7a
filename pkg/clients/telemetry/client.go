package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/model"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

type TelemetryClient struct {
	client     influxdb2.Client
	httpClient *http.Client
	writeAPI   api.WriteAPIBlocking
	cfg        *config.Config
}

// LinkMetric is one aggregated datapoint of a source→target link time series.
type LinkMetric struct {
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Latency      float64 `json:"latency"`
	PacketLoss   float64 `json:"packetLoss"`
	Jitter       float64 `json:"jitter"`
	Congestion   float64 `json:"congestion"`
	Throughput   float64 `json:"throughput"`
	RiskScore    float64 `json:"riskScore"`
	AnomalyScore float64 `json:"anomalyScore"`
}

// LinkPoint is one scored sample bound for the link_metrics measurement.
// Score fields are optional: a point may carry only raw telemetry.
type LinkPoint struct {
	Sample       model.TelemetrySample
	RiskScore    *float64
	AnomalyScore *float64
}

type influxQLResponse struct {
	Results []struct {
		Series []struct {
			Name    string            `json:"name"`
			Columns []string          `json:"columns"`
			Values  [][]interface{}   `json:"values"`
			Tags    map[string]string `json:"tags"`
		} `json:"series"`
		Error string `json:"error,omitempty"`
	} `json:"results"`
	Error string `json:"error,omitempty"`
}

func NewClient(cfg *config.Config) *TelemetryClient {
	if cfg.Influx.Host == "" || cfg.Influx.Token == "" {
		return &TelemetryClient{cfg: cfg}
	}

	client := influxdb2.NewClient(cfg.Influx.Host, cfg.Influx.Token)

	org := "default"

	writeAPI := client.WriteAPIBlocking(org, cfg.Influx.Database)

	return &TelemetryClient{
		client:     client,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		writeAPI:   writeAPI,
		cfg:        cfg,
	}
}

func (c *TelemetryClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *TelemetryClient) CheckStatus() (bool, string) {
	if !c.cfg.Telemetry.Enabled {
		return false, "Telemetry endpoints disabled. Set TELEMETRY_ENABLED=true to enable."
	}
	if c.client == nil {
		return false, "InfluxDB not configured. Set INFLUX_HOST, INFLUX_TOKEN, INFLUX_DATABASE"
	}
	return true, ""
}

func (c *TelemetryClient) queryInfluxQL(ctx context.Context, q string) (*influxQLResponse, error) {
	u, err := url.Parse(c.cfg.Influx.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid influx host: %w", err)
	}
	u.Path = "/query"
	query := u.Query()
	query.Set("db", c.cfg.Influx.Database)
	query.Set("q", q)
	query.Set("epoch", "ns")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Influx.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("influx query failed (status %d): %s", resp.StatusCode, string(body))
	}

	var res influxQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("influx api error: %s", res.Error)
	}
	if len(res.Results) > 0 && res.Results[0].Error != "" {
		return nil, fmt.Errorf("influx query error: %s", res.Results[0].Error)
	}

	return &res, nil
}

func (c *TelemetryClient) GetLinkMetrics(ctx context.Context, source, target, from, to string, stepSeconds int) ([]LinkMetric, error) {

	stepStr := fmt.Sprintf("%ds", stepSeconds)

	baseQuery := `SELECT
		mean("latency") AS "avg_latency",
		mean("packet_loss") AS "avg_packet_loss",
		mean("jitter") AS "avg_jitter",
		mean("congestion") AS "avg_congestion",
		mean("throughput") AS "avg_throughput",
		mean("risk_score") AS "avg_risk_score",
		mean("anomaly_score") AS "avg_anomaly_score"
		FROM "link_metrics"
		WHERE time >= '%s' AND time < '%s'`

	whereClause := fmt.Sprintf(baseQuery, from, to)

	if source != "" {
		whereClause += fmt.Sprintf(" AND \"source\" = '%s'", escapeString(source))
	}
	if target != "" {
		whereClause += fmt.Sprintf(" AND \"target\" = '%s'", escapeString(target))
	}

	query := fmt.Sprintf(`%s GROUP BY time(%s), "source", "target" fill(none)`, whereClause, stepStr)

	res, err := c.queryInfluxQL(ctx, query)
	if err != nil {
		return nil, err
	}

	var metrics []LinkMetric

	for _, result := range res.Results {
		for _, series := range result.Series {

			sourceTag := series.Tags["source"]
			targetTag := series.Tags["target"]

			colMap := make(map[string]int)
			for i, col := range series.Columns {
				colMap[col] = i
			}

			for _, row := range series.Values {

				if len(row) != len(series.Columns) {
					continue
				}

				getFloat := func(name string) float64 {
					idx, ok := colMap[name]
					if !ok || row[idx] == nil {
						return 0
					}

					if f, ok := row[idx].(float64); ok {
						return f
					}

					return 0
				}

				getTime := func() string {
					idx, ok := colMap["time"]
					if !ok || row[idx] == nil {
						return ""
					}

					if s, ok := row[idx].(string); ok {
						return s
					}

					if f, ok := row[idx].(float64); ok {
						t := time.Unix(0, int64(f))
						return t.Format(time.RFC3339)
					}
					return ""
				}

				m := LinkMetric{
					Timestamp:    getTime(),
					Source:       sourceTag,
					Target:       targetTag,
					Latency:      getFloat("avg_latency"),
					PacketLoss:   getFloat("avg_packet_loss"),
					Jitter:       getFloat("avg_jitter"),
					Congestion:   getFloat("avg_congestion"),
					Throughput:   getFloat("avg_throughput"),
					RiskScore:    getFloat("avg_risk_score"),
					AnomalyScore: getFloat("avg_anomaly_score"),
				}
				metrics = append(metrics, m)
			}
		}
	}

	return metrics, nil
}

func (c *TelemetryClient) WriteLinkMetrics(ctx context.Context, points []LinkPoint) error {
	if c.writeAPI == nil {
		return nil
	}
	var influxPoints []*write.Point
	now := time.Now()

	for _, p := range points {
		fields := map[string]interface{}{
			"bandwidth":         p.Sample.Bandwidth,
			"throughput":        p.Sample.Throughput,
			"congestion":        p.Sample.Congestion,
			"packet_loss":       p.Sample.PacketLoss,
			"latency":           p.Sample.Latency,
			"jitter":            p.Sample.Jitter,
			"energy_efficiency": p.Sample.EnergyEfficiency,
			"carbon_footprint":  p.Sample.CarbonFootprint,
		}
		if p.RiskScore != nil {
			fields["risk_score"] = *p.RiskScore
		}
		if p.AnomalyScore != nil {
			fields["anomaly_score"] = *p.AnomalyScore
		}

		ts := p.Sample.Timestamp
		if ts.IsZero() {
			ts = now
		}

		pt := influxdb2.NewPoint(
			"link_metrics",
			map[string]string{
				"source": p.Sample.Source,
				"target": p.Sample.Target,
			},
			fields,
			ts,
		)
		influxPoints = append(influxPoints, pt)
	}

	if len(influxPoints) > 0 {
		return c.writeAPI.WritePoint(ctx, influxPoints...)
	}
	return nil
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
