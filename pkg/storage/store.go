package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sla-prediction-engine/pkg/model"
)

// Store persists scored telemetry and generated alerts. The bounded session
// lists live in memory; this is the durable record behind the stats, history,
// and export endpoints.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS telemetry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		bandwidth REAL NOT NULL,
		throughput REAL NOT NULL,
		congestion REAL NOT NULL,
		packet_loss REAL NOT NULL,
		latency REAL NOT NULL,
		jitter REAL NOT NULL,
		energy_efficiency REAL NOT NULL DEFAULT 0,
		carbon_footprint REAL NOT NULL DEFAULT 0,
		risk_score REAL NOT NULL,
		sla_violation INTEGER NOT NULL,
		correlation_id TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_telemetry_timestamp ON telemetry(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_telemetry_link ON telemetry(source, target);
	CREATE INDEX IF NOT EXISTS idx_telemetry_violation ON telemetry(sla_violation);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		risk_score REAL NOT NULL,
		correlation_id TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_severity ON alerts(severity);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// TelemetryRecord is a persisted sample plus the prediction that scored it.
type TelemetryRecord struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Target        string    `json:"target"`
	Bandwidth     float64   `json:"bandwidth"`
	Throughput    float64   `json:"throughput"`
	Congestion    float64   `json:"congestion"`
	PacketLoss    float64   `json:"packet_loss"`
	Latency       float64   `json:"latency"`
	Jitter        float64   `json:"jitter"`
	RiskScore     float64   `json:"risk_score"`
	SLAViolation  bool      `json:"sla_violation"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CreatedAt     string    `json:"createdAt"`
}

func (s *Store) InsertPrediction(p model.Prediction, correlationID string) (int64, error) {
	query := `
		INSERT INTO telemetry (
			timestamp, source, target, bandwidth, throughput, congestion,
			packet_loss, latency, jitter, energy_efficiency, carbon_footprint,
			risk_score, sla_violation, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	ts := p.Result.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	violation := 0
	if p.Result.SLAViolation {
		violation = 1
	}

	res, err := s.db.Exec(query,
		ts.Format(time.RFC3339), p.Sample.Source, p.Sample.Target,
		p.Sample.Bandwidth, p.Sample.Throughput, p.Sample.Congestion,
		p.Sample.PacketLoss, p.Sample.Latency, p.Sample.Jitter,
		p.Sample.EnergyEfficiency, p.Sample.CarbonFootprint,
		p.Result.RiskScore, violation, correlationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert telemetry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

type HistoryOptions struct {
	Limit          int
	Offset         int
	Source         string
	Target         string
	ViolationsOnly bool
}

func (s *Store) GetTelemetryHistory(opts HistoryOptions) ([]TelemetryRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, timestamp, source, target, bandwidth, throughput,
		congestion, packet_loss, latency, jitter, risk_score, sla_violation,
		correlation_id, created_at FROM telemetry`
	var clauses []string
	args := []interface{}{}

	if opts.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Target != "" {
		clauses = append(clauses, "target = ?")
		args = append(args, opts.Target)
	}
	if opts.ViolationsOnly {
		clauses = append(clauses, "sla_violation = 1")
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	var records []TelemetryRecord
	for rows.Next() {
		var r TelemetryRecord
		var tsStr string
		var violation int
		var corrID sql.NullString

		if err := rows.Scan(&r.ID, &tsStr, &r.Source, &r.Target, &r.Bandwidth,
			&r.Throughput, &r.Congestion, &r.PacketLoss, &r.Latency, &r.Jitter,
			&r.RiskScore, &violation, &corrID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if ts, err := time.Parse(time.RFC3339, tsStr); err == nil {
			r.Timestamp = ts
		}
		r.SLAViolation = violation == 1
		if corrID.Valid {
			r.CorrelationID = corrID.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// AlertRecord is a persisted alert.
type AlertRecord struct {
	ID            int64          `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Type          string         `json:"type"`
	Severity      model.Severity `json:"severity"`
	Message       string         `json:"message"`
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	RiskScore     float64        `json:"risk_score"`
	CorrelationID string         `json:"correlationId,omitempty"`
	CreatedAt     string         `json:"createdAt"`
}

func (s *Store) InsertAlert(a model.Alert, correlationID string) (int64, error) {
	query := `
		INSERT INTO alerts (timestamp, type, severity, message, source, target, risk_score, correlation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.Exec(query, ts.Format(time.RFC3339), a.Type, string(a.Severity),
		a.Message, a.Source, a.Target, a.RiskScore, correlationID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

func (s *Store) GetAlertHistory(limit, offset int, severity string) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := "SELECT id, timestamp, type, severity, message, source, target, risk_score, correlation_id, created_at FROM alerts"
	args := []interface{}{}

	if severity != "" {
		query += " WHERE severity = ?"
		args = append(args, severity)
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		var tsStr, severityStr string
		var corrID sql.NullString

		if err := rows.Scan(&r.ID, &tsStr, &r.Type, &severityStr, &r.Message,
			&r.Source, &r.Target, &r.RiskScore, &corrID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if ts, err := time.Parse(time.RFC3339, tsStr); err == nil {
			r.Timestamp = ts
		}
		r.Severity = model.Severity(severityStr)
		if corrID.Valid {
			r.CorrelationID = corrID.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// Statistics summarizes the persisted record for the stats endpoint.
type Statistics struct {
	TotalRecords     int     `json:"totalRecords"`
	SLAViolations    int     `json:"slaViolations"`
	ViolationRate    float64 `json:"violationRate"`
	AvgLatency24h    float64 `json:"avgLatency24h"`
	AvgThroughput24h float64 `json:"avgThroughput24h"`
	AlertCount       int     `json:"alertCount"`
}

func (s *Store) GetStatistics() (*Statistics, error) {
	stats := &Statistics{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM telemetry").Scan(&stats.TotalRecords); err != nil {
		return nil, fmt.Errorf("failed to count telemetry: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM telemetry WHERE sla_violation = 1").Scan(&stats.SLAViolations); err != nil {
		return nil, fmt.Errorf("failed to count violations: %w", err)
	}
	if stats.TotalRecords > 0 {
		stats.ViolationRate = float64(stats.SLAViolations) / float64(stats.TotalRecords) * 100
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	var avgLatency, avgThroughput sql.NullFloat64
	err := s.db.QueryRow(
		"SELECT AVG(latency), AVG(throughput) FROM telemetry WHERE timestamp >= ?", cutoff,
	).Scan(&avgLatency, &avgThroughput)
	if err != nil {
		return nil, fmt.Errorf("failed to average recent telemetry: %w", err)
	}
	if avgLatency.Valid {
		stats.AvgLatency24h = avgLatency.Float64
	}
	if avgThroughput.Valid {
		stats.AvgThroughput24h = avgThroughput.Float64
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM alerts").Scan(&stats.AlertCount); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	return stats, nil
}
