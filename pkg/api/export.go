package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sla-prediction-engine/pkg/logger"
	"sla-prediction-engine/pkg/storage"
)

// ExportHandler serves downloadable snapshots of the persisted record. The
// response shape is {data, filename} so the dashboard can trigger a client
// side download; format=json returns the rows directly.
type ExportHandler struct {
	Store *storage.Store
}

func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/sla-metrics", h.ExportSLAMetrics)
	r.Get("/bandwidth-usage", h.ExportBandwidthUsage)
	return r
}

func (h *ExportHandler) ExportSLAMetrics(w http.ResponseWriter, r *http.Request) {
	records, ok := h.fetch(w, r)
	if !ok {
		return
	}

	format := exportFormat(r)
	if format == "json" {
		respondJSON(w, http.StatusOK, records)
		return
	}
	if format != "csv" {
		respondError(w, http.StatusBadRequest, "Unsupported format")
		return
	}

	header := []string{"timestamp", "source", "target", "latency", "packet_loss", "sla_violation", "throughput", "bandwidth"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Timestamp.Format(time.RFC3339),
			rec.Source,
			rec.Target,
			formatFloat(rec.Latency),
			formatFloat(rec.PacketLoss),
			strconv.FormatBool(rec.SLAViolation),
			formatFloat(rec.Throughput),
			formatFloat(rec.Bandwidth),
		})
	}

	h.respondCSV(w, "sla_metrics", header, rows)
}

func (h *ExportHandler) ExportBandwidthUsage(w http.ResponseWriter, r *http.Request) {
	records, ok := h.fetch(w, r)
	if !ok {
		return
	}

	format := exportFormat(r)

	type usageRow struct {
		Timestamp          time.Time `json:"timestamp"`
		Source             string    `json:"source"`
		Target             string    `json:"target"`
		Bandwidth          float64   `json:"bandwidth"`
		Throughput         float64   `json:"throughput"`
		UtilizationPercent float64   `json:"utilization_percent"`
	}

	usage := make([]usageRow, 0, len(records))
	for _, rec := range records {
		utilization := 0.0
		if rec.Bandwidth > 0 {
			utilization = rec.Throughput / rec.Bandwidth * 100
		}
		usage = append(usage, usageRow{
			Timestamp:          rec.Timestamp,
			Source:             rec.Source,
			Target:             rec.Target,
			Bandwidth:          rec.Bandwidth,
			Throughput:         rec.Throughput,
			UtilizationPercent: utilization,
		})
	}

	if format == "json" {
		respondJSON(w, http.StatusOK, usage)
		return
	}
	if format != "csv" {
		respondError(w, http.StatusBadRequest, "Unsupported format")
		return
	}

	header := []string{"timestamp", "source", "target", "bandwidth", "throughput", "utilization_percent"}
	rows := make([][]string, 0, len(usage))
	for _, u := range usage {
		rows = append(rows, []string{
			u.Timestamp.Format(time.RFC3339),
			u.Source,
			u.Target,
			formatFloat(u.Bandwidth),
			formatFloat(u.Throughput),
			fmt.Sprintf("%.2f", u.UtilizationPercent),
		})
	}

	h.respondCSV(w, "bandwidth_usage", header, rows)
}

func (h *ExportHandler) fetch(w http.ResponseWriter, r *http.Request) ([]storage.TelemetryRecord, bool) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "Export store not configured")
		return nil, false
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 1000
	}

	records, err := h.Store.GetTelemetryHistory(storage.HistoryOptions{Limit: limit})
	if err != nil {
		logger.Error("Export query failed", err)
		respondError(w, http.StatusInternalServerError, "Export failed")
		return nil, false
	}
	return records, true
}

func (h *ExportHandler) respondCSV(w http.ResponseWriter, prefix string, header []string, rows [][]string) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Write(header)
	cw.WriteAll(rows)
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Error("CSV encode failed", err)
		respondError(w, http.StatusInternalServerError, "Export failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"data":     buf.String(),
		"filename": fmt.Sprintf("%s_%s.csv", prefix, time.Now().Format("20060102_150405")),
	})
}

func exportFormat(r *http.Request) string {
	format := r.URL.Query().Get("format")
	if format == "" {
		return "csv"
	}
	return format
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
