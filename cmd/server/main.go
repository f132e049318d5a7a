package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"sla-prediction-engine/pkg/api"
	"sla-prediction-engine/pkg/clients/backend"
	"sla-prediction-engine/pkg/clients/telemetry"
	"sla-prediction-engine/pkg/config"
	"sla-prediction-engine/pkg/history"
	"sla-prediction-engine/pkg/notify"
	"sla-prediction-engine/pkg/observability"
	"sla-prediction-engine/pkg/scoring"
	"sla-prediction-engine/pkg/storage"
	"sla-prediction-engine/pkg/worker"
	"sla-prediction-engine/pkg/ws"
)

// @title SLA Prediction Engine API
// @version 1.0
// @description API for the SLA Prediction Engine, responsible for SLA violation risk scoring, anomaly detection, and alerting over network telemetry.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@example.com

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

func main() {

	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	if err := config.ValidateEnv(); err != nil {
		log.Fatalf("❌ Configuration Error: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("SLA Prediction Engine started on port %d", cfg.Server.Port)
	log.Printf("Backend API URL: %s", cfg.BackendAPI.BaseURL)
	log.Printf("Telemetry store: %s", cfg.SQLite.DBPath)
	log.Printf("Scoring mode: %s (%s)", cfg.Scoring.Mode, cfg.Scoring.ModelVersion)

	store, err := storage.NewStore(cfg.SQLite.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	backendClient := backend.NewClient(cfg.BackendAPI, cfg.Retry)
	telemetryClient := telemetry.NewClient(cfg)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	hub := ws.NewHub()
	tracker := history.NewTracker(cfg.SessionSettings())
	notifier := notify.Multi{notify.LogNotifier{}, notify.HubNotifier{Hub: hub}}

	var scorer worker.Scorer
	if cfg.Scoring.Mode == "remote" {
		scorer = backendClient
	} else {
		scorer = worker.LocalScorer{Engine: scoring.NewEngine(cfg.Scoring.ModelVersion)}
	}

	alerter := &worker.Alerter{
		Tracker:    tracker,
		Dispatcher: backendClient,
		Notifier:   notifier,
		Store:      store,
		Hub:        hub,
		Metrics:    metrics,
	}

	apiHandler := &api.Handler{
		Config:    cfg,
		Backend:   backendClient,
		Telemetry: telemetryClient,
		Scorer:    scorer,
		Alerter:   alerter,
		Tracker:   tracker,
		Store:     store,
		Notifier:  notifier,
		Hub:       hub,
		StartTime: time.Now(),
	}
	alertsHandler := &api.AlertsHandler{Tracker: tracker, Store: store, Backend: backendClient}
	telemetryHandler := &api.TelemetryHandler{Client: telemetryClient, Cfg: cfg}
	exportHandler := &api.ExportHandler{Store: store}

	r := chi.NewRouter()

	r.Use(api.CorrelationMiddleware)

	// Swagger UI
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/swagger.json")
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("doc.json"), // The url pointing to API definition
	))

	r.Get("/health", apiHandler.HealthHandler)
	r.Post("/predict", apiHandler.PredictHandler)
	r.Post("/predict-and-store", apiHandler.PredictAndStoreHandler)
	r.Post("/anomaly", apiHandler.AnomalyHandler)
	r.Get("/predictions", apiHandler.PredictionsHandler)
	r.Get("/anomalies", apiHandler.AnomaliesHandler)
	r.Get("/stats", apiHandler.StatsHandler)
	r.Get("/history", apiHandler.HistoryHandler)

	alertsHandler.RegisterRoutes(r)
	r.Mount("/telemetry", telemetryHandler.Routes())
	r.Mount("/export", exportHandler.Routes())

	r.Get("/ws", hub.HandleUpgrade)
	r.Handle("/metrics", metrics.Handler())

	pollWorker := worker.NewPollWorker(cfg, worker.Deps{
		Source:    backendClient,
		Scorer:    scorer,
		Alerter:   alerter,
		Tracker:   tracker,
		Notifier:  notifier,
		Store:     store,
		Telemetry: telemetryClient,
		Hub:       hub,
		Metrics:   metrics,
	})
	pollWorker.Start()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	pollWorker.Stop()

	hub.Close()
	telemetryClient.Close()

	log.Println("Server exited")
}
