// Package main provides the caregiver API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/api/handlers"
	"github.com/medikid/go-doseflow/internal/api/middleware"
	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/internal/infrastructure/memory"
	"github.com/medikid/go-doseflow/internal/infrastructure/postgres"
	"github.com/medikid/go-doseflow/internal/observability/metrics"
	"github.com/medikid/go-doseflow/internal/observability/tracing"
	"github.com/medikid/go-doseflow/pkg/debounce"
)

// Config holds application configuration
type Config struct {
	Port         string
	DatabaseURL  string
	APIKeys      map[string]string
	OTLPEndpoint string
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := loadConfig()

	ctx := context.Background()

	if cfg.OTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("care-api")
		tcfg.OTLPEndpoint = cfg.OTLPEndpoint
		provider, err := tracing.Init(ctx, tcfg)
		if err != nil {
			logger.Fatal("tracing init failed", zap.Error(err))
		}
		defer provider.Shutdown(context.Background())
	}

	var (
		meds      medication.Repository
		schedules schedule.Repository
		instances dose.InstanceRepository
		logs      dose.LogRepository
		pool      *pgxpool.Pool
	)

	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		logger.Info("connected to database")

		meds = postgres.NewMedicationRepo(pool)
		schedules = postgres.NewScheduleRepo(pool)
		instances = postgres.NewInstanceRepo(pool, logger)
		logs = postgres.NewLogRepo(pool)
	} else {
		// In-memory storage for local development and demos
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		memLogs := memory.NewLogRepo()
		meds = memory.NewMedicationRepo()
		schedules = memory.NewScheduleRepo()
		instances = memory.NewInstanceRepo(memLogs)
		logs = memLogs
	}

	m := metrics.New()

	limiter := debounce.New(dose.SweepInterval)
	maintainer := dose.NewMaintainer(meds, schedules, instances, limiter, logger).WithRecorder(m)
	lifecycle := dose.NewLifecycle(instances, logs, meds, logger)
	reconciler := dose.NewReconciler(meds, schedules, instances, logger)
	service := dose.NewService(maintainer, instances, meds, logger)

	medHandler := handlers.NewMedicationHandler(meds, schedules, reconciler, lifecycle, m, logger)
	doseHandler := handlers.NewDoseHandler(service, lifecycle, m, logger)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("care-api"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/medications", medHandler.Routes())
		r.Mount("/doses", doseHandler.Routes())
		r.Get("/due", doseHandler.Due)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting care API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Demo keys; real deployments map gateway-issued keys to caregivers
	apiKeys := map[string]string{
		"demo-api-key-12345": "demo-caregiver",
		"test-api-key-67890": "test-caregiver",
	}
	if key := os.Getenv("API_KEY"); key != "" {
		caregiver := os.Getenv("API_KEY_CAREGIVER")
		if caregiver == "" {
			caregiver = "env-caregiver"
		}
		apiKeys[key] = caregiver
	}

	return Config{
		Port:         port,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		APIKeys:      apiKeys,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"care-api","version":"0.3.0"}`)
}
