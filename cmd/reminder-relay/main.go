// Package main provides the reminder relay service entry point. It
// drains the transactional outbox into the reminder topics and runs the
// periodic maintenance jobs that do not belong on the request path.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/infrastructure/postgres"
	"github.com/medikid/go-doseflow/internal/infrastructure/redpanda"
	"github.com/medikid/go-doseflow/internal/observability/metrics"
	"github.com/medikid/go-doseflow/pkg/circuitbreaker"
)

const (
	maintenanceInterval = 5 * time.Minute
	cleanupRetention    = 7 * 24 * time.Hour
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	brokers := []string{"localhost:9092"}
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		brokers = strings.Split(b, ",")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	logger.Info("connected to database")

	admin, err := redpanda.NewAdmin(brokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx); err != nil {
		logger.Fatal("topic creation failed", zap.Error(err))
	}
	admin.Close()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = brokers

	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()

	logger.Info("connected to broker", zap.Strings("brokers", brokers))

	m := metrics.New()

	breaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("reminder-publisher"), logger)
	if err != nil {
		logger.Fatal("circuit breaker creation failed", zap.Error(err))
	}
	breaker.OnStateChange(func(s circuitbreaker.State) {
		m.CircuitBreakerState.WithLabelValues("reminder-publisher").Set(stateValue(s))
	})

	publisher := &guardedPublisher{producer: producer, breaker: breaker}

	outbox, err := postgres.NewOutbox(pool, publisher, postgres.DefaultOutboxConfig(), logger)
	if err != nil {
		logger.Fatal("outbox creation failed", zap.Error(err))
	}

	instances := postgres.NewInstanceRepo(pool, logger)

	outbox.Start()

	maintCtx, stopMaint := context.WithCancel(ctx)
	go maintenanceLoop(maintCtx, outbox, instances, m, logger)

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9091"
	}
	metricsServer := &http.Server{Addr: ":" + metricsPort, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	logger.Info("reminder relay started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	stopMaint()
	outbox.Stop()
	metricsServer.Close()
	logger.Info("reminder relay stopped")
}

// maintenanceLoop runs the periodic jobs: repair resolutions whose status
// flip was lost, retire exhausted entries to the dead letter topic, prune
// old processed entries and refresh the backlog gauge.
func maintenanceLoop(ctx context.Context, outbox *postgres.Outbox, instances *postgres.InstanceRepo, m *metrics.Metrics, logger *zap.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		repaired, err := instances.RecoverStuckResolutions(ctx)
		if err != nil {
			logger.Error("resolution recovery failed", zap.Error(err))
		} else if repaired > 0 {
			m.ResolutionRepairs.Add(float64(repaired))
			logger.Info("stuck resolutions repaired", zap.Int64("count", repaired))
		}

		moved, err := outbox.MoveToDeadLetter(ctx)
		if err != nil {
			logger.Error("dead letter move failed", zap.Error(err))
		} else if moved > 0 {
			logger.Warn("entries moved to dead letter", zap.Int64("count", moved))
		}

		if _, err := outbox.CleanupProcessed(ctx, cleanupRetention); err != nil {
			logger.Error("outbox cleanup failed", zap.Error(err))
		}

		stats, err := outbox.GetStats(ctx)
		if err != nil {
			logger.Error("outbox stats failed", zap.Error(err))
			continue
		}
		m.OutboxPending.Set(float64(stats.Pending))
	}
}

// guardedPublisher adapts the producer to OutboxPublisher behind the
// circuit breaker
type guardedPublisher struct {
	producer *redpanda.Producer
	breaker  *circuitbreaker.CircuitBreaker
}

func (g *guardedPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	_, err := g.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, g.producer.ProduceMessage(ctx, topic, key, value)
	})
	return err
}

func stateValue(s circuitbreaker.State) float64 {
	switch s {
	case circuitbreaker.StateOpen:
		return 1
	case circuitbreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
