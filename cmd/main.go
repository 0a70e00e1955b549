package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/adilet/payment-risk-engine/internal/alerts"
	"github.com/adilet/payment-risk-engine/internal/api"
	"github.com/adilet/payment-risk-engine/internal/audit"
	"github.com/adilet/payment-risk-engine/internal/catalogue"
	"github.com/adilet/payment-risk-engine/internal/config"
	"github.com/adilet/payment-risk-engine/internal/metrics"
	"github.com/adilet/payment-risk-engine/internal/narrative"
	"github.com/adilet/payment-risk-engine/internal/patterns"
	"github.com/adilet/payment-risk-engine/internal/repository"
	"github.com/adilet/payment-risk-engine/internal/rules"
	"github.com/adilet/payment-risk-engine/internal/service"
	"github.com/adilet/payment-risk-engine/internal/telemetry"
	"github.com/adilet/payment-risk-engine/internal/verdict"
)

func main() {
	cfg := config.Load()

	if err := telemetry.Init("risk-decision-engine", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("starting risk decision engine")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitDB(db); err != nil {
		telemetry.Logger.Fatal("failed to initialize database", zap.Error(err))
	}

	ruleRepo := repository.NewRuleRepository(db)
	verdictRepo := repository.NewVerdictRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		// Enrichment is optional by contract; the engine runs without it.
		telemetry.Logger.Warn("NATS unavailable, narrative enrichment disabled", zap.Error(err))
		nc = nil
	} else {
		defer nc.Close()
	}

	verdictWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "risk.verdict.assigned",
		Balancer: &kafka.LeastBytes{},
	}
	defer verdictWriter.Close()

	auditWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "risk.audit.recorded",
		Balancer: &kafka.LeastBytes{},
	}
	defer auditWriter.Close()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	cat := catalogue.New(ruleRepo, telemetry.Logger)
	if err := cat.Refresh(rootCtx); err != nil {
		telemetry.Logger.Warn("initial catalogue load failed, decisions degrade to pattern-only", zap.Error(err))
	}
	go cat.Run(rootCtx, cfg.Engine.CatalogueRefresh)

	collector := metrics.NewCollector()
	auditLogger := audit.NewLogger(auditRepo, auditWriter, telemetry.Logger)

	pipeline := service.NewPipeline(cfg.Engine, service.Deps{
		Catalogue:   cat,
		Evaluator:   rules.NewEvaluator(telemetry.Logger),
		Detector:    patterns.NewDetector(cfg.Engine, telemetry.Logger),
		Calculator:  verdict.NewCalculator(cfg.Engine.SuspiciousThreshold, cfg.Engine.FailThreshold),
		Alerts:      alerts.NewGenerator(alertRepo, redisClient, cfg.Engine.DedupWindow, telemetry.Logger),
		Audit:       auditLogger,
		Enricher:    narrative.NewEnricher(nc, cfg.Engine.EnrichmentTimeout, cfg.Engine.BreakerMaxFailures, cfg.Engine.BreakerCooldown, telemetry.Logger),
		Verdicts:    verdictRepo,
		AlertLookup: alertRepo,
		RedisClient: redisClient,
		KafkaWriter: verdictWriter,
		Metrics:     collector,
		Logger:      telemetry.Logger,
	})

	go pipeline.ConsumeDecisionRequests(rootCtx, cfg.KafkaBrokers)

	r := api.NewRouter(pipeline, cat, verdictRepo, alertRepo, auditRepo, collector)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		telemetry.Logger.Info("risk decision engine listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("shutting down...")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("server exited")
}
