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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/harborline/opswatch/internal/notify"
	"github.com/harborline/opswatch/internal/platform"
	"github.com/harborline/opswatch/internal/store"
	"github.com/harborline/opswatch/pkg/config"
	"github.com/harborline/opswatch/pkg/health"
	"github.com/harborline/opswatch/pkg/logging"
	"github.com/harborline/opswatch/pkg/metrics"
	"github.com/harborline/opswatch/pkg/resilience"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		ServiceName: "opswatch",
		Version:     version(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize notification logger: %v", err)
	}
	defer zapLogger.Sync()

	m := metrics.NewMetrics(metrics.DefaultConfig())

	// Database connection for the store health probe
	db, err := store.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger.Info("Database connection established",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
	)

	// Platform connection state, updated by the session layer
	platformStatus := platform.NewStatus()

	// Outbound notifications go to the webhook when one is configured,
	// otherwise alerts land in the log
	var sink notify.Sink
	if cfg.Alerting.WebhookURL != "" {
		webhook := notify.NewWebhookSink(cfg.Alerting.WebhookURL, zapLogger)
		sink = resilience.NewBreakerSink(webhook, resilience.DefaultBreakerConfig(), logger)
		logger.Info("Webhook notification sink configured")
	} else {
		sink = notify.NewLogSink(zapLogger)
		logger.Warn("No webhook URL configured, alerts will be logged only")
	}

	classifier := resilience.NewClassifier()
	tracker := resilience.NewTracker(resilience.TrackerConfig{
		Capacity:     cfg.Tracker.Capacity,
		RecentWindow: cfg.Tracker.RecentWindow,
	}, logger)
	throttler := resilience.NewThrottler(sink, resilience.ThrottleConfig{
		Cooldown:   cfg.Alerting.Cooldown,
		MaxRecords: cfg.Alerting.MaxRecords,
	}, logger, m)
	reporter := resilience.NewReporter(classifier, tracker, throttler, logger, m)

	registry := health.NewRegistry(health.Config{Interval: cfg.Health.Interval}, logger, m)
	registry.Register("store", health.StoreProbe(db, cfg.Health.StoreLatencyWarn), health.Options{Critical: true})
	registry.Register("platform", health.PlatformProbe(platformStatus), health.Options{Critical: true})
	registry.Register("sink", health.SinkProbe(sink), health.Options{})
	registry.Register("error_rate", health.ErrorRateProbe(reporter.Stats, cfg.Health.ErrorRateThreshold), health.Options{})
	registry.SetAlerter(throttler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry.Start(ctx)
	defer registry.Stop()

	router := setupRouter(registry, reporter, m)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func setupRouter(registry *health.Registry, reporter *resilience.Reporter, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", registry.Handler())
	router.GET("/healthz/live", registry.LivenessHandler())
	router.GET("/healthz/ready", registry.ReadinessHandler())
	router.GET("/metrics", m.Handler())

	debug := router.Group("/debug")
	{
		debug.GET("/errors", func(c *gin.Context) {
			c.JSON(http.StatusOK, reporter.Stats())
		})
	}

	return router
}

func version() string {
	if v := os.Getenv("SERVICE_VERSION"); v != "" {
		return v
	}
	return "dev"
}
