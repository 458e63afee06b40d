package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	billingapp "github.com/schoolsaas/backend/internal/application/billing"
	meteringapp "github.com/schoolsaas/backend/internal/application/metering"
	"github.com/schoolsaas/backend/internal/infrastructure/audit"
	"github.com/schoolsaas/backend/internal/infrastructure/config"
	"github.com/schoolsaas/backend/internal/infrastructure/logger"
	inframetering "github.com/schoolsaas/backend/internal/infrastructure/metering"
	"github.com/schoolsaas/backend/internal/infrastructure/persistence"
	"github.com/schoolsaas/backend/internal/infrastructure/scheduler"
	"github.com/schoolsaas/backend/internal/infrastructure/telemetry"
	"github.com/schoolsaas/backend/internal/interfaces/http/handler"
	"github.com/schoolsaas/backend/internal/interfaces/http/middleware"
	"github.com/schoolsaas/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting subscription engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracer provider
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize Redis client for API call counting
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	log.Info("Redis connected successfully")

	// Initialize repositories
	planRepo := persistence.NewPlanRepository(db.DB)
	subscriptionRepo := persistence.NewSubscriptionRepository(db.DB)
	ledgerRepo := persistence.NewLedgerRepository(db.DB)
	sequenceRepo := persistence.NewInvoiceSequenceRepository(db.DB)
	limitRepo := persistence.NewResourceLimitRepository(db.DB)
	healthRepo := persistence.NewHealthRepository(db.DB)
	auditEventRepo := persistence.NewAuditEventRepository(db.DB)

	// Usage data sources
	usageSource := inframetering.NewSQLUsageSource(db.DB)
	apiCallCounter := inframetering.NewRedisAPICallCounter(redisClient, log)

	// Audit trail recorder
	var auditRecorder meteringapp.AuditRecorder
	if cfg.Audit.Enabled {
		recorder := audit.NewRecorder(auditEventRepo, cfg.Audit.BufferSize, log)
		defer recorder.Close()
		auditRecorder = recorder
	}

	// Application services
	subscriptionService := billingapp.NewSubscriptionService(planRepo, subscriptionRepo, ledgerRepo, sequenceRepo, log)
	planService := billingapp.NewPlanService(planRepo, log)
	usageMeter := meteringapp.NewUsageMeterService(usageSource, usageSource, usageSource, apiCallCounter, usageSource, log)
	limitEnforcer := meteringapp.NewLimitEnforcerService(
		limitRepo,
		subscriptionService,
		planRepo,
		usageMeter,
		auditRecorder,
		log,
		meteringapp.LimitEnforcerConfig{StalenessWindow: cfg.Limits.StalenessWindow},
	)
	healthMonitor := meteringapp.NewHealthMonitorService(
		limitEnforcer,
		subscriptionService,
		subscriptionRepo,
		planRepo,
		healthRepo,
		auditRecorder,
		log,
		meteringapp.HealthMonitorConfig{
			Workers:              cfg.Monitor.Workers,
			TenantTimeout:        cfg.Monitor.TenantTimeout,
			RenewalWarningWindow: cfg.Monitor.RenewalWarningWindow,
		},
	)

	// Periodic health sweep
	sweepTrigger := scheduler.NewSweepTrigger(cfg.Monitor.CronSchedule, healthMonitor, log)
	if cfg.Monitor.Enabled {
		if err := sweepTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start health sweep", zap.Error(err))
		}
		defer func() {
			if err := sweepTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping health sweep", zap.Error(err))
			}
		}()
		log.Info("Health sweep scheduled",
			zap.String("schedule", cfg.Monitor.CronSchedule),
			zap.Int("workers", cfg.Monitor.Workers),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first: request ID, panic recovery, request
	// logging, security headers, CORS, tracing, per-tenant usage tracking
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnrichment())

	engine.Use(middleware.UsageTracking(middleware.UsageTrackingConfig{
		Observer:  apiCallCounter,
		Checker:   limitEnforcer,
		SkipPaths: middleware.DefaultUsageTrackingSkipPaths(),
	}))

	// Liveness and readiness probes, outside API versioning
	systemHandler := handler.NewSystemHandler(map[string]handler.Pinger{
		"database": func(ctx context.Context) error { return db.Ping() },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	systemHandler.RegisterRoutes(engine)

	// API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewSubscriptionHandler(subscriptionService)).
		Register(handler.NewPlanHandler(planService)).
		Register(handler.NewLimitsHandler(limitEnforcer)).
		Register(handler.NewHealthHandler(healthMonitor, sweepTrigger))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
