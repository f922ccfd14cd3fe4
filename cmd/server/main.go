package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tilver/backend/internal/bootstrap"
	"github.com/tilver/backend/internal/infrastructure/config"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/infrastructure/scheduler"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"github.com/tilver/backend/internal/interfaces/http/handler"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
	"github.com/tilver/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/tilver/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Ledger API
//	@version		1.0
//	@description	Invoices, expenses, payments, recurring billing and bank reconciliation per tenant.
//	@description	Every request carries X-Tenant-ID; writes also carry X-User-ID.

//	@contact.name	API Support
//	@contact.url	https://github.com/tilver/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantID
//	@in							header
//	@name						X-Tenant-ID

//	@securityDefinitions.apikey	UserID
//	@in							header
//	@name						X-User-ID

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = providers.BridgeLogger(log, zapcore.InfoLevel)

	log.Info("Starting ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", telemetry.ServiceVersion),
	)

	meter := providers.Meter("ledger")
	ledger, err := bootstrap.New(ctx, cfg, meter, log)
	if err != nil {
		log.Fatal("Failed to initialize ledger", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ledger.Close(closeCtx); err != nil {
			log.Error("Error closing ledger", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully",
		zap.Bool("distributed_coordination", ledger.Coordination.Distributed))

	// Recurring invoices and the overdue sweep
	if cfg.Recurring.Enabled {
		sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
			Workers:       cfg.Recurring.Workers,
			QueueSize:     cfg.Recurring.QueueSize,
			JobTimeout:    cfg.Recurring.JobTimeout,
			RetryAttempts: 2,
			RetryDelay:    time.Minute,
		}, scheduler.NewRecurringExecutor(ledger.Recurring, log), log)
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := sched.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			Interval:   cfg.Recurring.Interval,
			BatchSize:  cfg.Recurring.BatchSize,
			MaxRetries: 2,
		}, sched, ledger.Recurring, log)
		trigger.SetOverdueSweep(ledger.InvoiceRepo, ledger.Invoices)
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start recurring trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping recurring trigger", zap.Error(err))
			}
		}()
		log.Info("Recurring scheduler started", zap.Duration("interval", cfg.Recurring.Interval))
	}

	// Setup Gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Telemetry.Profiling.Enabled

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}

	engine.Use(
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Tracing.Enabled,
		}),
		middleware.SecureWithConfig(middleware.DefaultSecurityConfig()),
		middleware.CORSWithConfig(cors),
		middleware.Tenant(middleware.DefaultTenantConfig()),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meter, log),
		middleware.ProfilingWithConfig(profiling),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	var heavy *middleware.RateLimiter
	if cfg.HTTP.HeavyRateLimit > 0 {
		heavy = middleware.NewRateLimiter(cfg.HTTP.HeavyRateLimit, time.Minute)
		defer heavy.Stop()
	}

	health := handler.NewHealthHandler(cfg.App.Name, telemetry.ServiceVersion, map[string]handler.Pinger{
		"database": ledger.DB,
	})

	r := router.NewRouter(engine)
	r.Register(router.LedgerGroups(router.LedgerHandlers{
		Invoice:        handler.NewInvoiceHandler(ledger.Invoices),
		Expense:        handler.NewExpenseHandler(ledger.Expenses),
		Payment:        handler.NewPaymentHandler(ledger.Payments),
		Recurring:      handler.NewRecurringHandler(ledger.Recurring),
		Reconciliation: handler.NewReconciliationHandler(ledger.Reconciliation, cfg.HTTP.MaxUploadSize),
		Report:         handler.NewReportHandler(ledger.TaxReports),
		Health:         health,
	}, router.LedgerLimits{
		MaxBodySize:   cfg.HTTP.MaxBodySize,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		Heavy:         heavy,
	})...)
	r.Setup()

	// Root health check for load balancers
	engine.GET("/health", health.Health)

	if cfg.HTTP.SwaggerEnabled {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
