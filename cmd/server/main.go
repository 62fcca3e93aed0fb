package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/freshtable/billing/internal/application/billing"
	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/infrastructure/cache"
	"github.com/freshtable/billing/internal/infrastructure/config"
	"github.com/freshtable/billing/internal/infrastructure/logger"
	"github.com/freshtable/billing/internal/infrastructure/persistence"
	"github.com/freshtable/billing/internal/infrastructure/scheduler"
	"github.com/freshtable/billing/internal/infrastructure/telemetry"
	"github.com/freshtable/billing/internal/interfaces/http/handler"
	"github.com/freshtable/billing/internal/interfaces/http/middleware"
	"github.com/freshtable/billing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
		Env:        cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	db, err := persistence.NewDatabase(&cfg.Database, persistence.DatabaseOptions{
		Logger:       log,
		LogLevel:     cfg.Log.GormLevel,
		TraceQueries: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQuery:    cfg.Log.SlowQuery,
		LockWait:     cfg.Log.LockWait,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	// Billing services
	repos := appbilling.Repositories{
		Invoices:        persistence.NewGormInvoiceRepository(db.DB),
		Payments:        persistence.NewGormPaymentRecordRepository(db.DB),
		Allocations:     persistence.NewGormAllocationRepository(db.DB),
		Credits:         persistence.NewGormCreditRepository(db.DB),
		CreditUsages:    persistence.NewGormCreditUsageRepository(db.DB),
		InvoicePayments: persistence.NewGormInvoicePaymentRepository(db.DB),
		Refunds:         persistence.NewGormRefundRepository(db.DB),
	}
	txManager := persistence.NewGormTxManager(db.DB)
	orders := persistence.NewGormOrderStatusSync(db.DB)
	notifications := persistence.NewGormNotificationStore(db.DB)
	ledger := appbilling.NewCreditLedger(repos.Credits, repos.CreditUsages, repos.Refunds)

	allocationService := appbilling.NewAllocationService(txManager, repos, ledger,
		persistence.NewGormTransferMarker(db.DB), notifications, log)
	creditService := appbilling.NewCreditService(txManager, repos, ledger, orders, log)
	refundService := appbilling.NewRefundService(txManager, repos, ledger, notifications, log)
	invoicePaymentService := appbilling.NewInvoicePaymentService(txManager, repos, orders, log)
	intakeService := appbilling.NewPaymentIntakeService(txManager, repos, orders, log)

	dispatcher := appbilling.NewDispatcher(
		allocationService,
		creditService,
		refundService,
		invoicePaymentService,
		intakeService,
	)

	// Idempotency-Key store
	idemStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cfg.Idempotency,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	if idemStore != nil {
		defer func() {
			_ = idemStore.Close()
		}()
	}

	// Bank transfer mailbox
	mailboxCfg := scheduler.DefaultMailboxRunnerConfig()
	mailboxCfg.Enabled = cfg.Mailbox.Enabled
	if cfg.Mailbox.PollInterval > 0 {
		mailboxCfg.PollInterval = cfg.Mailbox.PollInterval
	}
	if cfg.Mailbox.BatchSize > 0 {
		mailboxCfg.BatchSize = cfg.Mailbox.BatchSize
	}
	mailbox, err := scheduler.NewMailboxRunner(persistence.NewGormMailboxPoller(db.DB), intakeService, log, mailboxCfg)
	if err != nil {
		log.Fatal("Failed to create mailbox runner", zap.Error(err))
	}
	if err := mailbox.Start(ctx); err != nil {
		log.Fatal("Failed to start mailbox runner", zap.Error(err))
	}
	defer func() {
		if err := mailbox.Stop(context.Background()); err != nil {
			log.Warn("Mailbox runner did not stop cleanly", zap.Error(err))
		}
	}()

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.ServiceName != "" {
		tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(tracingCfg))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	idempotency := middleware.Idempotency(idemStore, shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	}, log)

	router.NewRouter(engine, router.WithLogger(log)).
		Register(router.BillingGroups(router.BillingHandlers{
			Payments: handler.NewPaymentHandler(dispatcher),
			Invoices: handler.NewInvoiceHandler(dispatcher, invoicePaymentService),
			Credits:  handler.NewCreditHandler(dispatcher, creditService),
			Refunds:  handler.NewRefundHandler(dispatcher, refundService),

			Notifications: handler.NewNotificationHandler(notifications),
		}, idempotency)...).
		Setup()

	router.RegisterSystemRoutes(engine, handler.NewSystemHandler(cfg.App.Name, version, db))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
