// Package bootstrap wires configuration, storage and application services
// into a ready-to-use ledger. The HTTP server and the ledgerctl command share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/application/reconciliation"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/infrastructure/cache"
	"github.com/tilver/backend/internal/infrastructure/config"
	"github.com/tilver/backend/internal/infrastructure/event"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/infrastructure/persistence"
	"github.com/tilver/backend/internal/infrastructure/storage"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Ledger holds the wired services and the resources behind them
type Ledger struct {
	DB           *persistence.Database
	Coordination *cache.Coordination
	Bus          *event.InMemoryEventBus
	Metrics      *telemetry.LedgerMetrics

	InvoiceRepo *persistence.GormInvoiceRepository

	Invoices       *appinvoicing.InvoiceService
	Expenses       *appinvoicing.ExpenseService
	Payments       *appinvoicing.PaymentService
	Recurring      *appinvoicing.RecurringService
	Reconciliation *reconciliation.Service
	TaxReports     *report.TaxReportService

	logger *zap.Logger
}

// New opens the database, connects coordination stores and builds every
// service. meter may be a no-op meter. Callers must Close the result.
func New(ctx context.Context, cfg *config.Config, meter metric.Meter, log *zap.Logger) (*Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{logger: log}

	db, err := persistence.NewDatabaseWithLogger(
		&cfg.Database,
		log,
		logger.MapGormLogLevel(cfg.Log.Level),
		cfg.Telemetry.Tracing.DBSlowQueryThresh,
	)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	l.DB = db

	if cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Tracing.Enabled {
		plugin, err := telemetry.NewDBPlugin(meter, telemetry.DBConfig{
			Trace:         cfg.Telemetry.Tracing.Enabled && cfg.Telemetry.Tracing.DBTraceEnabled,
			FullSQL:       cfg.Telemetry.Tracing.DBLogFullSQL,
			SlowThreshold: cfg.Telemetry.Tracing.DBSlowQueryThresh,
		}, log)
		if err != nil {
			return nil, l.abort(ctx, fmt.Errorf("create database plugin: %w", err))
		}
		if err := db.DB.Use(plugin); err != nil {
			return nil, l.abort(ctx, fmt.Errorf("register database plugin: %w", err))
		}
	}

	factory := cache.NewCoordinationFactory(cfg.Redis, cache.WithLogger(log))
	if cfg.Recurring.IdempotencyBackend == "redis" {
		coord, err := factory.Create(ctx)
		if err != nil {
			return nil, l.abort(ctx, err)
		}
		l.Coordination = coord
	} else {
		l.Coordination = factory.InMemory()
	}

	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Meter: meter, Logger: log})
	if err != nil {
		return nil, l.abort(ctx, fmt.Errorf("create ledger metrics: %w", err))
	}
	l.Metrics = metrics

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	expenseRepo := persistence.NewGormExpenseRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	templateRepo := persistence.NewGormRecurringTemplateRepository(db.DB)
	l.InvoiceRepo = invoiceRepo

	l.Bus = event.NewInMemoryEventBus(log, event.WithAsyncDispatch())
	l.Bus.Subscribe(event.NewAuditLogHandler(log))
	if cfg.Storage.Enabled() {
		if err := l.subscribeArchive(ctx, cfg, invoiceRepo); err != nil {
			return nil, l.abort(ctx, err)
		}
	}

	l.Invoices = appinvoicing.NewInvoiceService(invoiceRepo)
	l.Invoices.SetEventPublisher(l.Bus)
	l.Invoices.SetLedgerMetrics(metrics)
	l.Invoices.SetLogger(log)

	policy := invoicing.NewThresholdApprovalPolicy(cfg.Approval.Threshold, cfg.Approval.AllowSystem)
	l.Expenses = appinvoicing.NewExpenseService(expenseRepo, paymentRepo, policy)
	l.Expenses.SetEventPublisher(l.Bus)
	l.Expenses.SetLedgerMetrics(metrics)
	l.Expenses.SetLogger(log)

	l.Payments = appinvoicing.NewPaymentService(paymentRepo, invoiceRepo, expenseRepo)
	l.Payments.SetEventPublisher(l.Bus)
	l.Payments.SetLedgerMetrics(metrics)
	l.Payments.SetLogger(log)

	l.Recurring = appinvoicing.NewRecurringService(templateRepo, invoiceRepo, templateRepo, appinvoicing.RecurringConfig{
		LockTTL:        cfg.Recurring.LockTTL,
		IdempotencyTTL: cfg.Recurring.IdempotencyTTL,
		BatchSize:      cfg.Recurring.BatchSize,
		MaxCatchUp:     cfg.Recurring.MaxCatchUp,
	})
	l.Recurring.SetIdempotencyStore(l.Coordination.Idempotency)
	l.Recurring.SetLocker(l.Coordination.Locker)
	l.Recurring.SetEventPublisher(l.Bus)
	l.Recurring.SetLedgerMetrics(metrics)
	l.Recurring.SetLogger(log)

	l.Reconciliation = reconciliation.NewService(
		persistence.NewGormBankTransactionRepository(db.DB),
		persistence.NewGormTransactionLinkRepository(db.DB),
		persistence.NewGormCounterpartyRuleRepository(db.DB),
		invoiceRepo,
		expenseRepo,
		paymentRepo,
		cfg.Reconciliation.ToleranceConfig(),
	)
	l.Reconciliation.SetLedgerMetrics(metrics)
	l.Reconciliation.SetLogger(log)
	if cfg.Reconciliation.CandidateLimit > 0 {
		l.Reconciliation.SetCandidateLimit(cfg.Reconciliation.CandidateLimit)
	}

	l.TaxReports = report.NewTaxReportService(invoiceRepo, expenseRepo)
	l.TaxReports.SetLogger(log)

	return l, nil
}

func (l *Ledger) subscribeArchive(ctx context.Context, cfg *config.Config, invoiceRepo invoicing.InvoiceRepository) error {
	client, err := storage.NewS3Client(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("create S3 client: %w", err)
	}
	archive := storage.NewS3InvoiceArchive(client, cfg.Storage.Bucket, cfg.Storage.ArchivePrefix, storage.WithLogger(l.logger))
	if err := archive.EnsureBucket(ctx); err != nil {
		// archiving retries per event, startup continues
		l.logger.Warn("invoice archive bucket unavailable", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
	}

	archiveHandler := appinvoicing.NewInvoiceSentArchiveHandler(invoiceRepo, archive, l.logger)
	l.Bus.Subscribe(
		event.NewIdempotentHandler("invoice_archive", archiveHandler, l.Coordination.Idempotency, cfg.Recurring.IdempotencyTTL, l.logger),
		archiveHandler.EventTypes()...,
	)
	l.logger.Info("invoice archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	return nil
}

// Close drains pending events and releases connections
func (l *Ledger) Close(ctx context.Context) error {
	var errs []error
	if l.Bus != nil {
		if err := l.Bus.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if l.Coordination != nil {
		if err := l.Coordination.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close coordination: %w", err))
		}
	}
	if l.DB != nil {
		if err := l.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (l *Ledger) abort(ctx context.Context, cause error) error {
	if err := l.Close(ctx); err != nil {
		l.logger.Warn("cleanup after failed startup", zap.Error(err))
	}
	return cause
}
