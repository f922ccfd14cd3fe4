// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records invoice, recurring and reconciliation activity.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	invoiceCreatedTotal *Counter
	invoiceGrossTotal   *Counter
	transitionTotal     *Counter
	paymentActionTotal  *Counter
	recurringRunTotal   *Counter
	linkTotal           *Counter
	importedTotal       *Counter

	reconciliationDelta *Histogram
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// ReconciliationDeltaBuckets are bucket boundaries for |Δ| between a
// transaction and its document, in currency units.
var ReconciliationDeltaBuckets = []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 25, 50}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{meter: cfg.Meter, logger: logger}

	counters := []struct {
		dst  **Counter
		name string
		desc string
		unit string
	}{
		{&lm.invoiceCreatedTotal, "ledger_invoice_created_total", "Total number of invoices created", "{invoices}"},
		{&lm.invoiceGrossTotal, "ledger_invoice_gross_total", "Gross amount of created invoices in cents", "{cents}"},
		{&lm.transitionTotal, "ledger_status_transition_total", "Accepted document status transitions", "{transitions}"},
		{&lm.paymentActionTotal, "ledger_payment_action_total", "Payment actions applied", "{actions}"},
		{&lm.recurringRunTotal, "ledger_recurring_run_total", "Recurring template runs by outcome", "{runs}"},
		{&lm.linkTotal, "ledger_reconciliation_link_total", "Transaction links created by match class", "{links}"},
		{&lm.importedTotal, "ledger_bank_transaction_imported_total", "Bank transactions imported", "{transactions}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	lm.reconciliationDelta, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "ledger_reconciliation_delta",
		Description: "Absolute difference between linked transaction and document",
		Unit:        "{currency}",
		Boundaries:  ReconciliationDeltaBuckets,
	})
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordInvoiceCreated counts a new invoice and its gross amount.
func (lm *LedgerMetrics) RecordInvoiceCreated(ctx context.Context, tenantID uuid.UUID, gross decimal.Decimal) {
	lm.invoiceCreatedTotal.Inc(ctx, AttrTenantID.String(tenantID.String()))
	lm.invoiceGrossTotal.Add(ctx, gross.Shift(2).IntPart(), AttrTenantID.String(tenantID.String()))
}

// RecordTransition counts an accepted status change.
func (lm *LedgerMetrics) RecordTransition(ctx context.Context, tenantID uuid.UUID, documentType, from, to string) {
	lm.transitionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrDocumentType.String(documentType),
		AttrStatusFrom.String(from),
		AttrStatusTo.String(to),
	)
}

// RecordPaymentAction counts an applied payment action.
func (lm *LedgerMetrics) RecordPaymentAction(ctx context.Context, tenantID uuid.UUID, action string) {
	lm.paymentActionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentAction.String(action),
	)
}

// Recurring run outcomes.
const (
	RecurringOutcomeExecuted  = "executed"
	RecurringOutcomeSkipped   = "skipped"
	RecurringOutcomeCompleted = "completed"
	RecurringOutcomeFailed    = "failed"
)

// RecordRecurringRun counts one recurring template run by outcome.
func (lm *LedgerMetrics) RecordRecurringRun(ctx context.Context, tenantID uuid.UUID, outcome string) {
	lm.recurringRunTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
}

// RecordLink counts a created link and observes its delta.
func (lm *LedgerMetrics) RecordLink(ctx context.Context, tenantID uuid.UUID, documentType, matchClass string, delta decimal.Decimal) {
	lm.linkTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrDocumentType.String(documentType),
		AttrMatchClass.String(matchClass),
	)
	lm.reconciliationDelta.Record(ctx, delta.Abs().InexactFloat64(),
		AttrDocumentType.String(documentType),
		AttrMatchClass.String(matchClass),
	)
}

// RecordImported counts imported bank transactions.
func (lm *LedgerMetrics) RecordImported(ctx context.Context, tenantID uuid.UUID, count int) {
	lm.importedTotal.Add(ctx, int64(count), AttrTenantID.String(tenantID.String()))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
