package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestNewLedgerMetrics(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, lm)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	lm, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	lm.RecordInvoiceCreated(ctx, tenantID, decimal.RequireFromString("151.10"))
	lm.RecordTransition(ctx, tenantID, "invoice", "DRAFT", "PENDING")
	lm.RecordPaymentAction(ctx, tenantID, "APPROVE")
	lm.RecordRecurringRun(ctx, tenantID, telemetry.RecurringOutcomeExecuted)
	lm.RecordRecurringRun(ctx, tenantID, telemetry.RecurringOutcomeSkipped)
	lm.RecordLink(ctx, tenantID, "INVOICE", "WITHIN_TOLERANCE", decimal.RequireFromString("-4.00"))
	lm.RecordImported(ctx, tenantID, 12)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	gross, ok := byName["ledger_invoice_gross_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, gross.DataPoints, 1)
	assert.Equal(t, int64(15110), gross.DataPoints[0].Value)

	runs, ok := byName["ledger_recurring_run_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, runs.DataPoints, 2)

	delta, ok := byName["ledger_reconciliation_delta"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, delta.DataPoints, 1)
	assert.Equal(t, 4.0, delta.DataPoints[0].Sum)
}
