package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/infrastructure/export"
)

type MockTaxReportUseCases struct {
	mock.Mock
}

func (m *MockTaxReportUseCases) Generate(ctx context.Context, scope uuid.UUID, req report.TaxReportRequest) (*report.TaxReport, error) {
	args := m.Called(ctx, scope, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.TaxReport), args.Error(1)
}

func setupReportRouter() (http.Handler, *MockTaxReportUseCases) {
	uc := new(MockTaxReportUseCases)
	h := NewReportHandler(uc)

	r := newTestRouter()
	r.GET("/reports/tax", h.TaxReport)
	r.GET("/reports/tax.xlsx", h.TaxReportXLSX)
	return r, uc
}

func sampleTaxReport() *report.TaxReport {
	return &report.TaxReport{
		TenantID: testTenant,
		From:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		OutputTax: []report.TaxRateLine{{
			Rate:        decimal.NewFromInt(19),
			NetAmount:   decimal.RequireFromString("100.00"),
			TaxAmount:   decimal.RequireFromString("19.00"),
			GrossAmount: decimal.RequireFromString("119.00"),
			Documents:   1,
		}},
		TotalOutput:  decimal.RequireFromString("19.00"),
		TotalInput:   decimal.Zero,
		Payable:      decimal.RequireFromString("19.00"),
		InvoiceCount: 1,
	}
}

func quarterRequest() report.TaxReportRequest {
	return report.TaxReportRequest{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestReportHandler_TaxReport(t *testing.T) {
	r, uc := setupReportRouter()
	uc.On("Generate", mock.Anything, testTenant, quarterRequest()).Return(sampleTaxReport(), nil)

	w := perform(t, r, testRequest{method: http.MethodGet, path: "/reports/tax?from=2026-01-01&to=2026-03-31", noActor: true})

	assert.Equal(t, http.StatusOK, w.Code)
	var got report.TaxReport
	decode(t, w, &got)
	assert.True(t, got.Payable.Equal(decimal.NewFromInt(19)))
	uc.AssertExpectations(t)
}

func TestReportHandler_TaxReport_MissingPeriod(t *testing.T) {
	r, uc := setupReportRouter()

	w := perform(t, r, testRequest{method: http.MethodGet, path: "/reports/tax?from=2026-01-01", noActor: true})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "Generate")
}

func TestReportHandler_TaxReportXLSX(t *testing.T) {
	r, uc := setupReportRouter()
	uc.On("Generate", mock.Anything, testTenant, quarterRequest()).Return(sampleTaxReport(), nil)

	w := perform(t, r, testRequest{method: http.MethodGet, path: "/reports/tax.xlsx?from=2026-01-01&to=2026-03-31", noActor: true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "tax-report_20260101_20260331.xlsx")
	// xlsx files are zip archives
	assert.Equal(t, "PK", w.Body.String()[:2])
}

type failingPinger struct{ err error }

func (p failingPinger) Ping() error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantCode   int
		wantStatus string
	}{
		{name: "all ok", checks: map[string]Pinger{"database": failingPinger{}}, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "database down", checks: map[string]Pinger{"database": failingPinger{err: errors.New("dial tcp: refused")}}, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("ledger", "test", tt.checks)
			r := gin.New()
			r.GET("/health", h.Health)

			w := perform(t, r, testRequest{method: http.MethodGet, path: "/health", noActor: true})

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"`+tt.wantStatus+`"`)
		})
	}
}
