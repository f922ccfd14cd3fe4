// Package report builds period reports over invoices and expenses.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TaxReportRequest selects the reporting period, both days inclusive
type TaxReportRequest struct {
	From time.Time `form:"from" binding:"required" time_format:"2006-01-02" time_utc:"1"`
	To   time.Time `form:"to" binding:"required" time_format:"2006-01-02" time_utc:"1"`
}

// TaxRateLine sums all documents of one tax rate
type TaxRateLine struct {
	Rate        decimal.Decimal `json:"rate"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Documents   int             `json:"documents"`
}

// TaxReport is the VAT position of a tenant for one period
type TaxReport struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	OutputTax    []TaxRateLine   `json:"output_tax"`
	InputTax     []TaxRateLine   `json:"input_tax"`
	TotalOutput  decimal.Decimal `json:"total_output_tax"`
	TotalInput   decimal.Decimal `json:"total_input_tax"`
	Payable      decimal.Decimal `json:"payable"`
	InvoiceCount int             `json:"invoice_count"`
	ExpenseCount int             `json:"expense_count"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// TaxReportService computes tax reports
type TaxReportService struct {
	invoiceRepo invoicing.InvoiceRepository
	expenseRepo invoicing.ExpenseRepository
	logger      *zap.Logger
}

// NewTaxReportService creates a new TaxReportService
func NewTaxReportService(invoiceRepo invoicing.InvoiceRepository, expenseRepo invoicing.ExpenseRepository) *TaxReportService {
	return &TaxReportService{
		invoiceRepo: invoiceRepo,
		expenseRepo: expenseRepo,
		logger:      zap.NewNop(),
	}
}

// SetLogger sets the logger
func (s *TaxReportService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Generate sums output tax of issued invoices and input tax of deductible
// expenses per rate. Payable is output minus input and may be negative.
func (s *TaxReportService) Generate(ctx context.Context, scope uuid.UUID, req TaxReportRequest) (*TaxReport, error) {
	if req.From.IsZero() {
		return nil, shared.NewMissingFieldError("from")
	}
	if req.To.IsZero() {
		return nil, shared.NewMissingFieldError("to")
	}
	from, to := invoicing.DateOnly(req.From), invoicing.DateOnly(req.To)
	if to.Before(from) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Period end is before period start")
	}

	invoices, err := s.invoiceRepo.FindIssuedBetween(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenseRepo.FindDeductibleBetween(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	var output, input rateBook
	for i := range invoices {
		for _, entry := range invoices[i].TaxSummary {
			output.add(entry.Rate, entry.NetAmount, entry.TaxAmount, entry.GrossAmount)
		}
	}
	expenseCount := 0
	for i := range expenses {
		tb := expenses[i].TaxBreakdown
		if !tb.IsDeductible {
			continue
		}
		input.add(tb.TaxRate, tb.NetAmount, tb.TaxAmount, expenses[i].GrossAmount)
		expenseCount++
	}

	report := &TaxReport{
		TenantID:     scope,
		From:         from,
		To:           to,
		OutputTax:    output.lines(),
		InputTax:     input.lines(),
		TotalOutput:  output.taxTotal(),
		TotalInput:   input.taxTotal(),
		InvoiceCount: len(invoices),
		ExpenseCount: expenseCount,
		GeneratedAt:  time.Now(),
	}
	report.Payable = report.TotalOutput.Sub(report.TotalInput)

	s.logger.Debug("tax report generated",
		zap.String("tenant_id", scope.String()),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("invoices", report.InvoiceCount),
		zap.Int("expenses", report.ExpenseCount),
	)
	return report, nil
}

// rateBook groups amounts by exact rate
type rateBook []TaxRateLine

func (b *rateBook) add(rate, net, tax, gross decimal.Decimal) {
	for i := range *b {
		line := &(*b)[i]
		if line.Rate.Equal(rate) {
			line.NetAmount = line.NetAmount.Add(net)
			line.TaxAmount = line.TaxAmount.Add(tax)
			line.GrossAmount = line.GrossAmount.Add(gross)
			line.Documents++
			return
		}
	}
	*b = append(*b, TaxRateLine{Rate: rate, NetAmount: net, TaxAmount: tax, GrossAmount: gross, Documents: 1})
}

// lines returns the groups by rate, highest first
func (b rateBook) lines() []TaxRateLine {
	out := make([]TaxRateLine, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate.GreaterThan(out[j].Rate) })
	return out
}

func (b rateBook) taxTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b {
		total = total.Add(line.TaxAmount)
	}
	return total
}
