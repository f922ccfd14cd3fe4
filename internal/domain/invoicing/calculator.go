package invoicing

import (
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

var hundred = decimal.NewFromInt(100)

// LineItem is a single billable position on an invoice or recurring template
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // percent, e.g. 19
	TotalPrice  decimal.Decimal `json:"total_price"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// LineAmounts is the derived money of one line item
type LineAmounts struct {
	TotalPrice decimal.Decimal
	TaxAmount  decimal.Decimal
}

// TaxSummaryEntry aggregates every line item sharing one tax rate
type TaxSummaryEntry struct {
	Rate        decimal.Decimal `json:"rate"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

// Totals is the result of AggregateTotals
type Totals struct {
	NetAmount   decimal.Decimal
	TaxAmount   decimal.Decimal
	GrossAmount decimal.Decimal
	TaxSummary  []TaxSummaryEntry
}

// ComputeLineItem derives total and tax for one position.
// totalPrice = round(q*p), taxAmount = round(totalPrice*rate/100).
func ComputeLineItem(quantity, unitPrice, taxRate decimal.Decimal) (LineAmounts, error) {
	if quantity.IsNegative() {
		return LineAmounts{}, shared.NewInvalidAmountError("Quantity cannot be negative")
	}
	if unitPrice.IsNegative() {
		return LineAmounts{}, shared.NewInvalidAmountError("Unit price cannot be negative")
	}
	if taxRate.IsNegative() {
		return LineAmounts{}, shared.NewInvalidAmountError("Tax rate cannot be negative")
	}

	total := valueobject.RoundCents(quantity.Mul(unitPrice))
	tax := valueobject.RoundCents(total.Mul(taxRate).Div(hundred))
	return LineAmounts{TotalPrice: total, TaxAmount: tax}, nil
}

// NewLineItem validates the position and fills in its derived amounts
func NewLineItem(description string, quantity, unitPrice, taxRate decimal.Decimal) (LineItem, error) {
	amounts, err := ComputeLineItem(quantity, unitPrice, taxRate)
	if err != nil {
		return LineItem{}, err
	}
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TaxRate:     taxRate,
		TotalPrice:  amounts.TotalPrice,
		TaxAmount:   amounts.TaxAmount,
	}, nil
}

// Recompute refreshes TotalPrice and TaxAmount from the inputs
func (li *LineItem) Recompute() error {
	amounts, err := ComputeLineItem(li.Quantity, li.UnitPrice, li.TaxRate)
	if err != nil {
		return err
	}
	li.TotalPrice = amounts.TotalPrice
	li.TaxAmount = amounts.TaxAmount
	return nil
}

// AggregateTotals sums already-rounded line amounts. The tax total is the sum of
// per-item taxes and is never recomputed from the net sum. The summary is
// grouped by exact rate, in order of first appearance.
func AggregateTotals(items []LineItem) Totals {
	totals := Totals{
		NetAmount:   decimal.Zero,
		TaxAmount:   decimal.Zero,
		GrossAmount: decimal.Zero,
		TaxSummary:  []TaxSummaryEntry{},
	}

	for _, item := range items {
		totals.NetAmount = totals.NetAmount.Add(item.TotalPrice)
		totals.TaxAmount = totals.TaxAmount.Add(item.TaxAmount)

		idx := -1
		for i := range totals.TaxSummary {
			if totals.TaxSummary[i].Rate.Equal(item.TaxRate) {
				idx = i
				break
			}
		}
		if idx < 0 {
			totals.TaxSummary = append(totals.TaxSummary, TaxSummaryEntry{
				Rate:      item.TaxRate,
				NetAmount: decimal.Zero,
				TaxAmount: decimal.Zero,
			})
			idx = len(totals.TaxSummary) - 1
		}
		entry := &totals.TaxSummary[idx]
		entry.NetAmount = entry.NetAmount.Add(item.TotalPrice)
		entry.TaxAmount = entry.TaxAmount.Add(item.TaxAmount)
	}

	for i := range totals.TaxSummary {
		totals.TaxSummary[i].GrossAmount = totals.TaxSummary[i].NetAmount.Add(totals.TaxSummary[i].TaxAmount)
	}
	totals.GrossAmount = totals.NetAmount.Add(totals.TaxAmount)
	return totals
}

// SplitGrossToNet backs the net amount out of a gross total:
// net = round(gross / (1 + rate/100)), tax = gross - net.
// It is not the inverse of ComputeLineItem and must not be replaced by it.
func SplitGrossToNet(gross, taxRate decimal.Decimal) (net, tax decimal.Decimal, err error) {
	if gross.IsNegative() {
		return decimal.Zero, decimal.Zero, shared.NewInvalidAmountError("Gross amount cannot be negative")
	}
	if taxRate.IsNegative() {
		return decimal.Zero, decimal.Zero, shared.NewInvalidAmountError("Tax rate cannot be negative")
	}
	divisor := decimal.NewFromInt(1).Add(taxRate.Div(hundred))
	net = valueobject.RoundCents(gross.Div(divisor))
	tax = gross.Sub(net)
	return net, tax, nil
}
