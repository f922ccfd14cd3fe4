package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoicePatch is a typed partial update; nil fields are left unchanged.
type InvoicePatch struct {
	CustomerName  *string
	CustomerEmail *string
	IssueDate     *time.Time
	PaymentTerms  *PaymentTerms
	Items         *[]LineItem
	Notes         *string
}

// IsEmpty reports whether the patch changes nothing
func (p InvoicePatch) IsEmpty() bool {
	return p.CustomerName == nil && p.CustomerEmail == nil && p.IssueDate == nil &&
		p.PaymentTerms == nil && p.Items == nil && p.Notes == nil
}

func (p InvoicePatch) touchesContent() bool {
	return p.CustomerName != nil || p.CustomerEmail != nil || p.IssueDate != nil ||
		p.PaymentTerms != nil || p.Items != nil
}

// ExpensePatch is a typed partial update for a draft expense
type ExpensePatch struct {
	Vendor       *string
	Category     *ExpenseCategory
	Description  *string
	GrossAmount  *decimal.Decimal
	TaxRate      *decimal.Decimal
	IsDeductible *bool
	IncurredAt   *time.Time
}

// IsEmpty reports whether the patch changes nothing
func (p ExpensePatch) IsEmpty() bool {
	return p.Vendor == nil && p.Category == nil && p.Description == nil && p.GrossAmount == nil &&
		p.TaxRate == nil && p.IsDeductible == nil && p.IncurredAt == nil
}

// RecurringTemplatePatch is a typed partial update for a recurring template
type RecurringTemplatePatch struct {
	Name           *string
	CustomerName   *string
	Frequency      *Frequency
	Interval       *int
	EndDate        *time.Time
	MaxOccurrences *int
	Items          *[]LineItem
	PaymentTerms   *PaymentTerms
	Status         *RecurringStatus
}

// IsEmpty reports whether the patch changes nothing
func (p RecurringTemplatePatch) IsEmpty() bool {
	return p.Name == nil && p.CustomerName == nil && p.Frequency == nil && p.Interval == nil &&
		p.EndDate == nil && p.MaxOccurrences == nil && p.Items == nil && p.PaymentTerms == nil &&
		p.Status == nil
}

// PaymentPatch only carries the free-text reference; amounts are immutable once recorded.
type PaymentPatch struct {
	Reference *string
}

// IsEmpty reports whether the patch changes nothing
func (p PaymentPatch) IsEmpty() bool {
	return p.Reference == nil
}
