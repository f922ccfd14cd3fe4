package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusViewed    InvoiceStatus = "VIEWED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded  InvoiceStatus = "REFUNDED"
)

// invoiceTransitions is the complete allow-list; a status absent from the map has no exits.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusPending, InvoiceStatusCancelled},
	InvoiceStatusPending: {InvoiceStatusSent, InvoiceStatusDraft, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusViewed, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusViewed:  {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusPaid:    {InvoiceStatusRefunded},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

// AllInvoiceStatuses lists every invoice status
func AllInvoiceStatuses() []InvoiceStatus {
	return []InvoiceStatus{
		InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled, InvoiceStatusRefunded,
	}
}

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for statuses without outgoing transitions
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled || s == InvoiceStatusRefunded
}

// IsOpen reports whether the invoice is issued and still awaiting payment
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusViewed || s == InvoiceStatusOverdue
}

// CanTransitionTo reports whether target is on the allow-list for s
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AssertInvoiceTransition fails with INVALID_TRANSITION when requested is not
// reachable from current. It performs no I/O.
func AssertInvoiceTransition(current, requested InvoiceStatus) error {
	if !current.CanTransitionTo(requested) {
		return shared.NewInvalidTransitionError(current.String(), requested.String())
	}
	return nil
}

// PaymentMethod is how a customer may settle an invoice
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodDirectDebit  PaymentMethod = "DIRECT_DEBIT"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodPayPal       PaymentMethod = "PAYPAL"
	PaymentMethodCash         PaymentMethod = "CASH"
)

// IsValid checks if the method is known
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodDirectDebit, PaymentMethodCard,
		PaymentMethodPayPal, PaymentMethodCash:
		return true
	}
	return false
}

// PaymentTerms describes when and how an invoice is due
type PaymentTerms struct {
	DueDays        int              `json:"due_days"`
	DueDate        time.Time        `json:"due_date"`
	DiscountDays   *int             `json:"discount_days,omitempty"`
	DiscountRate   *decimal.Decimal `json:"discount_rate,omitempty"` // percent
	PaymentMethods []PaymentMethod  `json:"payment_methods"`
}

// Validate checks the terms are internally consistent
func (t PaymentTerms) Validate() error {
	if t.DueDays < 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Due days cannot be negative")
	}
	if t.DiscountDays != nil {
		if *t.DiscountDays < 0 || *t.DiscountDays > t.DueDays {
			return shared.NewDomainError(shared.CodeInvalidInput, "Discount days must be between 0 and due days")
		}
		if t.DiscountRate == nil {
			return shared.NewMissingFieldError("discount rate")
		}
	}
	if t.DiscountRate != nil && (t.DiscountRate.IsNegative() || t.DiscountRate.GreaterThan(hundred)) {
		return shared.NewInvalidAmountError("Discount rate must be between 0 and 100")
	}
	for _, m := range t.PaymentMethods {
		if !m.IsValid() {
			return shared.NewDomainError(shared.CodeInvalidInput, "Unknown payment method: "+string(m))
		}
	}
	return nil
}

// WithDueDate fills DueDate from issueDate + DueDays when it is unset
func (t PaymentTerms) WithDueDate(issueDate time.Time) PaymentTerms {
	if t.DueDate.IsZero() {
		t.DueDate = issueDate.AddDate(0, 0, t.DueDays)
	}
	return t
}

// DiscountAmount returns the early-payment discount for gross if paidAt falls
// inside the discount window, otherwise zero.
func (t PaymentTerms) DiscountAmount(gross decimal.Decimal, issueDate, paidAt time.Time) decimal.Decimal {
	if t.DiscountDays == nil || t.DiscountRate == nil {
		return decimal.Zero
	}
	deadline := issueDate.AddDate(0, 0, *t.DiscountDays)
	if paidAt.After(deadline) {
		return decimal.Zero
	}
	return valueobject.RoundCents(gross.Mul(*t.DiscountRate).Div(hundred))
}

// Invoice is the outgoing invoice aggregate root
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber       string
	CustomerName        string
	CustomerEmail       string
	Currency            valueobject.Currency
	Status              InvoiceStatus
	Items               []LineItem
	NetAmount           decimal.Decimal
	TaxAmount           decimal.Decimal
	GrossAmount         decimal.Decimal
	TaxSummary          []TaxSummaryEntry
	PaymentTerms        PaymentTerms
	IssueDate           time.Time
	Immutable           bool
	Notes               string
	SentAt              *time.Time
	PaidAt              *time.Time
	CancelledAt         *time.Time
	RecurringTemplateID *uuid.UUID
}

// NewInvoice creates a DRAFT invoice and computes its totals
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	customerName string,
	issueDate time.Time,
	items []LineItem,
	terms PaymentTerms,
	actor shared.Actor,
) (*Invoice, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, shared.NewMissingFieldError("invoice number")
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, shared.NewMissingFieldError("customer name")
	}
	if issueDate.IsZero() {
		return nil, shared.NewMissingFieldError("issue date")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, actor),
		InvoiceNumber:       invoiceNumber,
		CustomerName:        customerName,
		Currency:            valueobject.DefaultCurrency,
		Status:              InvoiceStatusDraft,
		IssueDate:           issueDate,
		PaymentTerms:        terms.WithDueDate(issueDate),
	}
	if err := inv.setItems(items); err != nil {
		return nil, err
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv, actor))
	return inv, nil
}

func (i *Invoice) setItems(items []LineItem) error {
	computed, err := recomputeItems(items)
	if err != nil {
		return err
	}
	i.assignItems(computed)
	return nil
}

func (i *Invoice) assignItems(computed []LineItem) {
	totals := AggregateTotals(computed)
	i.Items = computed
	i.NetAmount = totals.NetAmount
	i.TaxAmount = totals.TaxAmount
	i.GrossAmount = totals.GrossAmount
	i.TaxSummary = totals.TaxSummary
}

// IsEditable reports whether content fields may still change
func (i *Invoice) IsEditable() bool {
	return !i.Immutable && !i.Status.IsTerminal()
}

// TransitionTo moves the invoice through the guard. Moving to SENT freezes the
// invoice in the same step.
func (i *Invoice) TransitionTo(target InvoiceStatus, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if err := AssertInvoiceTransition(i.Status, target); err != nil {
		return err
	}
	if target == InvoiceStatusSent && len(i.Items) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Cannot send an invoice without line items")
	}

	from := i.Status
	now := time.Now()
	i.Status = target
	switch target {
	case InvoiceStatusSent:
		i.Immutable = true
		i.SentAt = &now
	case InvoiceStatusPaid:
		i.PaidAt = &now
	case InvoiceStatusCancelled:
		i.CancelledAt = &now
	}
	i.Touch(actor)

	i.AddDomainEvent(NewInvoiceStatusChangedEvent(i, from, target, actor))
	return nil
}

// IsOverdue reports whether an open invoice is past its due date at asOf
func (i *Invoice) IsOverdue(asOf time.Time) bool {
	if i.Status != InvoiceStatusSent && i.Status != InvoiceStatusViewed {
		return false
	}
	return !i.PaymentTerms.DueDate.IsZero() && asOf.After(i.PaymentTerms.DueDate)
}

// IsSettledBy reports whether collected covers the gross amount, less the
// early-payment discount when paidAt falls inside the discount window.
func (i *Invoice) IsSettledBy(collected decimal.Decimal, paidAt time.Time) bool {
	owed := i.GrossAmount.Sub(i.PaymentTerms.DiscountAmount(i.GrossAmount, i.IssueDate, paidAt))
	return collected.GreaterThanOrEqual(owed)
}

// ApplyPatch applies a typed partial update. Content fields require an
// editable invoice; Notes may change on a finalized invoice. Nothing changes
// unless the whole patch is valid. A due date that was derived from the issue
// date follows a new issue date; an explicitly set one stays.
func (i *Invoice) ApplyPatch(p InvoicePatch, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if p.IsEmpty() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Patch contains no changes")
	}
	if p.touchesContent() && !i.IsEditable() {
		return shared.ErrImmutableDocument
	}
	if p.CustomerName != nil && strings.TrimSpace(*p.CustomerName) == "" {
		return shared.NewMissingFieldError("customer name")
	}
	if p.IssueDate != nil && p.IssueDate.IsZero() {
		return shared.NewMissingFieldError("issue date")
	}
	if p.PaymentTerms != nil {
		if err := p.PaymentTerms.Validate(); err != nil {
			return err
		}
	}
	var items []LineItem
	if p.Items != nil {
		computed, err := recomputeItems(*p.Items)
		if err != nil {
			return err
		}
		items = computed
	}

	if p.CustomerName != nil {
		i.CustomerName = *p.CustomerName
	}
	if p.CustomerEmail != nil {
		i.CustomerEmail = *p.CustomerEmail
	}
	if p.IssueDate != nil {
		derived := i.PaymentTerms.DueDate.Equal(i.IssueDate.AddDate(0, 0, i.PaymentTerms.DueDays))
		i.IssueDate = *p.IssueDate
		if p.PaymentTerms == nil && derived {
			i.PaymentTerms.DueDate = i.IssueDate.AddDate(0, 0, i.PaymentTerms.DueDays)
		}
	}
	if p.PaymentTerms != nil {
		i.PaymentTerms = p.PaymentTerms.WithDueDate(i.IssueDate)
	}
	if items != nil {
		i.assignItems(items)
	}
	if p.Notes != nil {
		i.Notes = *p.Notes
	}
	i.Touch(actor)
	return nil
}

// GrossMoney returns the gross amount as Money
func (i *Invoice) GrossMoney() valueobject.Money {
	m, err := valueobject.NewMoney(i.GrossAmount, i.Currency)
	if err != nil {
		return valueobject.NewMoneyEUR(i.GrossAmount)
	}
	return m
}
