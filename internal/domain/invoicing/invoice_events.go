package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
)

// Event type names
const (
	EventTypeInvoiceCreated        = "InvoiceCreated"
	EventTypeInvoiceStatusChanged  = "InvoiceStatusChanged"
	EventTypeExpenseStatusChanged  = "ExpenseStatusChanged"
	EventTypePaymentStatusChanged  = "PaymentStatusChanged"
	EventTypeRecurringExecuted     = "RecurringTemplateExecuted"
	EventTypeRecurringCompleted    = "RecurringTemplateCompleted"
	AggregateTypeInvoice           = "Invoice"
	AggregateTypeExpense           = "Expense"
	AggregateTypePayment           = "Payment"
	AggregateTypeRecurringTemplate = "RecurringTemplate"
)

// InvoiceCreatedEvent is raised when a new invoice is drafted
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	CustomerName  string          `json:"customer_name"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, actor shared.Actor) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID, actor),
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerName:    inv.CustomerName,
		GrossAmount:     inv.GrossAmount,
	}
}

// InvoiceStatusChangedEvent is raised on every accepted transition
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string        `json:"invoice_number"`
	From          InvoiceStatus `json:"from"`
	To            InvoiceStatus `json:"to"`
	Immutable     bool          `json:"immutable"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to InvoiceStatus, actor shared.Actor) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID, inv.TenantID, actor),
		InvoiceNumber:   inv.InvoiceNumber,
		From:            from,
		To:              to,
		Immutable:       inv.Immutable,
	}
}

// ExpenseStatusChangedEvent is raised when an expense moves through approval
type ExpenseStatusChangedEvent struct {
	shared.BaseDomainEvent
	ExpenseNumber string        `json:"expense_number"`
	From          ExpenseStatus `json:"from"`
	To            ExpenseStatus `json:"to"`
}

// NewExpenseStatusChangedEvent creates a new ExpenseStatusChangedEvent
func NewExpenseStatusChangedEvent(e *Expense, from, to ExpenseStatus, actor shared.Actor) *ExpenseStatusChangedEvent {
	return &ExpenseStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseStatusChanged, AggregateTypeExpense, e.ID, e.TenantID, actor),
		ExpenseNumber:   e.ExpenseNumber,
		From:            from,
		To:              to,
	}
}

// PaymentStatusChangedEvent is raised after a payment action is applied
type PaymentStatusChangedEvent struct {
	shared.BaseDomainEvent
	Action PaymentAction `json:"action"`
	From   PaymentStatus `json:"from"`
	To     PaymentStatus `json:"to"`
}

// NewPaymentStatusChangedEvent creates a new PaymentStatusChangedEvent
func NewPaymentStatusChangedEvent(p *Payment, action PaymentAction, from, to PaymentStatus, actor shared.Actor) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentStatusChanged, AggregateTypePayment, p.ID, p.TenantID, actor),
		Action:          action,
		From:            from,
		To:              to,
	}
}

// RecurringTemplateExecutedEvent is raised when a template spawns an invoice
type RecurringTemplateExecutedEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	ScheduledDate  time.Time       `json:"scheduled_date"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	TotalGenerated int             `json:"total_generated"`
}

// NewRecurringTemplateExecutedEvent creates a new RecurringTemplateExecutedEvent
func NewRecurringTemplateExecutedEvent(t *RecurringTemplate, inv *Invoice, scheduled time.Time) *RecurringTemplateExecutedEvent {
	return &RecurringTemplateExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecurringExecuted, AggregateTypeRecurringTemplate, t.ID, t.TenantID, shared.SystemActor),
		InvoiceID:       inv.ID,
		ScheduledDate:   scheduled,
		GrossAmount:     inv.GrossAmount,
		TotalGenerated:  t.TotalGenerated,
	}
}

// RecurringTemplateCompletedEvent is raised when a template reaches its end condition
type RecurringTemplateCompletedEvent struct {
	shared.BaseDomainEvent
	TotalGenerated int             `json:"total_generated"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// NewRecurringTemplateCompletedEvent creates a new RecurringTemplateCompletedEvent
func NewRecurringTemplateCompletedEvent(t *RecurringTemplate) *RecurringTemplateCompletedEvent {
	return &RecurringTemplateCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecurringCompleted, AggregateTypeRecurringTemplate, t.ID, t.TenantID, shared.SystemActor),
		TotalGenerated:  t.TotalGenerated,
		TotalAmount:     t.TotalAmount,
	}
}
