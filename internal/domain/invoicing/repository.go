package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/shared"
)

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	shared.CRUDRepository[Invoice, InvoicePatch]
	// FindByID loads an invoice regardless of tenant, for cross-tenant checks
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// Save writes status/workflow changes with an optimistic version check
	Save(ctx context.Context, invoice *Invoice) error
	GenerateInvoiceNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error)
	FindOverdueCandidates(ctx context.Context, scope uuid.UUID, asOf time.Time) ([]Invoice, error)
	// FindIssuedBetween returns invoices in output-tax statuses issued in [from, to]
	FindIssuedBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]Invoice, error)
}

// ExpenseRepository persists expenses
type ExpenseRepository interface {
	shared.CRUDRepository[Expense, ExpensePatch]
	FindByID(ctx context.Context, id uuid.UUID) (*Expense, error)
	Save(ctx context.Context, expense *Expense) error
	GenerateExpenseNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error)
	// FindDeductibleBetween returns approved or paid deductible expenses incurred in [from, to]
	FindDeductibleBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]Expense, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	shared.CRUDRepository[Payment, PaymentPatch]
	Save(ctx context.Context, payment *Payment) error
	// SaveWithRefund saves the refunded original and creates its reversing payment atomically
	SaveWithRefund(ctx context.Context, original, refund *Payment, actor shared.Actor) error
	FindByDocument(ctx context.Context, scope, documentID uuid.UUID) ([]Payment, error)
}

// RecurringTemplateRepository persists recurring templates
type RecurringTemplateRepository interface {
	shared.CRUDRepository[RecurringTemplate, RecurringTemplatePatch]
	Save(ctx context.Context, template *RecurringTemplate) error
	// FindDue returns active templates of every tenant whose next run is at or before asOf
	FindDue(ctx context.Context, asOf time.Time, limit int) ([]RecurringTemplate, error)
}

// RecurringExecution is the durable record that a template ran for one due date
type RecurringExecution struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TemplateID    uuid.UUID
	ScheduledDate time.Time
	InvoiceID     uuid.UUID
	CreatedAt     time.Time
}

// RecurringRunStore commits one recurring run atomically: the execution
// record, the generated invoice and the advanced template. It returns
// ErrAlreadyExecuted when the (template, scheduled date) pair already ran.
type RecurringRunStore interface {
	CommitRun(ctx context.Context, exec RecurringExecution, invoice *Invoice, template *RecurringTemplate) error
	HasRun(ctx context.Context, templateID uuid.UUID, scheduledDate time.Time) (bool, error)
}

// ErrAlreadyExecuted reports a duplicate recurring run
var ErrAlreadyExecuted = shared.NewDomainError(shared.CodeAlreadyExists, "Recurring template already executed for this date")
