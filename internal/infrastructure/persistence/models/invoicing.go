package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate.
// Items, tax summary and payment terms are stored as jsonb; the due date is
// copied out of the terms so overdue sweeps can filter on it.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber       string                            `gorm:"type:varchar(50);not null;index"`
	CustomerName        string                            `gorm:"type:varchar(200);not null"`
	CustomerEmail       string                            `gorm:"type:varchar(200)"`
	Currency            string                            `gorm:"type:varchar(3);not null;default:'EUR'"`
	Status              invoicing.InvoiceStatus           `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	Items               JSON[[]invoicing.LineItem]        `gorm:"type:jsonb;not null"`
	NetAmount           decimal.Decimal                   `gorm:"type:decimal(18,4);not null"`
	TaxAmount           decimal.Decimal                   `gorm:"type:decimal(18,4);not null"`
	GrossAmount         decimal.Decimal                   `gorm:"type:decimal(18,4);not null"`
	TaxSummary          JSON[[]invoicing.TaxSummaryEntry] `gorm:"type:jsonb;not null"`
	PaymentTerms        JSON[invoicing.PaymentTerms]      `gorm:"type:jsonb;not null"`
	IssueDate           time.Time                         `gorm:"type:date;not null;index"`
	DueDate             time.Time                         `gorm:"type:date;not null;index"`
	Immutable           bool                              `gorm:"not null;default:false"`
	Notes               string                            `gorm:"type:text"`
	SentAt              *time.Time
	PaidAt              *time.Time
	CancelledAt         *time.Time
	RecurringTemplateID *uuid.UUID                        `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		InvoiceNumber:       m.InvoiceNumber,
		CustomerName:        m.CustomerName,
		CustomerEmail:       m.CustomerEmail,
		Currency:            valueobject.Currency(m.Currency),
		Status:              m.Status,
		Items:               m.Items.Data,
		NetAmount:           m.NetAmount,
		TaxAmount:           m.TaxAmount,
		GrossAmount:         m.GrossAmount,
		TaxSummary:          m.TaxSummary.Data,
		PaymentTerms:        m.PaymentTerms.Data,
		IssueDate:           m.IssueDate,
		Immutable:           m.Immutable,
		Notes:               m.Notes,
		SentAt:              m.SentAt,
		PaidAt:              m.PaidAt,
		CancelledAt:         m.CancelledAt,
		RecurringTemplateID: m.RecurringTemplateID,
	}
	m.PopulateTenantAggregateRoot(&inv.TenantAggregateRoot)
	if inv.Items == nil {
		inv.Items = []invoicing.LineItem{}
	}
	if inv.TaxSummary == nil {
		inv.TaxSummary = []invoicing.TaxSummaryEntry{}
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerName = inv.CustomerName
	m.CustomerEmail = inv.CustomerEmail
	m.Currency = string(inv.Currency)
	m.Status = inv.Status
	m.Items = NewJSON(inv.Items)
	m.NetAmount = inv.NetAmount
	m.TaxAmount = inv.TaxAmount
	m.GrossAmount = inv.GrossAmount
	m.TaxSummary = NewJSON(inv.TaxSummary)
	m.PaymentTerms = NewJSON(inv.PaymentTerms)
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.PaymentTerms.DueDate
	m.Immutable = inv.Immutable
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.RecurringTemplateID = inv.RecurringTemplateID
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// ExpenseModel is the persistence model for the Expense aggregate
type ExpenseModel struct {
	TenantAggregateModel
	ExpenseNumber   string                    `gorm:"type:varchar(50);not null;index"`
	Vendor          string                    `gorm:"type:varchar(200);not null"`
	Category        invoicing.ExpenseCategory `gorm:"type:varchar(30);not null;index"`
	Description     string                    `gorm:"type:text"`
	GrossAmount     decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	Currency        string                    `gorm:"type:varchar(3);not null;default:'EUR'"`
	IncurredAt      time.Time                 `gorm:"type:date;not null;index"`
	Status          invoicing.ExpenseStatus   `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	ApprovedBy      *uuid.UUID                `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectionReason string                    `gorm:"type:varchar(500)"`
	IsDeductible    bool                      `gorm:"not null;default:true"`
	TaxRate         decimal.Decimal           `gorm:"type:decimal(5,2);not null"`
	NetAmount       decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	TaxAmount       decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	SubmittedAt     *time.Time
	PaidAt          *time.Time
}

// TableName returns the table name for GORM
func (ExpenseModel) TableName() string {
	return "expenses"
}

// ToDomain converts the persistence model to a domain Expense
func (m *ExpenseModel) ToDomain() *invoicing.Expense {
	e := &invoicing.Expense{
		ExpenseNumber: m.ExpenseNumber,
		Vendor:        m.Vendor,
		Category:      m.Category,
		Description:   m.Description,
		GrossAmount:   m.GrossAmount,
		Currency:      valueobject.Currency(m.Currency),
		IncurredAt:    m.IncurredAt,
		Status:        m.Status,
		Approval: invoicing.Approval{
			ApprovedBy:      m.ApprovedBy,
			ApprovedAt:      m.ApprovedAt,
			RejectionReason: m.RejectionReason,
		},
		TaxBreakdown: invoicing.TaxBreakdown{
			IsDeductible: m.IsDeductible,
			TaxRate:      m.TaxRate,
			NetAmount:    m.NetAmount,
			TaxAmount:    m.TaxAmount,
		},
		SubmittedAt: m.SubmittedAt,
		PaidAt:      m.PaidAt,
	}
	m.PopulateTenantAggregateRoot(&e.TenantAggregateRoot)
	return e
}

// FromDomain populates the persistence model from a domain Expense
func (m *ExpenseModel) FromDomain(e *invoicing.Expense) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.ExpenseNumber = e.ExpenseNumber
	m.Vendor = e.Vendor
	m.Category = e.Category
	m.Description = e.Description
	m.GrossAmount = e.GrossAmount
	m.Currency = string(e.Currency)
	m.IncurredAt = e.IncurredAt
	m.Status = e.Status
	m.ApprovedBy = e.Approval.ApprovedBy
	m.ApprovedAt = e.Approval.ApprovedAt
	m.RejectionReason = e.Approval.RejectionReason
	m.IsDeductible = e.TaxBreakdown.IsDeductible
	m.TaxRate = e.TaxBreakdown.TaxRate
	m.NetAmount = e.TaxBreakdown.NetAmount
	m.TaxAmount = e.TaxBreakdown.TaxAmount
	m.SubmittedAt = e.SubmittedAt
	m.PaidAt = e.PaidAt
}

// ExpenseModelFromDomain creates a new persistence model from a domain Expense
func ExpenseModelFromDomain(e *invoicing.Expense) *ExpenseModel {
	m := &ExpenseModel{}
	m.FromDomain(e)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate
type PaymentModel struct {
	TenantAggregateModel
	Direction         invoicing.PaymentDirection `gorm:"type:varchar(10);not null"`
	Amount            decimal.Decimal            `gorm:"type:decimal(18,4);not null"`
	Currency          string                     `gorm:"type:varchar(3);not null;default:'EUR'"`
	Status            invoicing.PaymentStatus    `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Method            invoicing.PaymentMethod    `gorm:"type:varchar(20);not null"`
	Reference         string                     `gorm:"type:varchar(200)"`
	InvoiceID         *uuid.UUID                 `gorm:"type:uuid;index"`
	ExpenseID         *uuid.UUID                 `gorm:"type:uuid;index"`
	OriginalPaymentID *uuid.UUID                 `gorm:"type:uuid;index"`
	ProcessedAt       *time.Time
	Reconciled        bool                       `gorm:"not null;default:false"`
	ReconciledAt      *time.Time
	DiscrepancyAmount *decimal.Decimal           `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	p := &invoicing.Payment{
		Direction:         m.Direction,
		Amount:            m.Amount,
		Currency:          valueobject.Currency(m.Currency),
		Status:            m.Status,
		Method:            m.Method,
		Reference:         m.Reference,
		InvoiceID:         m.InvoiceID,
		ExpenseID:         m.ExpenseID,
		OriginalPaymentID: m.OriginalPaymentID,
		ProcessedAt:       m.ProcessedAt,
		Reconciliation: invoicing.PaymentReconciliation{
			Reconciled:        m.Reconciled,
			ReconciledAt:      m.ReconciledAt,
			DiscrepancyAmount: m.DiscrepancyAmount,
		},
	}
	m.PopulateTenantAggregateRoot(&p.TenantAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *invoicing.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.Direction = p.Direction
	m.Amount = p.Amount
	m.Currency = string(p.Currency)
	m.Status = p.Status
	m.Method = p.Method
	m.Reference = p.Reference
	m.InvoiceID = p.InvoiceID
	m.ExpenseID = p.ExpenseID
	m.OriginalPaymentID = p.OriginalPaymentID
	m.ProcessedAt = p.ProcessedAt
	m.Reconciled = p.Reconciliation.Reconciled
	m.ReconciledAt = p.Reconciliation.ReconciledAt
	m.DiscrepancyAmount = p.Reconciliation.DiscrepancyAmount
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// RecurringTemplateModel is the persistence model for the RecurringTemplate aggregate
type RecurringTemplateModel struct {
	TenantAggregateModel
	Name              string                       `gorm:"type:varchar(200);not null"`
	CustomerName      string                       `gorm:"type:varchar(200);not null"`
	CustomerEmail     string                       `gorm:"type:varchar(200)"`
	Currency          string                       `gorm:"type:varchar(3);not null;default:'EUR'"`
	Frequency         invoicing.Frequency          `gorm:"type:varchar(20);not null"`
	Interval          int                          `gorm:"column:interval_count;not null;default:1"`
	StartDate         time.Time                    `gorm:"type:date;not null"`
	NextExecutionDate time.Time                    `gorm:"type:date;not null;index"`
	AnchorDay         int                          `gorm:"not null;default:0"`
	EndDate           *time.Time                   `gorm:"type:date"`
	MaxOccurrences    *int
	TotalGenerated    int                          `gorm:"not null;default:0"`
	TotalAmount       decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	LastExecutionDate *time.Time                   `gorm:"type:date"`
	Status            invoicing.RecurringStatus    `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	Items             JSON[[]invoicing.LineItem]   `gorm:"type:jsonb;not null"`
	PaymentTerms      JSON[invoicing.PaymentTerms] `gorm:"type:jsonb;not null"`
}

// TableName returns the table name for GORM
func (RecurringTemplateModel) TableName() string {
	return "recurring_templates"
}

// ToDomain converts the persistence model to a domain RecurringTemplate
func (m *RecurringTemplateModel) ToDomain() *invoicing.RecurringTemplate {
	t := &invoicing.RecurringTemplate{
		Name:              m.Name,
		CustomerName:      m.CustomerName,
		CustomerEmail:     m.CustomerEmail,
		Currency:          valueobject.Currency(m.Currency),
		Frequency:         m.Frequency,
		Interval:          m.Interval,
		StartDate:         m.StartDate,
		NextExecutionDate: m.NextExecutionDate,
		AnchorDay:         m.AnchorDay,
		EndDate:           m.EndDate,
		MaxOccurrences:    m.MaxOccurrences,
		TotalGenerated:    m.TotalGenerated,
		TotalAmount:       m.TotalAmount,
		LastExecutionDate: m.LastExecutionDate,
		Status:            m.Status,
		Items:             m.Items.Data,
		PaymentTerms:      m.PaymentTerms.Data,
	}
	m.PopulateTenantAggregateRoot(&t.TenantAggregateRoot)
	if t.Items == nil {
		t.Items = []invoicing.LineItem{}
	}
	return t
}

// FromDomain populates the persistence model from a domain RecurringTemplate
func (m *RecurringTemplateModel) FromDomain(t *invoicing.RecurringTemplate) {
	m.FromDomainTenantAggregateRoot(t.TenantAggregateRoot)
	m.Name = t.Name
	m.CustomerName = t.CustomerName
	m.CustomerEmail = t.CustomerEmail
	m.Currency = string(t.Currency)
	m.Frequency = t.Frequency
	m.Interval = t.Interval
	m.StartDate = t.StartDate
	m.NextExecutionDate = t.NextExecutionDate
	m.AnchorDay = t.AnchorDay
	m.EndDate = t.EndDate
	m.MaxOccurrences = t.MaxOccurrences
	m.TotalGenerated = t.TotalGenerated
	m.TotalAmount = t.TotalAmount
	m.LastExecutionDate = t.LastExecutionDate
	m.Status = t.Status
	m.Items = NewJSON(t.Items)
	m.PaymentTerms = NewJSON(t.PaymentTerms)
}

// RecurringTemplateModelFromDomain creates a new persistence model from a domain RecurringTemplate
func RecurringTemplateModelFromDomain(t *invoicing.RecurringTemplate) *RecurringTemplateModel {
	m := &RecurringTemplateModel{}
	m.FromDomain(t)
	return m
}

// RecurringExecutionModel records one run of a template. The unique index on
// (template_id, scheduled_date) is the last line against duplicate invoices.
type RecurringExecutionModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	TemplateID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_recurring_executions_template_date,priority:1"`
	ScheduledDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_recurring_executions_template_date,priority:2"`
	InvoiceID     uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RecurringExecutionModel) TableName() string {
	return "recurring_executions"
}

// ToDomain converts the persistence model to a domain RecurringExecution
func (m *RecurringExecutionModel) ToDomain() invoicing.RecurringExecution {
	return invoicing.RecurringExecution{
		ID:            m.ID,
		TenantID:      m.TenantID,
		TemplateID:    m.TemplateID,
		ScheduledDate: m.ScheduledDate,
		InvoiceID:     m.InvoiceID,
		CreatedAt:     m.CreatedAt,
	}
}

// RecurringExecutionModelFromDomain creates a new persistence model from a domain RecurringExecution
func RecurringExecutionModelFromDomain(e invoicing.RecurringExecution) *RecurringExecutionModel {
	return &RecurringExecutionModel{
		ID:            e.ID,
		TenantID:      e.TenantID,
		TemplateID:    e.TemplateID,
		ScheduledDate: e.ScheduledDate,
		InvoiceID:     e.InvoiceID,
		CreatedAt:     e.CreatedAt,
	}
}
