package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/invoicing"
)

// LineItemInput is a line item as submitted by a client
type LineItemInput struct {
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// PaymentTermsInput is the client form of payment terms
type PaymentTermsInput struct {
	DueDays        int              `json:"due_days" binding:"min=0,max=365"`
	DueDate        *time.Time       `json:"due_date"`
	DiscountDays   *int             `json:"discount_days"`
	DiscountRate   *decimal.Decimal `json:"discount_rate"`
	PaymentMethods []string         `json:"payment_methods"`
}

func (in *PaymentTermsInput) toDomain() invoicing.PaymentTerms {
	if in == nil {
		return invoicing.PaymentTerms{DueDays: 14}
	}
	terms := invoicing.PaymentTerms{
		DueDays:      in.DueDays,
		DiscountDays: in.DiscountDays,
		DiscountRate: in.DiscountRate,
	}
	if in.DueDate != nil {
		terms.DueDate = *in.DueDate
	}
	for _, m := range in.PaymentMethods {
		terms.PaymentMethods = append(terms.PaymentMethods, invoicing.PaymentMethod(m))
	}
	return terms
}

func toLineItems(inputs []LineItemInput) ([]invoicing.LineItem, error) {
	items := make([]invoicing.LineItem, 0, len(inputs))
	for _, in := range inputs {
		item, err := invoicing.NewLineItem(in.Description, in.Quantity, in.UnitPrice, in.TaxRate)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CreateInvoiceRequest represents a request to draft an invoice
type CreateInvoiceRequest struct {
	CustomerName  string             `json:"customer_name" binding:"required,min=1,max=200"`
	CustomerEmail string             `json:"customer_email" binding:"omitempty,email"`
	IssueDate     time.Time          `json:"issue_date" binding:"required"`
	Items         []LineItemInput    `json:"items" binding:"dive"`
	PaymentTerms  *PaymentTermsInput `json:"payment_terms"`
	Notes         string             `json:"notes" binding:"max=2000"`
}

// UpdateInvoiceRequest is a partial update; absent fields are unchanged
type UpdateInvoiceRequest struct {
	CustomerName  *string            `json:"customer_name" binding:"omitempty,min=1,max=200"`
	CustomerEmail *string            `json:"customer_email" binding:"omitempty,email"`
	IssueDate     *time.Time         `json:"issue_date"`
	Items         *[]LineItemInput   `json:"items"`
	PaymentTerms  *PaymentTermsInput `json:"payment_terms"`
	Notes         *string            `json:"notes" binding:"omitempty,max=2000"`
}

func (r UpdateInvoiceRequest) toPatch() (invoicing.InvoicePatch, error) {
	patch := invoicing.InvoicePatch{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		IssueDate:     r.IssueDate,
		Notes:         r.Notes,
	}
	if r.PaymentTerms != nil {
		terms := r.PaymentTerms.toDomain()
		patch.PaymentTerms = &terms
	}
	if r.Items != nil {
		items, err := toLineItems(*r.Items)
		if err != nil {
			return patch, err
		}
		patch.Items = &items
	}
	return patch, nil
}

// TransitionInvoiceRequest asks for a status change
type TransitionInvoiceRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListFilter is the shared list query of all document endpoints
type ListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                  uuid.UUID                   `json:"id"`
	TenantID            uuid.UUID                   `json:"tenant_id"`
	InvoiceNumber       string                      `json:"invoice_number"`
	CustomerName        string                      `json:"customer_name"`
	CustomerEmail       string                      `json:"customer_email,omitempty"`
	Currency            string                      `json:"currency"`
	Status              string                      `json:"status"`
	Items               []LineItemResponse          `json:"items"`
	NetAmount           decimal.Decimal             `json:"net_amount"`
	TaxAmount           decimal.Decimal             `json:"tax_amount"`
	GrossAmount         decimal.Decimal             `json:"gross_amount"`
	TaxSummary          []invoicing.TaxSummaryEntry `json:"tax_summary"`
	PaymentTerms        invoicing.PaymentTerms      `json:"payment_terms"`
	IssueDate           time.Time                   `json:"issue_date"`
	Immutable           bool                        `json:"immutable"`
	Notes               string                      `json:"notes,omitempty"`
	SentAt              *time.Time                  `json:"sent_at,omitempty"`
	PaidAt              *time.Time                  `json:"paid_at,omitempty"`
	CancelledAt         *time.Time                  `json:"cancelled_at,omitempty"`
	RecurringTemplateID *uuid.UUID                  `json:"recurring_template_id,omitempty"`
	CreatedBy           *uuid.UUID                  `json:"created_by,omitempty"`
	LastModifiedBy      *uuid.UUID                  `json:"last_modified_by,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
	Version             int                         `json:"version"`
}

func toLineItemResponses(items []invoicing.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, len(items))
	for i, it := range items {
		out[i] = LineItemResponse{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			TotalPrice:  it.TotalPrice,
			TaxAmount:   it.TaxAmount,
		}
	}
	return out
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                  inv.ID,
		TenantID:            inv.TenantID,
		InvoiceNumber:       inv.InvoiceNumber,
		CustomerName:        inv.CustomerName,
		CustomerEmail:       inv.CustomerEmail,
		Currency:            string(inv.Currency),
		Status:              string(inv.Status),
		Items:               toLineItemResponses(inv.Items),
		NetAmount:           inv.NetAmount,
		TaxAmount:           inv.TaxAmount,
		GrossAmount:         inv.GrossAmount,
		TaxSummary:          inv.TaxSummary,
		PaymentTerms:        inv.PaymentTerms,
		IssueDate:           inv.IssueDate,
		Immutable:           inv.Immutable,
		Notes:               inv.Notes,
		SentAt:              inv.SentAt,
		PaidAt:              inv.PaidAt,
		CancelledAt:         inv.CancelledAt,
		RecurringTemplateID: inv.RecurringTemplateID,
		CreatedBy:           inv.CreatedBy,
		LastModifiedBy:      inv.LastModifiedBy,
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
		Version:             inv.Version,
	}
}

// CreateExpenseRequest represents a request to record an expense
type CreateExpenseRequest struct {
	Vendor       string          `json:"vendor" binding:"required,min=1,max=200"`
	Category     string          `json:"category" binding:"required"`
	Description  string          `json:"description" binding:"max=2000"`
	GrossAmount  decimal.Decimal `json:"gross_amount" binding:"required"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	IsDeductible bool            `json:"is_deductible"`
	IncurredAt   time.Time       `json:"incurred_at" binding:"required"`
}

// UpdateExpenseRequest is a partial update of a draft expense
type UpdateExpenseRequest struct {
	Vendor       *string          `json:"vendor" binding:"omitempty,min=1,max=200"`
	Category     *string          `json:"category"`
	Description  *string          `json:"description" binding:"omitempty,max=2000"`
	GrossAmount  *decimal.Decimal `json:"gross_amount"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	IsDeductible *bool            `json:"is_deductible"`
	IncurredAt   *time.Time       `json:"incurred_at"`
}

func (r UpdateExpenseRequest) toPatch() invoicing.ExpensePatch {
	patch := invoicing.ExpensePatch{
		Vendor:       r.Vendor,
		Description:  r.Description,
		GrossAmount:  r.GrossAmount,
		TaxRate:      r.TaxRate,
		IsDeductible: r.IsDeductible,
		IncurredAt:   r.IncurredAt,
	}
	if r.Category != nil {
		c := invoicing.ExpenseCategory(*r.Category)
		patch.Category = &c
	}
	return patch
}

// RejectExpenseRequest carries the mandatory rejection reason
type RejectExpenseRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// PayExpenseRequest settles an approved expense with an outgoing payment
type PayExpenseRequest struct {
	Method    string     `json:"method" binding:"required"`
	Reference string     `json:"reference" binding:"max=200"`
	PaidAt    *time.Time `json:"paid_at"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID              uuid.UUID              `json:"id"`
	TenantID        uuid.UUID              `json:"tenant_id"`
	ExpenseNumber   string                 `json:"expense_number"`
	Vendor          string                 `json:"vendor"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description,omitempty"`
	GrossAmount     decimal.Decimal        `json:"gross_amount"`
	Currency        string                 `json:"currency"`
	IncurredAt      time.Time              `json:"incurred_at"`
	Status          string                 `json:"status"`
	TaxBreakdown    invoicing.TaxBreakdown `json:"tax_breakdown"`
	ApprovedBy      *uuid.UUID             `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	RejectionReason string                 `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time             `json:"submitted_at,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	CreatedBy       *uuid.UUID             `json:"created_by,omitempty"`
	LastModifiedBy  *uuid.UUID             `json:"last_modified_by,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Version         int                    `json:"version"`
}

// ToExpenseResponse converts a domain expense
func ToExpenseResponse(e *invoicing.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:              e.ID,
		TenantID:        e.TenantID,
		ExpenseNumber:   e.ExpenseNumber,
		Vendor:          e.Vendor,
		Category:        string(e.Category),
		Description:     e.Description,
		GrossAmount:     e.GrossAmount,
		Currency:        string(e.Currency),
		IncurredAt:      e.IncurredAt,
		Status:          string(e.Status),
		TaxBreakdown:    e.TaxBreakdown,
		ApprovedBy:      e.Approval.ApprovedBy,
		ApprovedAt:      e.Approval.ApprovedAt,
		RejectionReason: e.Approval.RejectionReason,
		SubmittedAt:     e.SubmittedAt,
		PaidAt:          e.PaidAt,
		CreatedBy:       e.CreatedBy,
		LastModifiedBy:  e.LastModifiedBy,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		Version:         e.Version,
	}
}

// CreatePaymentRequest represents a request to record a payment
type CreatePaymentRequest struct {
	Direction string          `json:"direction" binding:"required,oneof=INCOMING OUTGOING"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference" binding:"max=200"`
	InvoiceID *uuid.UUID      `json:"invoice_id"`
	ExpenseID *uuid.UUID      `json:"expense_id"`
}

// PaymentActionRequest applies an action to a payment
type PaymentActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID                       `json:"id"`
	TenantID          uuid.UUID                       `json:"tenant_id"`
	Direction         string                          `json:"direction"`
	Amount            decimal.Decimal                 `json:"amount"`
	Currency          string                          `json:"currency"`
	Status            string                          `json:"status"`
	Method            string                          `json:"method"`
	Reference         string                          `json:"reference,omitempty"`
	InvoiceID         *uuid.UUID                      `json:"invoice_id,omitempty"`
	ExpenseID         *uuid.UUID                      `json:"expense_id,omitempty"`
	OriginalPaymentID *uuid.UUID                      `json:"original_payment_id,omitempty"`
	ProcessedAt       *time.Time                      `json:"processed_at,omitempty"`
	Reconciliation    invoicing.PaymentReconciliation `json:"reconciliation"`
	CreatedAt         time.Time                       `json:"created_at"`
	UpdatedAt         time.Time                       `json:"updated_at"`
	Version           int                             `json:"version"`
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		TenantID:          p.TenantID,
		Direction:         string(p.Direction),
		Amount:            p.Amount,
		Currency:          string(p.Currency),
		Status:            string(p.Status),
		Method:            string(p.Method),
		Reference:         p.Reference,
		InvoiceID:         p.InvoiceID,
		ExpenseID:         p.ExpenseID,
		OriginalPaymentID: p.OriginalPaymentID,
		ProcessedAt:       p.ProcessedAt,
		Reconciliation:    p.Reconciliation,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
}

// PaymentActionResponse returns the payment and, for refunds, the reversal
type PaymentActionResponse struct {
	Payment PaymentResponse  `json:"payment"`
	Refund  *PaymentResponse `json:"refund,omitempty"`
}

// CreateRecurringTemplateRequest represents a request to create a recurring template
type CreateRecurringTemplateRequest struct {
	Name           string             `json:"name" binding:"required,min=1,max=200"`
	CustomerName   string             `json:"customer_name" binding:"required,min=1,max=200"`
	CustomerEmail  string             `json:"customer_email" binding:"omitempty,email"`
	Frequency      string             `json:"frequency" binding:"required"`
	Interval       int                `json:"interval" binding:"omitempty,min=1,max=52"`
	StartDate      time.Time          `json:"start_date" binding:"required"`
	EndDate        *time.Time         `json:"end_date"`
	MaxOccurrences *int               `json:"max_occurrences" binding:"omitempty,min=1"`
	Items          []LineItemInput    `json:"items" binding:"required,min=1,dive"`
	PaymentTerms   *PaymentTermsInput `json:"payment_terms"`
}

// UpdateRecurringTemplateRequest is a partial template update
type UpdateRecurringTemplateRequest struct {
	Name           *string            `json:"name" binding:"omitempty,min=1,max=200"`
	CustomerName   *string            `json:"customer_name" binding:"omitempty,min=1,max=200"`
	Frequency      *string            `json:"frequency"`
	Interval       *int               `json:"interval" binding:"omitempty,min=1,max=52"`
	EndDate        *time.Time         `json:"end_date"`
	MaxOccurrences *int               `json:"max_occurrences" binding:"omitempty,min=1"`
	Items          *[]LineItemInput   `json:"items"`
	PaymentTerms   *PaymentTermsInput `json:"payment_terms"`
	Status         *string            `json:"status" binding:"omitempty,oneof=ACTIVE PAUSED"`
}

func (r UpdateRecurringTemplateRequest) toPatch() (invoicing.RecurringTemplatePatch, error) {
	patch := invoicing.RecurringTemplatePatch{
		Name:           r.Name,
		CustomerName:   r.CustomerName,
		Interval:       r.Interval,
		EndDate:        r.EndDate,
		MaxOccurrences: r.MaxOccurrences,
	}
	if r.Frequency != nil {
		f := invoicing.Frequency(*r.Frequency)
		patch.Frequency = &f
	}
	if r.Status != nil {
		s := invoicing.RecurringStatus(*r.Status)
		patch.Status = &s
	}
	if r.PaymentTerms != nil {
		terms := r.PaymentTerms.toDomain()
		patch.PaymentTerms = &terms
	}
	if r.Items != nil {
		items, err := toLineItems(*r.Items)
		if err != nil {
			return patch, err
		}
		patch.Items = &items
	}
	return patch, nil
}

// RecurringTemplateResponse represents a recurring template in API responses
type RecurringTemplateResponse struct {
	ID                uuid.UUID              `json:"id"`
	TenantID          uuid.UUID              `json:"tenant_id"`
	Name              string                 `json:"name"`
	CustomerName      string                 `json:"customer_name"`
	CustomerEmail     string                 `json:"customer_email,omitempty"`
	Frequency         string                 `json:"frequency"`
	Interval          int                    `json:"interval"`
	StartDate         time.Time              `json:"start_date"`
	NextExecutionDate time.Time              `json:"next_execution_date"`
	EndDate           *time.Time             `json:"end_date,omitempty"`
	MaxOccurrences    *int                   `json:"max_occurrences,omitempty"`
	TotalGenerated    int                    `json:"total_generated"`
	TotalAmount       decimal.Decimal        `json:"total_amount"`
	LastExecutionDate *time.Time             `json:"last_execution_date,omitempty"`
	Status            string                 `json:"status"`
	Items             []LineItemResponse     `json:"items"`
	PaymentTerms      invoicing.PaymentTerms `json:"payment_terms"`
	GrossPerInvoice   decimal.Decimal        `json:"gross_per_invoice"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Version           int                    `json:"version"`
}

// ToRecurringTemplateResponse converts a domain template
func ToRecurringTemplateResponse(t *invoicing.RecurringTemplate) RecurringTemplateResponse {
	return RecurringTemplateResponse{
		ID:                t.ID,
		TenantID:          t.TenantID,
		Name:              t.Name,
		CustomerName:      t.CustomerName,
		CustomerEmail:     t.CustomerEmail,
		Frequency:         string(t.Frequency),
		Interval:          t.Interval,
		StartDate:         t.StartDate,
		NextExecutionDate: t.NextExecutionDate,
		EndDate:           t.EndDate,
		MaxOccurrences:    t.MaxOccurrences,
		TotalGenerated:    t.TotalGenerated,
		TotalAmount:       t.TotalAmount,
		LastExecutionDate: t.LastExecutionDate,
		Status:            string(t.Status),
		Items:             toLineItemResponses(t.Items),
		PaymentTerms:      t.PaymentTerms,
		GrossPerInvoice:   t.TemplateTotals().GrossAmount,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		Version:           t.Version,
	}
}

// RunOutcome is what happened to one template during a run
type RunOutcome string

const (
	RunOutcomeExecuted  RunOutcome = "EXECUTED"
	RunOutcomeSkipped   RunOutcome = "SKIPPED"
	RunOutcomeCompleted RunOutcome = "COMPLETED"
	RunOutcomeNotDue    RunOutcome = "NOT_DUE"
)

// RunResult reports one template run
type RunResult struct {
	TemplateID    uuid.UUID   `json:"template_id"`
	TenantID      uuid.UUID   `json:"tenant_id"`
	ScheduledDate time.Time   `json:"scheduled_date"`
	Outcome       RunOutcome  `json:"outcome"`
	InvoiceIDs    []uuid.UUID `json:"invoice_ids,omitempty"`
}

// RunSummary aggregates a batch of runs
type RunSummary struct {
	Executed  int         `json:"executed"`
	Skipped   int         `json:"skipped"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Results   []RunResult `json:"results"`
}

func (s *RunSummary) add(r RunResult) {
	s.Executed += len(r.InvoiceIDs)
	switch r.Outcome {
	case RunOutcomeSkipped:
		s.Skipped++
	case RunOutcomeCompleted:
		s.Completed++
	}
	s.Results = append(s.Results, r)
}

// OverdueSweepResult reports invoices moved to OVERDUE
type OverdueSweepResult struct {
	TenantID  uuid.UUID   `json:"tenant_id"`
	AsOf      time.Time   `json:"as_of"`
	Checked   int         `json:"checked"`
	MarkedIDs []uuid.UUID `json:"marked_ids"`
	FailedIDs []uuid.UUID `json:"failed_ids,omitempty"`
}
