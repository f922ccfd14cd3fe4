package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// ExpenseCategory represents the category of an expense
type ExpenseCategory string

const (
	ExpenseCategoryRent       ExpenseCategory = "RENT"
	ExpenseCategoryUtilities  ExpenseCategory = "UTILITIES"
	ExpenseCategoryOffice     ExpenseCategory = "OFFICE"
	ExpenseCategoryTravel     ExpenseCategory = "TRAVEL"
	ExpenseCategoryMarketing  ExpenseCategory = "MARKETING"
	ExpenseCategorySoftware   ExpenseCategory = "SOFTWARE"
	ExpenseCategoryInsurance  ExpenseCategory = "INSURANCE"
	ExpenseCategoryContractor ExpenseCategory = "CONTRACTOR"
	ExpenseCategoryOther      ExpenseCategory = "OTHER"
)

// IsValid checks if the category is a valid ExpenseCategory
func (c ExpenseCategory) IsValid() bool {
	switch c {
	case ExpenseCategoryRent, ExpenseCategoryUtilities, ExpenseCategoryOffice,
		ExpenseCategoryTravel, ExpenseCategoryMarketing, ExpenseCategorySoftware,
		ExpenseCategoryInsurance, ExpenseCategoryContractor, ExpenseCategoryOther:
		return true
	}
	return false
}

// ExpenseStatus represents the status of an expense
type ExpenseStatus string

const (
	ExpenseStatusDraft     ExpenseStatus = "DRAFT"
	ExpenseStatusPending   ExpenseStatus = "PENDING"
	ExpenseStatusApproved  ExpenseStatus = "APPROVED"
	ExpenseStatusRejected  ExpenseStatus = "REJECTED"
	ExpenseStatusPaid      ExpenseStatus = "PAID"
	ExpenseStatusCancelled ExpenseStatus = "CANCELLED"
)

var expenseTransitions = map[ExpenseStatus][]ExpenseStatus{
	ExpenseStatusDraft:    {ExpenseStatusPending, ExpenseStatusCancelled},
	ExpenseStatusPending:  {ExpenseStatusApproved, ExpenseStatusRejected, ExpenseStatusCancelled},
	ExpenseStatusApproved: {ExpenseStatusPaid},
	ExpenseStatusRejected: {ExpenseStatusDraft},
}

// IsValid checks if the status is a valid ExpenseStatus
func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseStatusDraft, ExpenseStatusPending, ExpenseStatusApproved,
		ExpenseStatusRejected, ExpenseStatusPaid, ExpenseStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if the expense is in a terminal state
func (s ExpenseStatus) IsTerminal() bool {
	return s == ExpenseStatusPaid || s == ExpenseStatusCancelled
}

// AssertExpenseTransition fails with INVALID_TRANSITION outside the allow-list
func AssertExpenseTransition(current, requested ExpenseStatus) error {
	for _, allowed := range expenseTransitions[current] {
		if allowed == requested {
			return nil
		}
	}
	return shared.NewInvalidTransitionError(string(current), string(requested))
}

// Approval records who decided on an expense
type Approval struct {
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// TaxBreakdown is the input-tax split of an expense's gross amount
type TaxBreakdown struct {
	IsDeductible bool            `json:"is_deductible"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

// NewTaxBreakdown derives net and tax from gross with SplitGrossToNet
func NewTaxBreakdown(gross, rate decimal.Decimal, deductible bool) (TaxBreakdown, error) {
	net, tax, err := SplitGrossToNet(gross, rate)
	if err != nil {
		return TaxBreakdown{}, err
	}
	return TaxBreakdown{IsDeductible: deductible, TaxRate: rate, NetAmount: net, TaxAmount: tax}, nil
}

// Expense is an incoming bill or receipt
type Expense struct {
	shared.TenantAggregateRoot
	ExpenseNumber string
	Vendor        string
	Category      ExpenseCategory
	Description   string
	GrossAmount   decimal.Decimal
	Currency      valueobject.Currency
	IncurredAt    time.Time
	Status        ExpenseStatus
	Approval      Approval
	TaxBreakdown  TaxBreakdown
	SubmittedAt   *time.Time
	PaidAt        *time.Time
}

// NewExpense creates a DRAFT expense and derives its tax breakdown
func NewExpense(
	tenantID uuid.UUID,
	expenseNumber, vendor string,
	category ExpenseCategory,
	description string,
	gross, taxRate decimal.Decimal,
	deductible bool,
	incurredAt time.Time,
	actor shared.Actor,
) (*Expense, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if strings.TrimSpace(expenseNumber) == "" {
		return nil, shared.NewMissingFieldError("expense number")
	}
	if strings.TrimSpace(vendor) == "" {
		return nil, shared.NewMissingFieldError("vendor")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Expense category is not valid")
	}
	if !gross.IsPositive() {
		return nil, shared.NewInvalidAmountError("Gross amount must be positive")
	}
	if incurredAt.IsZero() {
		return nil, shared.NewMissingFieldError("incurred at")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	breakdown, err := NewTaxBreakdown(valueobject.RoundCents(gross), taxRate, deductible)
	if err != nil {
		return nil, err
	}

	return &Expense{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, actor),
		ExpenseNumber:       expenseNumber,
		Vendor:              vendor,
		Category:            category,
		Description:         description,
		GrossAmount:         valueobject.RoundCents(gross),
		Currency:            valueobject.DefaultCurrency,
		IncurredAt:          incurredAt,
		Status:              ExpenseStatusDraft,
		TaxBreakdown:        breakdown,
	}, nil
}

func (e *Expense) moveTo(target ExpenseStatus, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if err := AssertExpenseTransition(e.Status, target); err != nil {
		return err
	}
	from := e.Status
	e.Status = target
	e.Touch(actor)
	e.AddDomainEvent(NewExpenseStatusChangedEvent(e, from, target, actor))
	return nil
}

// Submit sends a draft for approval
func (e *Expense) Submit(actor shared.Actor) error {
	if err := e.moveTo(ExpenseStatusPending, actor); err != nil {
		return err
	}
	now := time.Now()
	e.SubmittedAt = &now
	return nil
}

// Approve approves a pending expense once the policy admits the approver
func (e *Expense) Approve(approver shared.Actor, policy ApprovalPolicy) error {
	if e.Status != ExpenseStatusPending {
		return shared.NewInvalidTransitionError(string(e.Status), string(ExpenseStatusApproved))
	}
	if err := policy.Authorize(e, approver); err != nil {
		return err
	}
	if err := e.moveTo(ExpenseStatusApproved, approver); err != nil {
		return err
	}
	now := time.Now()
	e.Approval = Approval{ApprovedBy: approver.RecordID(), ApprovedAt: &now}
	return nil
}

// Reject rejects a pending expense; a reason is mandatory
func (e *Expense) Reject(approver shared.Actor, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.NewMissingFieldError("rejection reason")
	}
	if err := e.moveTo(ExpenseStatusRejected, approver); err != nil {
		return err
	}
	now := time.Now()
	e.Approval = Approval{ApprovedBy: approver.RecordID(), ApprovedAt: &now, RejectionReason: reason}
	return nil
}

// Reopen moves a rejected expense back to draft for correction
func (e *Expense) Reopen(actor shared.Actor) error {
	if err := e.moveTo(ExpenseStatusDraft, actor); err != nil {
		return err
	}
	e.Approval = Approval{}
	return nil
}

// Cancel withdraws a draft or pending expense
func (e *Expense) Cancel(actor shared.Actor) error {
	return e.moveTo(ExpenseStatusCancelled, actor)
}

// MarkPaid settles an approved expense
func (e *Expense) MarkPaid(actor shared.Actor, paidAt time.Time) error {
	if err := e.moveTo(ExpenseStatusPaid, actor); err != nil {
		return err
	}
	e.PaidAt = &paidAt
	return nil
}

// ApplyPatch updates a draft expense and re-derives the tax breakdown
func (e *Expense) ApplyPatch(p ExpensePatch, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if p.IsEmpty() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Patch contains no changes")
	}
	if e.Status != ExpenseStatusDraft {
		return shared.ErrImmutableDocument
	}

	gross := e.GrossAmount
	rate := e.TaxBreakdown.TaxRate
	deductible := e.TaxBreakdown.IsDeductible
	if p.GrossAmount != nil {
		if !p.GrossAmount.IsPositive() {
			return shared.NewInvalidAmountError("Gross amount must be positive")
		}
		gross = valueobject.RoundCents(*p.GrossAmount)
	}
	if p.TaxRate != nil {
		rate = *p.TaxRate
	}
	if p.IsDeductible != nil {
		deductible = *p.IsDeductible
	}
	breakdown, err := NewTaxBreakdown(gross, rate, deductible)
	if err != nil {
		return err
	}
	if p.Category != nil {
		if !p.Category.IsValid() {
			return shared.NewDomainError(shared.CodeInvalidInput, "Expense category is not valid")
		}
		e.Category = *p.Category
	}
	if p.Vendor != nil {
		if strings.TrimSpace(*p.Vendor) == "" {
			return shared.NewMissingFieldError("vendor")
		}
		e.Vendor = *p.Vendor
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.IncurredAt != nil {
		e.IncurredAt = *p.IncurredAt
	}
	e.GrossAmount = gross
	e.TaxBreakdown = breakdown
	e.Touch(actor)
	return nil
}
