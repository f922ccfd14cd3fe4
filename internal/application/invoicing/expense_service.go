package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ExpenseService provides the expense approval workflow
type ExpenseService struct {
	expenseRepo    invoicing.ExpenseRepository
	paymentRepo    invoicing.PaymentRepository
	policy         invoicing.ApprovalPolicy
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenseRepo invoicing.ExpenseRepository,
	paymentRepo invoicing.PaymentRepository,
	policy invoicing.ApprovalPolicy,
) *ExpenseService {
	return &ExpenseService{
		expenseRepo: expenseRepo,
		paymentRepo: paymentRepo,
		policy:      policy,
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher
func (s *ExpenseService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *ExpenseService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *ExpenseService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Create records a draft expense
func (s *ExpenseService) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req CreateExpenseRequest) (*ExpenseResponse, error) {
	number, err := s.expenseRepo.GenerateExpenseNumber(ctx, scope, req.IncurredAt)
	if err != nil {
		return nil, err
	}

	expense, err := invoicing.NewExpense(
		scope,
		number,
		req.Vendor,
		invoicing.ExpenseCategory(req.Category),
		req.Description,
		req.GrossAmount,
		req.TaxRate,
		req.IsDeductible,
		req.IncurredAt,
		actor,
	)
	if err != nil {
		return nil, err
	}

	if err := s.expenseRepo.Create(ctx, expense, actor); err != nil {
		return nil, err
	}

	resp := ToExpenseResponse(expense)
	return &resp, nil
}

// Get returns an expense of scope
func (s *ExpenseService) Get(ctx context.Context, scope, id uuid.UUID) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	resp := ToExpenseResponse(expense)
	return &resp, nil
}

// List returns a page of expenses of scope
func (s *ExpenseService) List(ctx context.Context, scope uuid.UUID, filter ListFilter) (*shared.Paginated[ExpenseResponse], error) {
	page, err := s.expenseRepo.List(ctx, scope, filter.toFilter())
	if err != nil {
		return nil, err
	}
	out := mapPage(page, ToExpenseResponse)
	return &out, nil
}

// Update applies a partial update to a draft expense
func (s *ExpenseService) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req UpdateExpenseRequest) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.Update(ctx, scope, id, req.toPatch(), actor)
	if err != nil {
		return nil, err
	}
	resp := ToExpenseResponse(expense)
	return &resp, nil
}

// Submit sends a draft for approval
func (s *ExpenseService) Submit(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*ExpenseResponse, error) {
	return s.apply(ctx, scope, id, func(e *invoicing.Expense) error {
		return e.Submit(actor)
	})
}

// Approve approves a pending expense under the approval policy
func (s *ExpenseService) Approve(ctx context.Context, scope, id uuid.UUID, approver shared.Actor) (*ExpenseResponse, error) {
	return s.apply(ctx, scope, id, func(e *invoicing.Expense) error {
		return e.Approve(approver, s.policy)
	})
}

// Reject rejects a pending expense with a reason
func (s *ExpenseService) Reject(ctx context.Context, scope, id uuid.UUID, approver shared.Actor, req RejectExpenseRequest) (*ExpenseResponse, error) {
	return s.apply(ctx, scope, id, func(e *invoicing.Expense) error {
		return e.Reject(approver, req.Reason)
	})
}

// Pay settles an approved expense and records the completed outgoing payment
func (s *ExpenseService) Pay(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req PayExpenseRequest) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	payment, err := invoicing.NewPayment(scope, invoicing.PaymentDirectionOutgoing, expense.GrossAmount,
		invoicing.PaymentMethod(req.Method), req.Reference, actor)
	if err != nil {
		return nil, err
	}
	if err := payment.ForExpense(expense.ID); err != nil {
		return nil, err
	}

	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}
	from := expense.Status
	if err := expense.MarkPaid(actor, paidAt); err != nil {
		return nil, err
	}
	if err := payment.Apply(invoicing.PaymentActionApprove, actor); err != nil {
		return nil, err
	}
	if err := payment.Apply(invoicing.PaymentActionProcess, actor); err != nil {
		return nil, err
	}

	if err := s.expenseRepo.Save(ctx, expense); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Create(ctx, payment, actor); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, expense, payment)
	s.recordTransition(ctx, expense, from)

	resp := ToExpenseResponse(expense)
	return &resp, nil
}

func (s *ExpenseService) apply(ctx context.Context, scope, id uuid.UUID, fn func(*invoicing.Expense) error) (*ExpenseResponse, error) {
	expense, err := s.expenseRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	from := expense.Status
	if err := fn(expense); err != nil {
		return nil, err
	}
	if err := s.expenseRepo.Save(ctx, expense); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, expense)
	s.recordTransition(ctx, expense, from)

	resp := ToExpenseResponse(expense)
	return &resp, nil
}

func (s *ExpenseService) recordTransition(ctx context.Context, e *invoicing.Expense, from invoicing.ExpenseStatus) {
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, e.TenantID, "expense", string(from), string(e.Status))
	}
	s.logger.Info("expense status changed",
		zap.String("expense_id", e.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(e.Status)),
	)
}

// Document loads an expense by id and checks it belongs to scope
func (s *ExpenseService) Document(ctx context.Context, scope, id uuid.UUID) (*invoicing.Expense, error) {
	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !expense.BelongsTo(scope) {
		return nil, shared.ErrAccessDenied
	}
	return expense, nil
}
