package invoicing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

func pendingExpense(t *testing.T, tenant uuid.UUID, submitter shared.Actor, gross string) *invoicing.Expense {
	t.Helper()
	e, err := invoicing.NewExpense(tenant, "EXP-202401-00001", "Stadtwerke", invoicing.ExpenseCategoryUtilities, "",
		decimal.RequireFromString(gross), decimal.NewFromInt(19), true, date(2024, 1, 10), submitter)
	require.NoError(t, err)
	require.NoError(t, e.Submit(submitter))
	e.ClearDomainEvents()
	return e
}

func TestExpenseService_Create(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	actor := shared.NewUserActor(uuid.New())

	repo := new(MockExpenseRepository)
	repo.On("GenerateExpenseNumber", ctx, tenant, date(2024, 1, 10)).Return("EXP-202401-00003", nil)
	repo.On("Create", ctx, mock.AnythingOfType("*invoicing.Expense"), actor).Return(nil)

	svc := NewExpenseService(repo, new(MockPaymentRepository), invoicing.NewThresholdApprovalPolicy(decimal.NewFromInt(500), false))
	resp, err := svc.Create(ctx, tenant, actor, CreateExpenseRequest{
		Vendor:       "Stadtwerke",
		Category:     "UTILITIES",
		GrossAmount:  decimal.RequireFromString("119"),
		TaxRate:      decimal.NewFromInt(19),
		IsDeductible: true,
		IncurredAt:   date(2024, 1, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "EXP-202401-00003", resp.ExpenseNumber)
	assert.Equal(t, "DRAFT", resp.Status)
	assert.True(t, resp.TaxBreakdown.NetAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, resp.TaxBreakdown.TaxAmount.Equal(decimal.NewFromInt(19)))
}

func TestExpenseService_Approve(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	submitter := shared.NewUserActor(uuid.New())
	policy := invoicing.NewThresholdApprovalPolicy(decimal.NewFromInt(500), false)

	tests := []struct {
		name     string
		gross    string
		approver shared.Actor
		wantCode string
	}{
		{name: "other user above threshold", gross: "800", approver: shared.NewUserActor(uuid.New())},
		{name: "self approval above threshold", gross: "800", approver: submitter, wantCode: shared.CodeAccessDenied},
		{name: "system above threshold", gross: "800", approver: shared.SystemActor, wantCode: shared.CodeApprovalRequired},
		{name: "system below threshold", gross: "120", approver: shared.SystemActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := pendingExpense(t, tenant, submitter, tt.gross)
			repo := new(MockExpenseRepository)
			repo.On("GetByID", ctx, tenant, e.ID).Return(e, nil)
			repo.On("Save", ctx, e).Return(nil)
			svc := NewExpenseService(repo, new(MockPaymentRepository), policy)

			resp, err := svc.Approve(ctx, tenant, e.ID, tt.approver)
			if tt.wantCode != "" {
				var de *shared.DomainError
				require.True(t, errors.As(err, &de), "got %v", err)
				assert.Equal(t, tt.wantCode, de.Code)
				repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "APPROVED", resp.Status)
			assert.NotNil(t, resp.ApprovedAt)
		})
	}
}

func TestExpenseService_RejectNeedsReason(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	e := pendingExpense(t, tenant, shared.NewUserActor(uuid.New()), "50")

	repo := new(MockExpenseRepository)
	repo.On("GetByID", ctx, tenant, e.ID).Return(e, nil)
	repo.On("Save", ctx, e).Return(nil)
	svc := NewExpenseService(repo, new(MockPaymentRepository), invoicing.NewThresholdApprovalPolicy(decimal.NewFromInt(500), false))

	_, err := svc.Reject(ctx, tenant, e.ID, shared.NewUserActor(uuid.New()), RejectExpenseRequest{Reason: "  "})
	assert.True(t, errors.Is(err, shared.NewMissingFieldError("")))

	resp, err := svc.Reject(ctx, tenant, e.ID, shared.NewUserActor(uuid.New()), RejectExpenseRequest{Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, "REJECTED", resp.Status)
	assert.Equal(t, "duplicate", resp.RejectionReason)
}

func TestExpenseService_Pay(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	approver := shared.NewUserActor(uuid.New())
	policy := invoicing.NewThresholdApprovalPolicy(decimal.NewFromInt(500), false)

	e := pendingExpense(t, tenant, shared.NewUserActor(uuid.New()), "59.50")
	require.NoError(t, e.Approve(approver, policy))
	e.ClearDomainEvents()

	expenseRepo := new(MockExpenseRepository)
	expenseRepo.On("GetByID", ctx, tenant, e.ID).Return(e, nil)
	expenseRepo.On("Save", ctx, e).Return(nil)
	paymentRepo := new(MockPaymentRepository)
	paymentRepo.On("Create", ctx, mock.MatchedBy(func(p *invoicing.Payment) bool {
		return p.Direction == invoicing.PaymentDirectionOutgoing &&
			p.Status == invoicing.PaymentStatusCompleted &&
			p.ExpenseID != nil && *p.ExpenseID == e.ID &&
			p.Amount.Equal(decimal.RequireFromString("59.50"))
	}), approver).Return(nil)

	svc := NewExpenseService(expenseRepo, paymentRepo, policy)
	resp, err := svc.Pay(ctx, tenant, e.ID, approver, PayExpenseRequest{Method: "BANK_TRANSFER"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", resp.Status)
	assert.NotNil(t, resp.PaidAt)
	paymentRepo.AssertExpectations(t)
}

func TestExpenseService_PayRequiresApproval(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	e := pendingExpense(t, tenant, shared.NewUserActor(uuid.New()), "20")

	expenseRepo := new(MockExpenseRepository)
	expenseRepo.On("GetByID", ctx, tenant, e.ID).Return(e, nil)
	paymentRepo := new(MockPaymentRepository)
	svc := NewExpenseService(expenseRepo, paymentRepo, invoicing.NewThresholdApprovalPolicy(decimal.NewFromInt(500), false))

	_, err := svc.Pay(ctx, tenant, e.ID, shared.NewUserActor(uuid.New()), PayExpenseRequest{Method: "CASH"})
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	paymentRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}
