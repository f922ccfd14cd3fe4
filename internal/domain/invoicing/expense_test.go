package invoicing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

func newExpense(t *testing.T, gross string, submitter shared.Actor) *invoicing.Expense {
	t.Helper()
	e, err := invoicing.NewExpense(
		uuid.New(), "EXP-202401-00001", "Office Supplies AG", invoicing.ExpenseCategoryOffice,
		"Printer paper", d(gross), d("19"), true,
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), submitter,
	)
	require.NoError(t, err)
	return e
}

func TestNewExpense_TaxBreakdown(t *testing.T) {
	e := newExpense(t, "119.00", shared.NewUserActor(uuid.New()))
	assert.Equal(t, invoicing.ExpenseStatusDraft, e.Status)
	assertDecimal(t, "100.00", e.TaxBreakdown.NetAmount)
	assertDecimal(t, "19.00", e.TaxBreakdown.TaxAmount)
	assert.True(t, e.TaxBreakdown.IsDeductible)

	_, err := invoicing.NewExpense(uuid.New(), "EXP-1", "V", invoicing.ExpenseCategoryOffice, "", d("-5"), d("19"), true, time.Now(), shared.SystemActor)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidAmount, de.Code)
}

func TestExpense_Workflow(t *testing.T) {
	submitter := shared.NewUserActor(uuid.New())
	approver := shared.NewUserActor(uuid.New())
	policy := invoicing.NewThresholdApprovalPolicy(d("500"), false)

	e := newExpense(t, "119.00", submitter)
	err := e.Approve(approver, policy)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition), "drafts cannot be approved")

	require.NoError(t, e.Submit(submitter))
	assert.NotNil(t, e.SubmittedAt)
	require.NoError(t, e.Approve(approver, policy))
	assert.Equal(t, invoicing.ExpenseStatusApproved, e.Status)
	assert.Equal(t, approver.ID, *e.Approval.ApprovedBy)

	paidAt := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.MarkPaid(approver, paidAt))
	assert.Equal(t, paidAt, *e.PaidAt)
	assert.True(t, e.Status.IsTerminal())
}

func TestExpense_RejectAndReopen(t *testing.T) {
	submitter := shared.NewUserActor(uuid.New())
	approver := shared.NewUserActor(uuid.New())
	e := newExpense(t, "50.00", submitter)
	require.NoError(t, e.Submit(submitter))

	var de *shared.DomainError
	require.True(t, errors.As(e.Reject(approver, "  "), &de))
	assert.Equal(t, shared.CodeMissingRequiredField, de.Code)

	require.NoError(t, e.Reject(approver, "missing receipt"))
	assert.Equal(t, "missing receipt", e.Approval.RejectionReason)

	amount := d("59.50")
	assert.True(t, errors.Is(e.ApplyPatch(invoicing.ExpensePatch{GrossAmount: &amount}, submitter), shared.ErrImmutableDocument))

	require.NoError(t, e.Reopen(submitter))
	assert.Empty(t, e.Approval.RejectionReason)
	require.NoError(t, e.ApplyPatch(invoicing.ExpensePatch{GrossAmount: &amount}, submitter))
	assertDecimal(t, "50.00", e.TaxBreakdown.NetAmount)
	assertDecimal(t, "9.50", e.TaxBreakdown.TaxAmount)
}

func TestThresholdApprovalPolicy(t *testing.T) {
	submitter := shared.NewUserActor(uuid.New())
	other := shared.NewUserActor(uuid.New())

	tests := []struct {
		name        string
		gross       string
		allowSystem bool
		approver    shared.Actor
		wantCode    string
	}{
		{name: "below threshold self approval", gross: "499.99", approver: submitter},
		{name: "below threshold system", gross: "10.00", approver: shared.SystemActor},
		{name: "at threshold other user", gross: "500.00", approver: other},
		{name: "at threshold self approval", gross: "500.00", approver: submitter, wantCode: shared.CodeAccessDenied},
		{name: "above threshold system", gross: "900.00", approver: shared.SystemActor, wantCode: shared.CodeApprovalRequired},
		{name: "above threshold system allowed", gross: "900.00", allowSystem: true, approver: shared.SystemActor},
		{name: "zero actor", gross: "10.00", approver: shared.Actor{}, wantCode: shared.CodeMissingRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := invoicing.NewThresholdApprovalPolicy(d("500"), tt.allowSystem)
			e := newExpense(t, tt.gross, submitter)
			require.NoError(t, e.Submit(submitter))

			err := e.Approve(tt.approver, policy)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, invoicing.ExpenseStatusApproved, e.Status)
				return
			}
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, invoicing.ExpenseStatusPending, e.Status)
		})
	}
}

func TestThresholdApprovalPolicy_IgnoresTenantIdentity(t *testing.T) {
	// A user whose ID happens to equal the tenant ID gets no special rights.
	tenantID := uuid.New()
	submitter := shared.NewUserActor(uuid.New())
	e, err := invoicing.NewExpense(tenantID, "EXP-1", "Vendor", invoicing.ExpenseCategoryRent, "", d("2000"), d("19"), true, time.Now(), submitter)
	require.NoError(t, err)
	require.NoError(t, e.Submit(submitter))

	policy := invoicing.NewThresholdApprovalPolicy(d("500"), false)
	require.NoError(t, e.Approve(shared.NewUserActor(tenantID), policy))
	assert.Equal(t, tenantID, *e.Approval.ApprovedBy)
}
