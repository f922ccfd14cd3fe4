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

func newPayment(t *testing.T, dir invoicing.PaymentDirection) *invoicing.Payment {
	t.Helper()
	p, err := invoicing.NewPayment(uuid.New(), dir, d("151.10"), invoicing.PaymentMethodBankTransfer, "RE-2024-1", shared.NewUserActor(uuid.New()))
	require.NoError(t, err)
	return p
}

func TestNextPaymentStatus(t *testing.T) {
	tests := []struct {
		from    invoicing.PaymentStatus
		action  invoicing.PaymentAction
		want    invoicing.PaymentStatus
		wantErr string
	}{
		{invoicing.PaymentStatusPending, invoicing.PaymentActionApprove, invoicing.PaymentStatusApproved, ""},
		{invoicing.PaymentStatusPending, invoicing.PaymentActionReject, invoicing.PaymentStatusRejected, ""},
		{invoicing.PaymentStatusApproved, invoicing.PaymentActionProcess, invoicing.PaymentStatusCompleted, ""},
		{invoicing.PaymentStatusPending, invoicing.PaymentActionCancel, invoicing.PaymentStatusCancelled, ""},
		{invoicing.PaymentStatusApproved, invoicing.PaymentActionCancel, invoicing.PaymentStatusCancelled, ""},
		{invoicing.PaymentStatusCompleted, invoicing.PaymentActionRefund, invoicing.PaymentStatusRefunded, ""},
		{invoicing.PaymentStatusPending, invoicing.PaymentActionProcess, "", shared.CodeInvalidTransition},
		{invoicing.PaymentStatusApproved, invoicing.PaymentActionReject, "", shared.CodeInvalidTransition},
		{invoicing.PaymentStatusCompleted, invoicing.PaymentActionCancel, "", shared.CodeInvalidTransition},
		{invoicing.PaymentStatusRejected, invoicing.PaymentActionApprove, "", shared.CodeInvalidTransition},
		{invoicing.PaymentStatusRefunded, invoicing.PaymentActionRefund, "", shared.CodeInvalidTransition},
		{invoicing.PaymentStatusPending, invoicing.PaymentAction("CHARGEBACK"), "", shared.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := invoicing.NextPaymentStatus(tt.from, tt.action)
			if tt.wantErr != "" {
				var de *shared.DomainError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, tt.wantErr, de.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPayment_Validation(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())

	_, err := invoicing.NewPayment(uuid.New(), invoicing.PaymentDirectionIncoming, d("0"), invoicing.PaymentMethodCash, "", actor)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidAmount, de.Code)

	_, err = invoicing.NewPayment(uuid.New(), "SIDEWAYS", d("1"), invoicing.PaymentMethodCash, "", actor)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	p, err := invoicing.NewPayment(uuid.New(), invoicing.PaymentDirectionIncoming, d("10.005"), invoicing.PaymentMethodCash, "", actor)
	require.NoError(t, err)
	assertDecimal(t, "10.01", p.Amount)
}

func TestPayment_DocumentDirection(t *testing.T) {
	in := newPayment(t, invoicing.PaymentDirectionIncoming)
	require.NoError(t, in.ForInvoice(uuid.New()))
	assert.Error(t, in.ForExpense(uuid.New()))

	out := newPayment(t, invoicing.PaymentDirectionOutgoing)
	require.NoError(t, out.ForExpense(uuid.New()))
	assert.Error(t, out.ForInvoice(uuid.New()))
	assertDecimal(t, "-151.10", out.SignedAmount())
}

func TestPayment_Lifecycle(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	p := newPayment(t, invoicing.PaymentDirectionIncoming)
	invoiceID := uuid.New()
	require.NoError(t, p.ForInvoice(invoiceID))

	require.NoError(t, p.Apply(invoicing.PaymentActionApprove, actor))
	require.NoError(t, p.Apply(invoicing.PaymentActionProcess, actor))
	assert.Equal(t, invoicing.PaymentStatusCompleted, p.Status)
	assert.NotNil(t, p.ProcessedAt)

	err := p.Apply(invoicing.PaymentActionCancel, actor)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	assert.Equal(t, invoicing.PaymentStatusCompleted, p.Status)

	refund, err := p.Refund(actor)
	require.NoError(t, err)
	assert.Equal(t, invoicing.PaymentStatusRefunded, p.Status)
	assert.Equal(t, invoicing.PaymentStatusCompleted, refund.Status)
	assert.Equal(t, invoicing.PaymentDirectionOutgoing, refund.Direction)
	assertDecimal(t, "151.10", refund.Amount)
	require.NotNil(t, refund.OriginalPaymentID)
	assert.Equal(t, p.ID, *refund.OriginalPaymentID)
	assert.Equal(t, invoiceID, *refund.InvoiceID)

	_, err = p.Refund(actor)
	assert.Error(t, err)
}

func TestPayment_MarkReconciled(t *testing.T) {
	p := newPayment(t, invoicing.PaymentDirectionIncoming)
	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	p.MarkReconciled(d("-4.004"), at, shared.SystemActor)
	assert.True(t, p.Reconciliation.Reconciled)
	require.NotNil(t, p.Reconciliation.DiscrepancyAmount)
	assertDecimal(t, "-4.00", *p.Reconciliation.DiscrepancyAmount)

	p.MarkReconciled(d("0"), at, shared.SystemActor)
	assert.Nil(t, p.Reconciliation.DiscrepancyAmount)
}
