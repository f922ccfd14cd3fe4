package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// PaymentDirection tells whether money comes in or goes out
type PaymentDirection string

const (
	PaymentDirectionIncoming PaymentDirection = "INCOMING"
	PaymentDirectionOutgoing PaymentDirection = "OUTGOING"
)

// IsValid checks the direction
func (d PaymentDirection) IsValid() bool {
	return d == PaymentDirectionIncoming || d == PaymentDirectionOutgoing
}

// Opposite returns the reverse direction, used for refunds
func (d PaymentDirection) Opposite() PaymentDirection {
	if d == PaymentDirectionIncoming {
		return PaymentDirectionOutgoing
	}
	return PaymentDirectionIncoming
}

// PaymentStatus is the state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusApproved  PaymentStatus = "APPROVED"
	PaymentStatusRejected  PaymentStatus = "REJECTED"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// PaymentAction drives the payment state machine
type PaymentAction string

const (
	PaymentActionApprove PaymentAction = "APPROVE"
	PaymentActionReject  PaymentAction = "REJECT"
	PaymentActionProcess PaymentAction = "PROCESS"
	PaymentActionCancel  PaymentAction = "CANCEL"
	PaymentActionRefund  PaymentAction = "REFUND"
)

type paymentRule struct {
	from []PaymentStatus
	to   PaymentStatus
}

var paymentRules = map[PaymentAction]paymentRule{
	PaymentActionApprove: {from: []PaymentStatus{PaymentStatusPending}, to: PaymentStatusApproved},
	PaymentActionReject:  {from: []PaymentStatus{PaymentStatusPending}, to: PaymentStatusRejected},
	PaymentActionProcess: {from: []PaymentStatus{PaymentStatusApproved}, to: PaymentStatusCompleted},
	PaymentActionCancel:  {from: []PaymentStatus{PaymentStatusPending, PaymentStatusApproved}, to: PaymentStatusCancelled},
	PaymentActionRefund:  {from: []PaymentStatus{PaymentStatusCompleted}, to: PaymentStatusRefunded},
}

// IsValid checks the action is known
func (a PaymentAction) IsValid() bool {
	_, ok := paymentRules[a]
	return ok
}

// NextPaymentStatus returns the status action leads to from current, or
// INVALID_TRANSITION when current does not meet the action's precondition.
func NextPaymentStatus(current PaymentStatus, action PaymentAction) (PaymentStatus, error) {
	rule, ok := paymentRules[action]
	if !ok {
		return "", shared.NewDomainError(shared.CodeInvalidInput, "Unknown payment action: "+string(action))
	}
	for _, s := range rule.from {
		if s == current {
			return rule.to, nil
		}
	}
	return "", shared.NewInvalidTransitionError(string(current), string(rule.to))
}

// PaymentReconciliation tracks whether a payment was matched to the bank statement
type PaymentReconciliation struct {
	Reconciled        bool             `json:"reconciled"`
	ReconciledAt      *time.Time       `json:"reconciled_at,omitempty"`
	DiscrepancyAmount *decimal.Decimal `json:"discrepancy_amount,omitempty"`
}

// Payment is money moving for an invoice or expense
type Payment struct {
	shared.TenantAggregateRoot
	Direction         PaymentDirection
	Amount            decimal.Decimal
	Currency          valueobject.Currency
	Status            PaymentStatus
	Method            PaymentMethod
	Reference         string
	InvoiceID         *uuid.UUID
	ExpenseID         *uuid.UUID
	OriginalPaymentID *uuid.UUID
	ProcessedAt       *time.Time
	Reconciliation    PaymentReconciliation
}

// NewPayment creates a PENDING payment
func NewPayment(
	tenantID uuid.UUID,
	direction PaymentDirection,
	amount decimal.Decimal,
	method PaymentMethod,
	reference string,
	actor shared.Actor,
) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if !direction.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment direction is not valid")
	}
	if !amount.IsPositive() {
		return nil, shared.NewInvalidAmountError("Payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Payment method is not valid")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, actor),
		Direction:           direction,
		Amount:              valueobject.RoundCents(amount),
		Currency:            valueobject.DefaultCurrency,
		Status:              PaymentStatusPending,
		Method:              method,
		Reference:           reference,
	}, nil
}

// ForInvoice attaches the payment to an invoice; incoming only
func (p *Payment) ForInvoice(invoiceID uuid.UUID) error {
	if p.Direction != PaymentDirectionIncoming {
		return shared.NewDomainError(shared.CodeInvalidInput, "Invoice payments must be incoming")
	}
	p.InvoiceID = &invoiceID
	return nil
}

// ForExpense attaches the payment to an expense; outgoing only
func (p *Payment) ForExpense(expenseID uuid.UUID) error {
	if p.Direction != PaymentDirectionOutgoing {
		return shared.NewDomainError(shared.CodeInvalidInput, "Expense payments must be outgoing")
	}
	p.ExpenseID = &expenseID
	return nil
}

// Apply runs action against the state machine
func (p *Payment) Apply(action PaymentAction, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	next, err := NextPaymentStatus(p.Status, action)
	if err != nil {
		return err
	}
	from := p.Status
	p.Status = next
	if next == PaymentStatusCompleted {
		now := time.Now()
		p.ProcessedAt = &now
	}
	p.Touch(actor)
	p.AddDomainEvent(NewPaymentStatusChangedEvent(p, action, from, next, actor))
	return nil
}

// Refund marks a completed payment REFUNDED and returns the reversing payment,
// already COMPLETED and pointing back at the original.
func (p *Payment) Refund(actor shared.Actor) (*Payment, error) {
	if err := p.Apply(PaymentActionRefund, actor); err != nil {
		return nil, err
	}
	refund, err := NewPayment(p.TenantID, p.Direction.Opposite(), p.Amount, p.Method, "Refund "+p.Reference, actor)
	if err != nil {
		return nil, err
	}
	originalID := p.ID
	refund.OriginalPaymentID = &originalID
	refund.InvoiceID = p.InvoiceID
	refund.ExpenseID = p.ExpenseID
	refund.Status = PaymentStatusCompleted
	now := time.Now()
	refund.ProcessedAt = &now
	return refund, nil
}

// MarkReconciled records a bank match and the amount difference, if any
func (p *Payment) MarkReconciled(discrepancy decimal.Decimal, at time.Time, actor shared.Actor) {
	p.Reconciliation.Reconciled = true
	p.Reconciliation.ReconciledAt = &at
	if !discrepancy.IsZero() {
		d := valueobject.RoundCents(discrepancy)
		p.Reconciliation.DiscrepancyAmount = &d
	} else {
		p.Reconciliation.DiscrepancyAmount = nil
	}
	p.Touch(actor)
}

// SignedAmount is positive for incoming and negative for outgoing payments
func (p *Payment) SignedAmount() decimal.Decimal {
	if p.Direction == PaymentDirectionOutgoing {
		return p.Amount.Neg()
	}
	return p.Amount
}

// CollectedAmount sums completed incoming payments. Refunded originals and
// reversing payments do not count.
func CollectedAmount(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for i := range payments {
		p := &payments[i]
		if p.Status == PaymentStatusCompleted && p.Direction == PaymentDirectionIncoming && p.OriginalPaymentID == nil {
			total = total.Add(p.Amount)
		}
	}
	return total
}
