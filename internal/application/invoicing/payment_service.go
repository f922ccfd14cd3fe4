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

// PaymentService records payments and drives their state machine
type PaymentService struct {
	paymentRepo    invoicing.PaymentRepository
	invoiceRepo    invoicing.InvoiceRepository
	expenseRepo    invoicing.ExpenseRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo invoicing.PaymentRepository,
	invoiceRepo invoicing.InvoiceRepository,
	expenseRepo invoicing.ExpenseRepository,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		expenseRepo: expenseRepo,
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *PaymentService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *PaymentService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Create records a PENDING payment. A payment references at most one
// document, which must belong to the same tenant.
func (s *PaymentService) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req CreatePaymentRequest) (*PaymentResponse, error) {
	if req.InvoiceID != nil && req.ExpenseID != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "A payment references either an invoice or an expense")
	}

	payment, err := invoicing.NewPayment(scope, invoicing.PaymentDirection(req.Direction), req.Amount,
		invoicing.PaymentMethod(req.Method), req.Reference, actor)
	if err != nil {
		return nil, err
	}

	switch {
	case req.InvoiceID != nil:
		inv, err := s.invoiceRepo.FindByID(ctx, *req.InvoiceID)
		if err != nil {
			return nil, err
		}
		if !inv.BelongsTo(scope) {
			return nil, shared.ErrAccessDenied
		}
		if err := payment.ForInvoice(inv.ID); err != nil {
			return nil, err
		}
	case req.ExpenseID != nil:
		expense, err := s.expenseRepo.FindByID(ctx, *req.ExpenseID)
		if err != nil {
			return nil, err
		}
		if !expense.BelongsTo(scope) {
			return nil, shared.ErrAccessDenied
		}
		if err := payment.ForExpense(expense.ID); err != nil {
			return nil, err
		}
	}

	if err := s.paymentRepo.Create(ctx, payment, actor); err != nil {
		return nil, err
	}

	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// Get returns a payment of scope
func (s *PaymentService) Get(ctx context.Context, scope, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// List returns a page of payments of scope
func (s *PaymentService) List(ctx context.Context, scope uuid.UUID, filter ListFilter) (*shared.Paginated[PaymentResponse], error) {
	page, err := s.paymentRepo.List(ctx, scope, filter.toFilter())
	if err != nil {
		return nil, err
	}
	out := mapPage(page, ToPaymentResponse)
	return &out, nil
}

// ApplyAction applies action to a payment. REFUND stores the refunded original
// and its reversing payment in one transaction. Processing an incoming invoice
// payment marks the invoice PAID once its completed payments cover it; a refund
// that uncovers a PAID invoice moves it to REFUNDED.
func (s *PaymentService) ApplyAction(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req PaymentActionRequest) (*PaymentActionResponse, error) {
	action := invoicing.PaymentAction(req.Action)
	if !action.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown payment action: "+req.Action)
	}

	payment, err := s.paymentRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	var refund *invoicing.Payment
	if action == invoicing.PaymentActionRefund {
		if refund, err = payment.Refund(actor); err != nil {
			return nil, err
		}
		err = s.paymentRepo.SaveWithRefund(ctx, payment, refund, actor)
	} else {
		if err = payment.Apply(action, actor); err != nil {
			return nil, err
		}
		err = s.paymentRepo.Save(ctx, payment)
	}
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, payment)
	if s.metrics != nil {
		s.metrics.RecordPaymentAction(ctx, scope, string(action))
	}

	if payment.InvoiceID != nil && (action == invoicing.PaymentActionProcess || action == invoicing.PaymentActionRefund) {
		if err := s.settleInvoice(ctx, scope, *payment.InvoiceID, actor); err != nil {
			s.logger.Warn("payment stored but invoice status not updated",
				zap.String("payment_id", payment.ID.String()),
				zap.String("invoice_id", payment.InvoiceID.String()),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
	}

	resp := &PaymentActionResponse{Payment: ToPaymentResponse(payment)}
	if refund != nil {
		r := ToPaymentResponse(refund)
		resp.Refund = &r
	}
	return resp, nil
}

// settleInvoice compares the invoice with its completed payments. An open
// invoice they cover becomes PAID; a PAID invoice they no longer cover
// becomes REFUNDED.
func (s *PaymentService) settleInvoice(ctx context.Context, scope, invoiceID uuid.UUID, actor shared.Actor) error {
	inv, err := s.invoiceRepo.GetByID(ctx, scope, invoiceID)
	if err != nil {
		return err
	}
	payments, err := s.paymentRepo.FindByDocument(ctx, scope, invoiceID)
	if err != nil {
		return err
	}
	collected := invoicing.CollectedAmount(payments)
	settled := inv.IsSettledBy(collected, lastProcessedAt(payments))

	var target invoicing.InvoiceStatus
	switch {
	case settled && inv.Status.CanTransitionTo(invoicing.InvoiceStatusPaid):
		target = invoicing.InvoiceStatusPaid
	case !settled && inv.Status == invoicing.InvoiceStatusPaid:
		target = invoicing.InvoiceStatusRefunded
	default:
		s.logger.Debug("invoice status unchanged by payment",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("status", string(inv.Status)),
			zap.String("collected", collected.StringFixed(2)),
			zap.String("gross", inv.GrossAmount.StringFixed(2)),
		)
		return nil
	}

	from := inv.Status
	if err := inv.TransitionTo(target, actor); err != nil {
		return err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, inv)
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, scope, "invoice", string(from), string(target))
	}
	return nil
}

// lastProcessedAt is when the latest collected payment was processed
func lastProcessedAt(payments []invoicing.Payment) time.Time {
	var last time.Time
	for i := range payments {
		p := &payments[i]
		if p.Direction != invoicing.PaymentDirectionIncoming || p.OriginalPaymentID != nil {
			continue
		}
		if p.ProcessedAt != nil && p.ProcessedAt.After(last) {
			last = *p.ProcessedAt
		}
	}
	if last.IsZero() {
		return time.Now()
	}
	return last
}
