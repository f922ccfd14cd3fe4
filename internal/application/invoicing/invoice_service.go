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

// InvoiceService provides application-level invoice operations
type InvoiceService struct {
	invoiceRepo    invoicing.InvoiceRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoiceRepo invoicing.InvoiceRepository) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *InvoiceService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *InvoiceService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Create drafts a new invoice with a generated number
func (s *InvoiceService) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	items, err := toLineItems(req.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, scope, req.IssueDate)
	if err != nil {
		return nil, err
	}

	inv, err := invoicing.NewInvoice(scope, number, req.CustomerName, req.IssueDate, items, req.PaymentTerms.toDomain(), actor)
	if err != nil {
		return nil, err
	}
	inv.CustomerEmail = req.CustomerEmail
	inv.Notes = req.Notes

	if err := s.invoiceRepo.Create(ctx, inv, actor); err != nil {
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, inv)
	if s.metrics != nil {
		s.metrics.RecordInvoiceCreated(ctx, scope, inv.GrossAmount)
	}

	s.logger.Info("invoice created",
		zap.String("tenant_id", scope.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Stringer("gross", inv.GrossMoney()),
	)

	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// Get returns an invoice of scope
func (s *InvoiceService) Get(ctx context.Context, scope, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// List returns a page of invoices of scope
func (s *InvoiceService) List(ctx context.Context, scope uuid.UUID, filter ListFilter) (*shared.Paginated[InvoiceResponse], error) {
	page, err := s.invoiceRepo.List(ctx, scope, filter.toFilter())
	if err != nil {
		return nil, err
	}
	out := mapPage(page, ToInvoiceResponse)
	return &out, nil
}

// Update applies a partial update; finalized invoices accept notes only
func (s *InvoiceService) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	patch, err := req.toPatch()
	if err != nil {
		return nil, err
	}
	inv, err := s.invoiceRepo.Update(ctx, scope, id, patch, actor)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// Transition moves an invoice to the requested status
func (s *InvoiceService) Transition(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req TransitionInvoiceRequest) (_ *InvoiceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "transition", scope.String(),
		telemetry.SpanAttrInvoiceID.String(id.String()),
		telemetry.SpanAttrStatus.String(req.Status),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	target := invoicing.InvoiceStatus(req.Status)
	if !target.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown invoice status: "+req.Status)
	}

	inv, err := s.invoiceRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, inv, target, actor); err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

func (s *InvoiceService) transition(ctx context.Context, inv *invoicing.Invoice, target invoicing.InvoiceStatus, actor shared.Actor) error {
	from := inv.Status
	if err := inv.TransitionTo(target, actor); err != nil {
		return err
	}
	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		return err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, inv)
	if s.metrics != nil {
		s.metrics.RecordTransition(ctx, inv.TenantID, "invoice", string(from), string(target))
	}
	s.logger.Info("invoice status changed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", actor.String()),
	)
	return nil
}

// MarkOverdue moves SENT or VIEWED invoices of scope past their due date to
// OVERDUE as the system actor. Failures on single invoices are collected,
// not returned.
func (s *InvoiceService) MarkOverdue(ctx context.Context, scope uuid.UUID, asOf time.Time) (*OverdueSweepResult, error) {
	candidates, err := s.invoiceRepo.FindOverdueCandidates(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}

	result := &OverdueSweepResult{
		TenantID:  scope,
		AsOf:      asOf,
		MarkedIDs: []uuid.UUID{},
	}
	for i := range candidates {
		inv := &candidates[i]
		if !inv.IsOverdue(asOf) {
			continue
		}
		result.Checked++
		if err := s.transition(ctx, inv, invoicing.InvoiceStatusOverdue, shared.SystemActor); err != nil {
			s.logger.Warn("failed to mark invoice overdue",
				zap.String("invoice_id", inv.ID.String()),
				zap.Error(err),
			)
			result.FailedIDs = append(result.FailedIDs, inv.ID)
			continue
		}
		result.MarkedIDs = append(result.MarkedIDs, inv.ID)
	}
	return result, nil
}
