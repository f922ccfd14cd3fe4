package invoicing

import (
	"context"
	"fmt"

	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InvoiceArchiver stores a snapshot of a sent invoice and returns its key
type InvoiceArchiver interface {
	Archive(ctx context.Context, inv *invoicing.Invoice) (string, error)
}

// InvoiceSentArchiveHandler archives invoices when they move to SENT.
// Archive failures are logged and swallowed; the transition stands.
type InvoiceSentArchiveHandler struct {
	invoiceRepo invoicing.InvoiceRepository
	archiver    InvoiceArchiver
	logger      *zap.Logger
}

// NewInvoiceSentArchiveHandler creates the handler
func NewInvoiceSentArchiveHandler(invoiceRepo invoicing.InvoiceRepository, archiver InvoiceArchiver, logger *zap.Logger) *InvoiceSentArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceSentArchiveHandler{
		invoiceRepo: invoiceRepo,
		archiver:    archiver,
		logger:      logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *InvoiceSentArchiveHandler) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceStatusChanged}
}

// Handle archives the invoice named by a transition to SENT
func (h *InvoiceSentArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*invoicing.InvoiceStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			invoicing.EventTypeInvoiceStatusChanged, event.EventType())
	}
	if changed.To != invoicing.InvoiceStatusSent {
		return nil
	}

	log := h.logger.With(
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("invoice_id", event.AggregateID().String()),
	)

	inv, err := h.invoiceRepo.GetByID(ctx, event.TenantID(), event.AggregateID())
	if err != nil {
		log.Warn("invoice archive skipped: invoice not loadable", zap.Error(err))
		return nil
	}
	key, err := h.archiver.Archive(ctx, inv)
	if err != nil {
		log.Error("invoice archive failed", zap.Error(err))
		return nil
	}
	log.Info("invoice archived", zap.String("key", key))
	return nil
}

var _ shared.EventHandler = (*InvoiceSentArchiveHandler)(nil)
