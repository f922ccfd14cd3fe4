package event

import (
	"context"

	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per domain event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates the handler
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes is empty, the handler receives every event
func (h *AuditLogHandler) EventTypes() []string { return nil }

// Handle logs the event envelope plus the status change when there is one
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	switch e := event.(type) {
	case *invoicing.InvoiceStatusChangedEvent:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)), zap.String("actor", e.Actor))
	case *invoicing.ExpenseStatusChangedEvent:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)), zap.String("actor", e.Actor))
	case *invoicing.PaymentStatusChangedEvent:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)), zap.String("actor", e.Actor))
	}
	h.logger.Info("domain event", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
