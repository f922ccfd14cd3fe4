package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for service spans
const TracerName = "tilver-ledger"

// Span attribute keys for ledger operations
var (
	SpanAttrInvoiceID     = attribute.Key("ledger.invoice_id")
	SpanAttrInvoiceNumber = attribute.Key("ledger.invoice_number")
	SpanAttrTemplateID    = attribute.Key("ledger.template_id")
	SpanAttrTransactionID = attribute.Key("ledger.transaction_id")
	SpanAttrDocumentType  = attribute.Key("ledger.document_type")
	SpanAttrDocumentID    = attribute.Key("ledger.document_id")
	SpanAttrStatus        = attribute.Key("ledger.status")
	SpanAttrAmount        = attribute.Key("ledger.amount")
)

// StartServiceSpan starts an internal span named "<service>.<method>"
// tagged with the tenant.
func StartServiceSpan(ctx context.Context, service, method, tenantID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tenantID != "" {
		attrs = append(attrs, AttrTenantID.String(tenantID))
	}
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err on the span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the trace ID of the span in ctx, or "" without one
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
