package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the default tracer name for business spans
	TracerName = "schoolsaas-backend"
)

// StartSpan starts a new span with the given name. The caller is responsible
// for calling span.End() when the operation completes.
//
//	ctx, span := telemetry.StartSpan(ctx, "subscription.renew")
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindInternal),
	}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartServiceSpan starts a span for a service method, named
// {service}.{method} (e.g., "subscription.renew").
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), attrs...)
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetTraceID returns the trace ID from the current span in the context.
// Returns empty string if no span is present.
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

// Common attribute keys for business spans.
const (
	SpanAttrTenantID      = "tenant_id"
	SpanAttrPlanName      = "plan_name"
	SpanAttrInvoiceNumber = "invoice_number"
	SpanAttrResourceKind  = "resource_kind"
	SpanAttrStudentCount  = "student_count"
)
