package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for tenant ID
	TenantIDKey contextKey = "tenant_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if
// not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds request ID to context and returns enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithTenantID adds tenant ID to context and returns enriched logger
func WithTenantID(ctx context.Context, logger *zap.Logger, tenantID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	enriched := logger.With(zap.String("tenant_id", tenantID))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetTenantID retrieves tenant ID from context
func GetTenantID(ctx context.Context) string {
	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok {
		return tenantID
	}
	return ""
}

// WithTraceContext adds trace_id and span_id to the logger from the context's
// span. If no valid span exists, returns the original logger unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return logger
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}

	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
