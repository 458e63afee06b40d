package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "schoolsaas-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns the otelgin server-span middleware. Register
// SpanEnrichment after it so the span carries the request and tenant IDs.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnrichment decorates the active server span with the request ID and,
// for tenant-scoped routes, the tenant ID from the path. Responses with
// status 500 and above mark the span as errored.
func SpanEnrichment() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := c.GetString(RequestIDKey); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if tenantID := c.Param("tenantId"); tenantID != "" {
			span.SetAttributes(attribute.String("tenant_id", tenantID))
		}

		c.Next()

		if status := c.Writer.Status(); status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
