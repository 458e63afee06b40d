package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(context.Background()))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NotNil(t, tp.Tracer("test"), "disabled provider still hands out tracers")
}

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "subscription.renew",
		attribute.String(SpanAttrTenantID, "t-1"))
	assert.NotEmpty(t, GetTraceID(ctx))
	RecordError(span, errors.New("plan not found"))
	span.End()

	_, child := StartServiceSpan(ctx, "limits", "check")
	child.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "subscription.renew", spans[0].Name)
	assert.Equal(t, "limits.check", spans[1].Name)
	require.Len(t, spans[0].Events, 1, "error recorded as span event")
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
