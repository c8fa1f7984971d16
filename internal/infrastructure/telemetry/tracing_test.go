package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/erp/salesops/internal/infrastructure/telemetry"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartServiceSpan(t *testing.T) {
	recorder := installRecorder(t)
	quoteID := uuid.New()

	ctx, span := telemetry.StartServiceSpan(context.Background(), "quote", "create",
		telemetry.SpanAttrQuoteID, quoteID,
		telemetry.SpanAttrLineCount, 3,
		42, "skipped",
	)
	assert.NotEmpty(t, telemetry.TraceID(ctx))
	telemetry.AddEvent(span, "reserved", telemetry.SpanAttrQuantity, "2")
	telemetry.RecordError(span, errors.New("reserve line 2: boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "quote.create", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	require.Len(t, s.Events(), 2) // the custom event and the recorded exception

	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, quoteID.String(), attrs[telemetry.SpanAttrQuoteID])
	assert.Equal(t, "3", attrs[telemetry.SpanAttrLineCount])
	assert.Len(t, attrs, 2)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, "", telemetry.TraceID(context.Background()))
	telemetry.RecordError(nil, errors.New("ignored"))
	telemetry.SetAttributes(nil, "k", "v")
}

func TestProviders_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zap.InfoLevel))
	assert.NoError(t, lp.Shutdown(ctx))
}
