package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "settlement.allocate")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "settlement.allocate", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestStartSpan_WithOptions(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "cheque.deposit",
		trace.WithAttributes(telemetry.Attrs(telemetry.SpanAttrLines, 3)...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "3", attrMap(spans[0].Attributes())[telemetry.SpanAttrLines])
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "payment", "confirm", telemetry.SpanAttrPaymentID, "p-1")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, "payment.confirm", sr.Ended()[0].Name())
	assert.Equal(t, "p-1", attrMap(sr.Ended()[0].Attributes())[telemetry.SpanAttrPaymentID])
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	docID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "document.post")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, docID,
		telemetry.SpanAttrAmount, "150.00",
		42, "skipped because the key is not a string",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Len(t, attrs, 2)
	assert.Equal(t, docID.String(), attrs[telemetry.SpanAttrDocumentID])
	assert.Equal(t, "150.00", attrs[telemetry.SpanAttrAmount])
}

func TestSetStatus_Error(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "allocation.create")
	telemetry.SetStatus(span, errors.New("insufficient payment balance"))
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "insufficient payment balance", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
	assert.Equal(t, "exception", ended.Events()[0].Name)
}

func TestSetStatus_Ok(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "period.lock")
	telemetry.SetStatus(span, nil)
	telemetry.SetStatus(nil, errors.New("ignored"))
	span.End()

	assert.Equal(t, codes.Ok, sr.Ended()[0].Status().Code)
	assert.Empty(t, sr.Ended()[0].Events())
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "allocation.create")
	telemetry.AddEvent(span, "document_settled", telemetry.SpanAttrDocumentID, "d-1")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "document_settled", events[0].Name)
	assert.Equal(t, "d-1", attrMap(events[0].Attributes)[telemetry.SpanAttrDocumentID])
}
