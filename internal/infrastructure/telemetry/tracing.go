package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of settlement spans
const TracerName = "settlement"

// Span attribute keys
const (
	SpanAttrCompanyID    = "company_id"
	SpanAttrPartyID      = "party_id"
	SpanAttrDocumentID   = "document_id"
	SpanAttrDocumentType = "document_type"
	SpanAttrPaymentID    = "payment_id"
	SpanAttrChequeID     = "cheque_id"
	SpanAttrAllocationID = "allocation_id"
	SpanAttrAmount       = "amount"
	SpanAttrLines        = "lines"
	SpanAttrPeriod       = "period"
)

// StartSpan starts an internal span on the global provider unless opts say
// otherwise. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append([]trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}, opts...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, opts...)
}

// StartServiceSpan starts the span "service.method" carrying keyValues
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "confirm", telemetry.SpanAttrPaymentID, id)
func StartServiceSpan(ctx context.Context, service, method string, keyValues ...any) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, trace.WithAttributes(Attrs(keyValues...)...))
}

// Attrs turns alternating keys and values into attributes. Pairs whose key
// is not a string are dropped, as is a trailing key without a value.
func Attrs(keyValues ...any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 1; i < len(keyValues); i += 2 {
		if key, ok := keyValues[i-1].(string); ok {
			attrs = append(attrs, attr(key, keyValues[i]))
		}
	}
	return attrs
}

func attr(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case []string:
		return k.StringSlice(v)
	case fmt.Stringer:
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}

func SetAttributes(span trace.Span, keyValues ...any) {
	if span != nil {
		span.SetAttributes(Attrs(keyValues...)...)
	}
}

func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(Attrs(keyValues...)...))
	}
}

// SetStatus marks span Ok, or Error with err recorded as an exception event
func SetStatus(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
