package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	companyIDKey contextKey = "company_id"
	actorIDKey   contextKey = "actor_id"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID records the request id and returns the enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, requestIDKey, requestID)
}

// WithCompanyID records the ledger owner of the request
func WithCompanyID(ctx context.Context, logger *zap.Logger, companyID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, companyIDKey, companyID)
}

// WithActorID records the authenticated user acting on the ledger
func WithActorID(ctx context.Context, logger *zap.Logger, actorID string) (context.Context, *zap.Logger) {
	return enrich(ctx, logger, actorIDKey, actorID)
}

func enrich(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the request id in ctx, if any
func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// GetCompanyID returns the company id in ctx, if any
func GetCompanyID(ctx context.Context) string { return stringValue(ctx, companyIDKey) }

// GetActorID returns the actor id in ctx, if any
func GetActorID(ctx context.Context) string { return stringValue(ctx, actorIDKey) }

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceContext adds trace_id and span_id from the active span, if valid
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// ContextLogger logs with the trace and request fields of a context.
//
//	logger.L(ctx).Info("payment allocated", zap.String("payment_id", id))
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
	// stored is true when logger came from ctx and so already carries the
	// request fields added by WithRequestID and friends
	stored bool
}

// L returns a ContextLogger over the logger stored in ctx
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx), stored: true}
}

// WithLogger returns a ContextLogger over logger instead of the one in ctx
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: logger}
}

// enrichedLogger adds the trace ids, plus the request fields for a logger
// that did not come from ctx
func (cl *ContextLogger) enrichedLogger() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}
	l = WithTraceContext(cl.ctx, l)

	if !cl.stored {
		for _, key := range []contextKey{requestIDKey, companyIDKey, actorIDKey} {
			if v := stringValue(cl.ctx, key); v != "" {
				l = l.With(zap.String(string(key), v))
			}
		}
	}
	return l
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{ctx: cl.ctx, logger: base.With(fields...), stored: cl.stored}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Debug(msg, fields...)
}

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Info(msg, fields...)
}

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Warn(msg, fields...)
}

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Error(msg, fields...)
}

// Zap returns the enriched *zap.Logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enrichedLogger()
}
