// Package middleware provides the HTTP middleware of the settlement API.
package middleware

import (
	"net/http"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig returns the otelgin middleware. Spans are named after
// the route pattern, e.g. "GET /api/v1/payments/:id".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector adds request_id, company_id and user_id to the
// server span. It must run after Tracing and the JWT middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := c.GetString(RequestIDKey); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if companyID := GetCompanyID(c); companyID != uuid.Nil {
		span.SetAttributes(telemetry.AttrCompanyID.String(companyID.String()))
	}
	if actorID := GetActorID(c); actorID != uuid.Nil {
		span.SetAttributes(telemetry.AttrUserID.String(actorID.String()))
	}
}

// SpanErrorMarker marks the server span as failed for 5xx responses and
// records the API error code for 4xx ones. Business rejections are not
// span errors.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(telemetry.AttrErrorCode.String(code))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// ErrorCodeKey is set by handlers to the API error code of the response
const ErrorCodeKey = "api_error_code"
