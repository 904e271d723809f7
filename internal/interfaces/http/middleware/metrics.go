package middleware

import (
	"time"

	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

var sizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requestTotal:    in.Counter("http_server_request_total", "HTTP requests served", "{request}"),
		requestDuration: in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets...),
		requestSize:     in.Histogram("http_server_request_size_bytes", "HTTP request body size", "By", sizeBuckets...),
		responseSize:    in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", sizeBuckets...),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("In-flight HTTP requests"), metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	m.activeRequests = active
	return m, nil
}

// HTTPMetrics collects request count, latency, body sizes and in-flight
// requests. The request counter carries status, company and API error
// code; the histograms only method and route.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"))
}

// HTTPMetricsWithMeter returns HTTP metrics middleware on an existing meter
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		base := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}

		requestAttrs := append(base[:len(base):len(base)], telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		if companyID := GetCompanyID(c); companyID != uuid.Nil {
			requestAttrs = append(requestAttrs, telemetry.AttrCompanyID.String(companyID.String()))
		}
		if code := c.GetString(ErrorCodeKey); code != "" {
			requestAttrs = append(requestAttrs, telemetry.AttrErrorCode.String(code))
		}
		metrics.requestTotal.Inc(ctx, requestAttrs...)
		metrics.requestDuration.RecordDuration(ctx, time.Since(start), base...)

		if size := c.Request.ContentLength; size > 0 {
			metrics.requestSize.Record(ctx, float64(size), base...)
		}
		if size := c.Writer.Size(); size > 0 {
			metrics.responseSize.Record(ctx, float64(size), base...)
		}
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
