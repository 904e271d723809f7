// Package telemetry wires OpenTelemetry metrics, traces, logs and continuous
// profiling for the settlement service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

const defaultExportInterval = time.Minute

// MetricsConfig configures the OTLP metric pipeline
type MetricsConfig struct {
	Exporter
	ExportInterval time.Duration
}

func MetricsConfigFrom(cfg config.TelemetryConfig, version string) MetricsConfig {
	return MetricsConfig{Exporter: exporterFrom(cfg, version)}
}

// MeterProvider owns the SDK provider. When metrics are disabled it holds
// nothing and Meter falls back to the global no-op provider.
type MeterProvider struct {
	sdk    *sdkmetric.MeterProvider
	cfg    MetricsConfig
	logger *zap.Logger
}

// NewMeterProvider builds the OTLP pipeline and installs it globally
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if !cfg.Enabled {
		logger.Info("Metrics export disabled")
		return &MeterProvider{cfg: cfg, logger: logger}, nil
	}
	cfg.ExportInterval = positive(cfg.ExportInterval, defaultExportInterval)

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))
	mp := &MeterProvider{
		sdk:    sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader)),
		cfg:    cfg,
		logger: logger,
	}
	otel.SetMeterProvider(mp.sdk)

	logger.Info("Metrics export enabled",
		zap.String("collector_endpoint", cfg.Endpoint),
		zap.Duration("export_interval", cfg.ExportInterval),
	)
	return mp, nil
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.sdk == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.sdk.Meter(name, opts...)
}

// IsEnabled reports whether metrics are exported
func (mp *MeterProvider) IsEnabled() bool {
	return mp.sdk != nil
}

// GetConfig returns the effective configuration
func (mp *MeterProvider) GetConfig() MetricsConfig {
	return mp.cfg
}

// ForceFlush exports buffered measurements
func (mp *MeterProvider) ForceFlush(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return mp.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the pipeline
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.sdk == nil {
		return nil
	}
	return closePipeline(ctx, mp.sdk, "metrics", mp.logger)
}

// Instruments creates instruments on one meter and keeps every creation
// error, so a constructor can declare all its instruments and check once:
//
//	in := NewInstruments(meter)
//	total := in.Counter("db_query_total", "Queries", "{query}")
//	if err := in.Err(); err != nil { ... }
type Instruments struct {
	meter metric.Meter
	errs  []error
}

// NewInstruments starts a builder on meter
func NewInstruments(meter metric.Meter) *Instruments {
	return &Instruments{meter: meter}
}

// Err returns the joined creation errors, nil when all instruments exist
func (in *Instruments) Err() error {
	return errors.Join(in.errs...)
}

func (in *Instruments) fail(kind, name string, err error) {
	in.errs = append(in.errs, fmt.Errorf("%s %s: %w", kind, name, err))
}

// Counter is a monotonically increasing int64
type Counter struct {
	c metric.Int64Counter
}

// Counter declares an int64 counter
func (in *Instruments) Counter(name, description, unit string) *Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("counter", name, err)
	}
	return &Counter{c: c}
}

// Add adds n
func (c *Counter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	c.c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// Inc adds one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram records a float64 distribution
type Histogram struct {
	h metric.Float64Histogram
}

// Histogram declares a float64 histogram. Without bounds the SDK defaults apply.
func (in *Instruments) Histogram(name, description, unit string, bounds ...float64) *Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := in.meter.Float64Histogram(name, opts...)
	if err != nil {
		in.fail("histogram", name, err)
	}
	return &Histogram{h: h}
}

// Record records v
func (h *Histogram) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	h.h.Record(ctx, v, metric.WithAttributes(attrs...))
}

// RecordDuration records d in seconds
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Gauge holds the last int64 value per attribute set
type Gauge struct {
	g metric.Int64Gauge
}

// Gauge declares an int64 gauge
func (in *Instruments) Gauge(name, description, unit string) *Gauge {
	g, err := in.meter.Int64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("gauge", name, err)
	}
	return &Gauge{g: g}
}

// Record sets the gauge
func (g *Gauge) Record(ctx context.Context, v int64, attrs ...attribute.KeyValue) {
	g.g.Record(ctx, v, metric.WithAttributes(attrs...))
}

// FloatGauge holds the last float64 value per attribute set
type FloatGauge struct {
	g metric.Float64Gauge
}

// FloatGauge declares a float64 gauge
func (in *Instruments) FloatGauge(name, description, unit string) *FloatGauge {
	g, err := in.meter.Float64Gauge(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		in.fail("float gauge", name, err)
	}
	return &FloatGauge{g: g}
}

// Record sets the gauge
func (g *FloatGauge) Record(ctx context.Context, v float64, attrs ...attribute.KeyValue) {
	g.g.Record(ctx, v, metric.WithAttributes(attrs...))
}

// Attribute keys shared by the instruments of this package
var (
	AttrCompanyID = attribute.Key("company_id")
	AttrUserID    = attribute.Key("user_id")

	AttrHTTPMethod     = attribute.Key("http.method")
	AttrHTTPStatusCode = attribute.Key("http.status_code")
	AttrHTTPRoute      = attribute.Key("http.route")

	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.pool.state")

	AttrOperation    = attribute.Key("operation")
	AttrOutcome      = attribute.Key("outcome")
	AttrDocumentType = attribute.Key("document_type")
	AttrDirection    = attribute.Key("direction")
	AttrCurrency     = attribute.Key("currency")
	AttrErrorCode    = attribute.Key("error_code")
)

// Bucket boundaries in seconds
var (
	HTTPDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	DBDurationBuckets    = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	SmallDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}
)
