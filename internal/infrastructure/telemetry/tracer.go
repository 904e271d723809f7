package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/erp/settlement/internal/infrastructure/config"
	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config configures the span pipeline
type Config struct {
	Exporter
	SamplingRatio float64
}

func ConfigFrom(cfg config.TelemetryConfig, version string) Config {
	return Config{Exporter: exporterFrom(cfg, version), SamplingRatio: cfg.SamplingRatio}
}

// TracerProvider owns the span pipeline. Disabled, it holds no SDK provider
// and Tracer hands out tracers of the global no-op provider.
type TracerProvider struct {
	sdk          *sdktrace.TracerProvider
	cfg          Config
	log          *zap.Logger
	spanProfiles atomic.Bool
}

func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{cfg: cfg, log: logger}
	if !cfg.Enabled {
		logger.Info("Tracing disabled")
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	tp.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logger.Info("Tracing enabled",
		zap.String("collector_endpoint", cfg.Endpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return tp, nil
}

// samplerFor keeps every span at ratio 1, none at 0, and otherwise follows
// the parent's decision with ratio sampling at the root
func samplerFor(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// EnableSpanProfiles tags CPU samples with the active span id so profiles can
// be opened from a slow settlement trace. Call it once the profiler runs.
func (tp *TracerProvider) EnableSpanProfiles() error {
	if tp.sdk == nil || !tp.spanProfiles.CompareAndSwap(false, true) {
		return nil
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.sdk))
	tp.log.Info("Span profiles enabled")
	return nil
}

func (tp *TracerProvider) IsSpanProfilesEnabled() bool { return tp.spanProfiles.Load() }

func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.sdk == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.sdk.Tracer(name, opts...)
}

func (tp *TracerProvider) IsEnabled() bool { return tp.sdk != nil }

func (tp *TracerProvider) GetConfig() Config { return tp.cfg }

func (tp *TracerProvider) ForceFlush(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return tp.sdk.ForceFlush(ctx)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return closePipeline(ctx, tp.sdk, "traces", tp.log)
}
