package main

import (
	"context"
	"fmt"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

type observability struct {
	log     *zap.Logger
	tracing *telemetry.TracerProvider
	meters  *telemetry.MeterProvider
}

// startTelemetry brings up the OTLP trace, metric and log pipelines and the
// profiler. The returned logger also feeds the log pipeline.
func startTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger, down *cleanup) (*observability, error) {
	tracing, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}
	down.add("traces", tracing.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		return nil, fmt.Errorf("meter provider: %w", err)
	}
	down.add("metrics", meters.Shutdown)

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		return nil, fmt.Errorf("logger provider: %w", err)
	}
	down.add("logs", logs.Shutdown)

	if level, err := logger.ParseLevel(cfg.Log.Level); err == nil {
		log = telemetry.Bridge(log, logs, cfg.Telemetry.ServiceName, level)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFrom(cfg.Telemetry), log)
	if err != nil {
		return nil, fmt.Errorf("profiler: %w", err)
	}
	down.add("profiler", func(context.Context) error { return profiler.Stop() })
	if profiler.IsEnabled() {
		if err := tracing.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}

	return &observability{log: log, tracing: tracing, meters: meters}, nil
}
