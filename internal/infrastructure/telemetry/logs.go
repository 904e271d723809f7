package telemetry

import (
	"context"
	"fmt"

	"github.com/erp/settlement/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig configures the log record pipeline fed by the zap bridge
type LogsConfig struct {
	Exporter
}

func LogsConfigFrom(cfg config.TelemetryConfig, version string) LogsConfig {
	return LogsConfig{Exporter: exporterFrom(cfg, version)}
}

// LoggerProvider owns the log record pipeline
type LoggerProvider struct {
	sdk *sdklog.LoggerProvider
	cfg LogsConfig
	log *zap.Logger
}

func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger) (*LoggerProvider, error) {
	if !cfg.Enabled {
		logger.Info("Log export disabled")
		return &LoggerProvider{cfg: cfg, log: logger}, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp log exporter: %w", err)
	}
	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	sdk := sdklog.NewLoggerProvider(sdklog.WithResource(res), sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)))
	global.SetLoggerProvider(sdk)
	logger.Info("Log export enabled", zap.String("collector_endpoint", cfg.Endpoint))
	return newLoggerProviderWith(sdk, cfg, logger), nil
}

func newLoggerProviderWith(sdk *sdklog.LoggerProvider, cfg LogsConfig, logger *zap.Logger) *LoggerProvider {
	return &LoggerProvider{sdk: sdk, cfg: cfg, log: logger}
}

func (lp *LoggerProvider) IsEnabled() bool { return lp.sdk != nil }

func (lp *LoggerProvider) GetConfig() LogsConfig { return lp.cfg }

func (lp *LoggerProvider) ForceFlush(ctx context.Context) error {
	if lp.sdk == nil {
		return nil
	}
	return lp.sdk.ForceFlush(ctx)
}

// Shutdown flushes buffered records. Calling it again is harmless.
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.sdk == nil {
		return nil
	}
	return closePipeline(ctx, lp.sdk, "logs", lp.log)
}

// NewZapOTELCore returns a core that ships entries at or above level as OTEL
// log records. It discards everything when lp is missing or disabled.
func NewZapOTELCore(serviceName string, lp *LoggerProvider, level zapcore.Level) zapcore.Core {
	if lp == nil || !lp.IsEnabled() {
		return zapcore.NewNopCore()
	}
	core := otelzap.NewCore(serviceName, otelzap.WithLoggerProvider(lp.sdk))
	if filtered, err := zapcore.NewIncreaseLevelCore(core, level); err == nil {
		return filtered
	}
	return core
}

// Bridge copies every entry of logger to the OTEL pipeline as well. The
// logger is returned as is when log export is off.
func Bridge(logger *zap.Logger, lp *LoggerProvider, serviceName string, level zapcore.Level) *zap.Logger {
	if lp == nil || !lp.IsEnabled() {
		return logger
	}
	otelCore := NewZapOTELCore(serviceName, lp, level)
	return logger.WithOptions(zap.WrapCore(func(base zapcore.Core) zapcore.Core {
		return zapcore.NewTee(base, otelCore)
	}))
}
