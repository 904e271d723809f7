package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Exporter says whether a signal is shipped over OTLP, to which collector,
// and under which service identity
type Exporter struct {
	Enabled        bool
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
}

func exporterFrom(cfg config.TelemetryConfig, version string) Exporter {
	return Exporter{
		Enabled:        cfg.Enabled,
		Endpoint:       cfg.CollectorEndpoint,
		Insecure:       cfg.Insecure,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
	}
}

func (e Exporter) resource() (*resource.Resource, error) {
	return newResource(e.ServiceName, e.ServiceVersion)
}

func newResource(name, version string) (*resource.Resource, error) {
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}

// pipeline is the lifecycle shared by the trace, metric and log SDK providers
type pipeline interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

// closePipeline flushes and stops p within shutdownTimeout
func closePipeline(ctx context.Context, p pipeline, signal string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		log.Error("Telemetry pipeline shutdown failed", zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("%s pipeline shutdown: %w", signal, err)
	}
	log.Debug("Telemetry pipeline stopped", zap.String("signal", signal))
	return nil
}
