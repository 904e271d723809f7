package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Exporter:       telemetry.Exporter{Endpoint: "localhost:14317", ServiceName: "settlement"},
		ExportInterval: 60 * time.Second,
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, cfg, mp.GetConfig())
	assert.NotNil(t, mp.Meter("settlement"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMetricsConfigFrom(t *testing.T) {
	cfg := telemetry.MetricsConfigFrom(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		ServiceName:       "settlement",
		Insecure:          true,
	}, "0.3.0")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel:4317", cfg.Endpoint)
	assert.Equal(t, "0.3.0", cfg.ServiceVersion)
	assert.True(t, cfg.Insecure)
}

func TestCounterAndHistogram(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())
	meter := provider.Meter("test")
	ctx := context.Background()

	in := telemetry.NewInstruments(meter)
	counter := in.Counter("allocations_total", "Allocations", "{allocations}")
	hist := in.Histogram("allocate_seconds", "Allocation latency", "s", telemetry.DBDurationBuckets...)
	require.NoError(t, in.Err())

	counter.Add(ctx, 2, telemetry.AttrCurrency.String("TRY"))
	counter.Inc(ctx, telemetry.AttrCurrency.String("TRY"))

	hist.RecordDuration(ctx, 20*time.Millisecond)

	metrics := collect(t, reader)

	sum := metrics["allocations_total"].Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	h := metrics["allocate_seconds"].Data.(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, telemetry.DBDurationBuckets, h.DataPoints[0].Bounds)
	assert.InDelta(t, 0.02, h.DataPoints[0].Sum, 1e-9)
}

func TestGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())
	meter := provider.Meter("test")
	ctx := context.Background()

	in := telemetry.NewInstruments(meter)
	g := in.Gauge("open_documents", "Open documents", "{documents}")
	fg := in.FloatGauge("open_balance", "Open balance", "{currency}")
	require.NoError(t, in.Err())

	g.Record(ctx, 5)
	g.Record(ctx, 3)
	fg.Record(ctx, 125.5)

	metrics := collect(t, reader)
	assert.Equal(t, int64(3), metrics["open_documents"].Data.(metricdata.Gauge[int64]).DataPoints[0].Value)
	assert.Equal(t, 125.5, metrics["open_balance"].Data.(metricdata.Gauge[float64]).DataPoints[0].Value)
}

func TestCommonAttributes(t *testing.T) {
	assert.Equal(t, "company_id", string(telemetry.AttrCompanyID))
	assert.Equal(t, "user_id", string(telemetry.AttrUserID))
	assert.Equal(t, "http.route", string(telemetry.AttrHTTPRoute))
	assert.Equal(t, "db.operation", string(telemetry.AttrDBOperation))
	assert.Equal(t, "operation", string(telemetry.AttrOperation))
	assert.Equal(t, "outcome", string(telemetry.AttrOutcome))
	assert.Equal(t, "direction", string(telemetry.AttrDirection))
	assert.Equal(t, "currency", string(telemetry.AttrCurrency))
	assert.Equal(t, "error_code", string(telemetry.AttrErrorCode))
}

func TestDefaultBuckets(t *testing.T) {
	assert.Equal(t, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, telemetry.HTTPDurationBuckets)
	assert.Equal(t, []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}, telemetry.DBDurationBuckets)
	assert.Equal(t, []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}, telemetry.SmallDurationBuckets)
}
