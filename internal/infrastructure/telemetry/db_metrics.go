package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Operation labels for row-locking reads, kept apart from plain SELECTs so
// lock contention on documents and payments is visible
const (
	DBOperationLockForUpdate = "SELECT_FOR_UPDATE"
	DBOperationLockForShare  = "SELECT_FOR_SHARE"
)

const defaultSlowQueryThreshold = 200 * time.Millisecond

type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration
}

func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{Enabled: true, SlowQueryThreshold: defaultSlowQueryThreshold}
}

// DBMetrics counts statements through a gorm plugin and reports the
// connection pool through an observable gauge read at collection time
type DBMetrics struct {
	meter metric.Meter
	slow  time.Duration
	log   *zap.Logger

	queries  *Counter
	failures *Counter
	slowOnes *Counter
	latency  *Histogram

	mu   sync.Mutex
	pool metric.Registration
}

func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DBMetrics{meter: meter, slow: cfg.SlowQueryThreshold, log: logger}
	if m.slow <= 0 {
		m.slow = defaultSlowQueryThreshold
	}

	in := NewInstruments(meter)
	m.queries = in.Counter("db_query_total", "Database statements by operation", "{query}")
	m.failures = in.Counter("db_query_errors_total", "Failed database statements by operation", "{query}")
	m.slowOnes = in.Counter("db_slow_query_total", "Statements slower than the threshold", "{query}")
	m.latency = in.Histogram("db_query_duration_seconds", "Statement latency", "s", DBDurationBuckets...)
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ObservePool reports pool size and connection states of pool on every
// collection. A second call replaces the first pool.
func (m *DBMetrics) ObservePool(pool *sql.DB) error {
	size, err := m.meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Configured pool size"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	conns, err := m.meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}

	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := pool.Stats()
		o.ObserveInt64(size, int64(s.MaxOpenConnections))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(s.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		return nil
	}, size, conns)
	if err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.pool
	m.pool = reg
	m.mu.Unlock()
	if prev != nil {
		return prev.Unregister()
	}
	return nil
}

// Stop detaches the pool callback. Calling it again does nothing.
func (m *DBMetrics) Stop() {
	m.mu.Lock()
	reg := m.pool
	m.pool = nil
	m.mu.Unlock()
	if reg == nil {
		return
	}
	if err := reg.Unregister(); err != nil {
		m.log.Warn("Unregistering pool metrics", zap.Error(err))
	}
}

// RecordQuery records one statement. Record-not-found is a normal miss and
// does not count as a failure.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	op := AttrDBOperation.String(orDefault(strings.ToUpper(operation), "UNKNOWN"))
	tbl := AttrDBTable.String(orDefault(table, "unknown"))

	m.queries.Inc(ctx, op)
	m.latency.RecordDuration(ctx, duration, op)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.failures.Inc(ctx, op, tbl)
	}
	if duration > m.slow {
		m.slowOnes.Inc(ctx, op, tbl)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// DBMetricsPlugin feeds every gorm statement into DBMetrics
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

func NewDBMetricsPlugin(metrics *DBMetrics, _ *zap.Logger) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

func (p *DBMetricsPlugin) Name() string { return "db_metrics" }

func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	return registerAroundAll(db, "db_metrics", markQueryStart, func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		p.metrics.RecordQuery(ctx, detectOperationType(tx.Statement.SQL.String()), tx.Statement.Table, queryElapsed(tx), tx.Error)
	})
}

var (
	statementVerbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "SET"}
	lockClauses    = []struct{ clause, op string }{
		{" FOR UPDATE", DBOperationLockForUpdate},
		{" FOR NO KEY UPDATE", DBOperationLockForUpdate},
		{" FOR SHARE", DBOperationLockForShare},
		{" FOR KEY SHARE", DBOperationLockForShare},
	}
)

// detectOperationType labels a statement by its leading verb, splitting
// row-locking SELECTs out by their FOR clause
func detectOperationType(stmt string) string {
	stmt = strings.ToUpper(strings.TrimSpace(stmt))
	for _, verb := range statementVerbs {
		if !strings.HasPrefix(stmt, verb) {
			continue
		}
		if verb == "SELECT" {
			for _, l := range lockClauses {
				if strings.Contains(stmt, l.clause) {
					return l.op
				}
			}
		}
		return verb
	}
	return "OTHER"
}

// RegisterDBMetrics installs the statement plugin and the pool gauges on db.
// It returns nil when metrics are disabled or not exported.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("Database metrics disabled")
		return nil, nil
	}

	m, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := m.ObservePool(pool); err != nil {
		return nil, err
	}
	if err := db.Use(NewDBMetricsPlugin(m, logger)); err != nil {
		m.Stop()
		return nil, err
	}

	logger.Info("Database metrics registered", zap.Duration("slow_query_threshold", m.slow))
	return m, nil
}
