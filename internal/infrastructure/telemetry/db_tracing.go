// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"errors"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bind variables; never in production
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string        // "postgresql" or "sqlite"
}

// DBTracingConfigFrom maps the telemetry and database sections of the application config
func DBTracingConfigFrom(tel config.TelemetryConfig, db config.DatabaseConfig) DBTracingConfig {
	system := "postgresql"
	if db.Driver == "sqlite" {
		system = "sqlite"
	}
	thresh := tel.DBSlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	return DBTracingConfig{
		Enabled:         tel.Enabled && tel.DBTraceEnabled,
		LogFullSQL:      tel.DBLogFullSQL,
		SlowQueryThresh: thresh,
		DBSystem:        system,
	}
}

// DBTracingPlugin wraps otelgorm with slow query and lock wait annotations.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// RegisterOtelGorm installs otelgorm and the annotation callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerAroundAll(db, "otel_annotate", markQueryStart, p.annotate); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// annotate adds row counts, lock mode, errors and slow query markers to the
// span active for the statement.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	switch op := detectOperationType(db.Statement.SQL.String()); op {
	case DBOperationLockForUpdate, DBOperationLockForShare:
		span.SetAttributes(attribute.String("db.lock_mode", op))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if elapsed := queryElapsed(db); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
