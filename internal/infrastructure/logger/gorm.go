package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger routes gorm statements and messages to zap under the "gorm" name
type GormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel

	slow          time.Duration
	keepNotFound  bool
	lockConflicts func(error) bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold logs statements slower than d at warn. Zero disables it.
func WithSlowThreshold(d time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slow = d }
}

// WithIgnoreRecordNotFoundError controls whether gorm.ErrRecordNotFound is
// dropped. Lookups miss routinely so it is dropped by default.
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.keepNotFound = !ignore }
}

// WithRetryableClassifier downgrades errors matched by fn to warn.
// Lock waits surface to clients as retryable conflicts, not faults.
func WithRetryableClassifier(fn func(error) bool) GormLoggerOption {
	return func(l *GormLogger) { l.lockConflicts = fn }
}

// NewGormLogger builds a gorm logger on top of zapLogger
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{log: zapLogger.Named("gorm"), level: level, slow: defaultSlowQuery}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode returns a copy at level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	l.printf(gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < min {
		return
	}
	l.log.Sugar().Logf(lvl, msg, data...)
}

// Trace logs one executed statement. Errors win over slowness, and plain
// statements only show at Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}
	ce := l.log.Check(lvl, msg)
	if ce == nil {
		return
	}

	stmt, rows := fc()
	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.String("sql", stmt), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetCompanyID(ctx); id != "" {
		fields = append(fields, zap.String("company_id", id))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func (l *GormLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case err != nil:
		if l.level < gormlogger.Error {
			return 0, "", false
		}
		if !l.keepNotFound && errors.Is(err, gormlogger.ErrRecordNotFound) {
			return 0, "", false
		}
		if l.lockConflicts != nil && l.lockConflicts(err) {
			return zapcore.WarnLevel, "SQL lock conflict", true
		}
		return zapcore.ErrorLevel, "SQL Error", true
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		return zapcore.WarnLevel, "SLOW SQL >= " + l.slow.String(), true
	case l.level >= gormlogger.Info:
		return zapcore.DebugLevel, "SQL Query", true
	}
	return 0, "", false
}

// MapGormLogLevel converts the configured log level to gorm's scale.
// Anything unknown becomes Warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	levels := map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"error":  gormlogger.Error,
		"warn":   gormlogger.Warn,
		"info":   gormlogger.Info,
		"debug":  gormlogger.Info,
	}
	if l, ok := levels[level]; ok {
		return l
	}
	return gormlogger.Warn
}
