package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erp/settlement/internal/infrastructure/config"
)

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

type Config struct {
	Level      string // debug, info, warn, error, fatal
	Format     string // json or console
	Output     string // stdout, stderr or a file path
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console", Output: "stdout"}
}

// ConfigFrom maps the log section of the app config. Production always
// writes JSON.
func ConfigFrom(cfg config.LogConfig, env string) *Config {
	c := &Config{Level: cfg.Level, Format: cfg.Format, Output: cfg.Output}
	if env == "production" {
		c.Format = "json"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	return c
}

// New builds the process logger. Bad levels and unopenable files fail.
func New(cfg *Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(createEncoder(cfg), out, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// ParseLevel accepts zap's level names plus "warning"; empty is info
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(name)
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil || level == zapcore.DPanicLevel || level == zapcore.PanicLevel {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func createEncoder(cfg *Config) zapcore.Encoder {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(layout)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if cfg.Format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func openOutput(path string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(path) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return zapcore.AddSync(f), nil
}

// Sync flushes the logger. Terminals and pipes reject fsync, which is not
// reported.
func Sync(logger *zap.Logger) error {
	err := logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
