package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (SETTLE_DATABASE_HOST, ...)
const EnvPrefix = "SETTLE"

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Event      EventConfig      `mapstructure:"event"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // development, testing or production
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres or sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite file, ":memory:" allowed
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig points at the idempotency cache. An empty Host keeps the
// in-memory store.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	Issuer                string        `mapstructure:"issuer"`
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

// EventConfig drives the outbox relay
type EventConfig struct {
	ProcessorEnabled bool          `mapstructure:"processor_enabled"`
	BatchSize        int           `mapstructure:"batch_size"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxRetries       int           `mapstructure:"max_retries"`
	CleanupEnabled   bool          `mapstructure:"cleanup_enabled"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"` // empty allows no cross-origin calls
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"` // per company, 0 disables
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
}

// TelemetryConfig configures OpenTelemetry export and pyroscope profiling
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // statement text in spans, never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilingServer   string        `mapstructure:"profiling_server"`
}

type SettlementConfig struct {
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`     // row-lock wait per transaction
	DefaultCurrency string        `mapstructure:"default_currency"` // ISO 4217, used when a request has none
	IdempotencyTTL  time.Duration `mapstructure:"idempotency_ttl"`  // replay window of an Idempotency-Key
}

// defaults registers every key so that env overrides reach Unmarshal
var defaults = map[string]any{
	"app.name": "settlement",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             "postgres",
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "settlement",
	"database.sslmode":            "disable",
	"database.path":               "settlement.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":                  "",
	"jwt.issuer":                  "erp-backend",
	"jwt.access_token_expiration": 15 * time.Minute,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"event.processor_enabled": false,
	"event.batch_size":        100,
	"event.poll_interval":     5 * time.Second,
	"event.max_retries":       5,
	"event.cleanup_enabled":   false,
	"event.cleanup_retention": 7 * 24 * time.Hour,

	"http.read_timeout":       15 * time.Second,
	"http.write_timeout":      15 * time.Second,
	"http.idle_timeout":       time.Minute,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_size":      1 << 20,
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":    []string{},
	"http.rate_limit_rps":     0.0,
	"http.rate_limit_burst":   0,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "settlement",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_server":        "http://localhost:4040",

	"settlement.lock_timeout":     5 * time.Second,
	"settlement.default_currency": "TRY",
	"settlement.idempotency_ttl":  24 * time.Hour,
}

// Load reads config.toml from the working directory or /app, then applies
// SETTLE_* environment overrides. A missing file is fine.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. Empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/app")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Settlement.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Settlement.DefaultCurrency))
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = max(1, int(c.HTTP.RateLimitRPS*2))
	}
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.Driver == "postgres" || db.Driver == "sqlite", "database.driver must be postgres or sqlite, got %q", db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive, got %d", db.MaxOpenConns)
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns || db.MaxOpenConns <= 0,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	check(c.HTTP.RateLimitRPS >= 0, "http.rate_limit_rps cannot be negative")
	check(c.Event.BatchSize > 0, "event.batch_size must be positive")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %s", strconv.FormatFloat(c.Telemetry.SamplingRatio, 'f', -1, 64))

	s := c.Settlement
	check(s.LockTimeout > 0, "settlement.lock_timeout must be positive, got %s", s.LockTimeout)
	check(len(s.DefaultCurrency) == 3, "settlement.default_currency must be a 3-letter ISO code, got %q", s.DefaultCurrency)
	check(s.IdempotencyTTL >= 0, "settlement.idempotency_ttl cannot be negative")

	if c.IsProduction() {
		check(c.JWT.Secret != "", "jwt.secret is required in production")
		check(c.JWT.Secret == "" || len(c.JWT.Secret) >= 32, "jwt.secret must be at least 32 characters in production")
		check(db.Driver == "postgres", "database.driver must be postgres in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"), "http.cors_allow_origins cannot be '*' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}
	return errors.Join(errs...)
}

// IsProduction reports app.env == production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN renders a postgres URL with escaped credentials
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisEnabled reports whether a Redis host is configured
func (r *RedisConfig) RedisEnabled() bool {
	return r.Host != ""
}

// Addr returns host:port for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
