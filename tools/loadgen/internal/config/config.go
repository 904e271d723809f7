// Package config holds the load generator configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Operation names accepted in Mix.
const (
	OpCreateParty     = "create_party"
	OpCreateInvoice   = "create_invoice"
	OpPayAndAllocate  = "pay_and_allocate"
	OpPartyBalance    = "party_balance"
	OpListDocuments   = "list_documents"
	OpDueForecast     = "forecast"
	OpAccountBalance  = "account_balance"
	OpSuggestPayments = "suggest_payments"
)

// Operations lists every operation the runner knows.
var Operations = []string{
	OpCreateParty, OpCreateInvoice, OpPayAndAllocate, OpPartyBalance,
	OpListDocuments, OpDueForecast, OpAccountBalance, OpSuggestPayments,
}

// Config is the root configuration of the load generator.
type Config struct {
	// Name is a descriptive name for this run.
	Name string `yaml:"name"`

	// Target is the settlement service under test.
	Target TargetConfig `yaml:"target"`

	// Duration is the total duration of the mixed workload.
	// Default: 1m
	Duration time.Duration `yaml:"duration"`

	// Workers is the number of concurrent request loops.
	// Default: 8
	Workers int `yaml:"workers"`

	// RateLimit caps the request rate across all workers.
	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Mix maps operation names to relative weights.
	Mix map[string]int `yaml:"mix"`

	// Race configures the concurrent allocation scenario.
	Race RaceConfig `yaml:"race"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// Seed makes generated data reproducible. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`

	// Currency of generated documents and payments.
	// Default: "EUR"
	Currency string `yaml:"currency"`
}

// TargetConfig describes the service under test.
type TargetConfig struct {
	// BaseURL is the root of the service, e.g. "http://localhost:8080".
	BaseURL string `yaml:"baseURL"`

	// APIVersion is the API version prefix.
	// Default: "v1"
	APIVersion string `yaml:"apiVersion"`

	// Timeout is the per request timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Token is the bearer token sent with every request. It may also be
	// supplied through the LOADGEN_TOKEN environment variable.
	Token string `yaml:"token"`

	// BankAccountID is the account used for generated bank payments. A
	// random id is used when empty.
	BankAccountID string `yaml:"bankAccountID"`
}

// RateLimitConfig configures the token bucket shared by workers.
type RateLimitConfig struct {
	// RPS is the sustained request rate. Zero disables limiting.
	RPS float64 `yaml:"rps"`
	// Burst is the bucket size.
	// Default: 1
	Burst int `yaml:"burst"`
}

// RaceConfig configures the concurrent allocation scenario. Many payments
// are allocated against one invoice at once and the run verifies the invoice
// never ends up over-allocated.
type RaceConfig struct {
	Enabled bool `yaml:"enabled"`
	// Payments is the number of concurrent allocations.
	// Default: 16
	Payments int `yaml:"payments"`
	// InvoiceAmount is the total of the contested invoice.
	// Default: "1000"
	InvoiceAmount string `yaml:"invoiceAmount"`
	// PaymentAmount is the amount of each competing payment.
	// Default: "150"
	PaymentAmount string `yaml:"paymentAmount"`
	// Retries is how often a conflicting allocation is resubmitted.
	// Default: 5
	Retries int `yaml:"retries"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Port of the metrics endpoint. Zero disables the endpoint.
	Port int `yaml:"port"`
	// Path of the metrics endpoint.
	// Default: /metrics
	Path string `yaml:"path"`
}

// DefaultMix is used when the configuration has no mix.
func DefaultMix() map[string]int {
	return map[string]int{
		OpCreateParty:     1,
		OpCreateInvoice:   4,
		OpPayAndAllocate:  3,
		OpPartyBalance:    3,
		OpListDocuments:   3,
		OpDueForecast:     1,
		OpAccountBalance:  1,
		OpSuggestPayments: 1,
	}
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Target.APIVersion == "" {
		c.Target.APIVersion = "v1"
	}
	if c.Target.Timeout <= 0 {
		c.Target.Timeout = 10 * time.Second
	}
	if c.Target.Token == "" {
		c.Target.Token = os.Getenv("LOADGEN_TOKEN")
	}
	if c.Duration <= 0 {
		c.Duration = time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if len(c.Mix) == 0 {
		c.Mix = DefaultMix()
	}
	if c.Race.Payments <= 0 {
		c.Race.Payments = 16
	}
	if c.Race.InvoiceAmount == "" {
		c.Race.InvoiceAmount = "1000"
	}
	if c.Race.PaymentAmount == "" {
		c.Race.PaymentAmount = "150"
	}
	if c.Race.Retries <= 0 {
		c.Race.Retries = 5
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Currency == "" {
		c.Currency = "EUR"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Target.BaseURL == "" {
		errs = append(errs, errors.New("target.baseURL is required"))
	} else if u, err := url.Parse(c.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("target.baseURL %q is not an absolute URL", c.Target.BaseURL))
	}
	if c.Target.Token == "" {
		errs = append(errs, errors.New("target.token is required (or set LOADGEN_TOKEN)"))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rateLimit.rps must not be negative"))
	}
	known := make(map[string]bool, len(Operations))
	for _, op := range Operations {
		known[op] = true
	}
	total := 0
	for op, w := range c.Mix {
		if !known[op] {
			errs = append(errs, fmt.Errorf("mix: unknown operation %q", op))
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("mix: weight of %q must not be negative", op))
		}
		total += w
	}
	if total == 0 {
		errs = append(errs, errors.New("mix: at least one operation needs a positive weight"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// APIBase is the URL prefix of versioned API routes.
func (t TargetConfig) APIBase() string {
	return t.BaseURL + "/api/" + t.APIVersion
}
