package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/settlement/tools/loadgen/internal/client"
	"github.com/erp/settlement/tools/loadgen/internal/config"
	"github.com/erp/settlement/tools/loadgen/internal/generator"
	"github.com/erp/settlement/tools/loadgen/internal/metrics"
	"github.com/erp/settlement/tools/loadgen/internal/runner"
	"github.com/google/uuid"
)

var version = "dev"

type options struct {
	configPath  string
	duration    time.Duration
	workers     int
	rps         float64
	race        bool
	raceOnly    bool
	validate    bool
	metricsPort int
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("loadgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to the YAML configuration file")
	fs.StringVar(&o.configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	fs.DurationVar(&o.duration, "duration", 0, "Override run duration (e.g. 30s, 5m)")
	fs.IntVar(&o.workers, "workers", 0, "Override number of workers")
	fs.Float64Var(&o.rps, "rps", 0, "Override request rate")
	fs.BoolVar(&o.race, "race", false, "Run the concurrent allocation scenario after the mix")
	fs.BoolVar(&o.raceOnly, "race-only", false, "Run only the concurrent allocation scenario")
	fs.BoolVar(&o.validate, "validate", false, "Validate configuration and exit")
	fs.IntVar(&o.metricsPort, "metrics-port", 0, "Expose Prometheus metrics on this port")
	fs.BoolVar(&o.showVersion, "version", false, "Show version information")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.configPath == "" && !o.showVersion {
		return o, errors.New("-config is required")
	}
	return o, nil
}

func (o options) apply(cfg *config.Config) {
	if o.duration > 0 {
		cfg.Duration = o.duration
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.rps > 0 {
		cfg.RateLimit.RPS = o.rps
	}
	if o.race || o.raceOnly {
		cfg.Race.Enabled = true
	}
	if o.metricsPort > 0 {
		cfg.Metrics.Port = o.metricsPort
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "loadgen: %v\n", err)
		return 2
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "loadgen %s\n", version)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "loadgen: %v\n", err)
		return 1
	}
	opts.apply(cfg)
	if opts.validate {
		fmt.Fprintf(stdout, "configuration %q is valid\n", cfg.Name)
		return 0
	}

	genOpts := []generator.Option{}
	if cfg.Target.BankAccountID != "" {
		id, err := uuid.Parse(cfg.Target.BankAccountID)
		if err != nil {
			fmt.Fprintf(stderr, "loadgen: target.bankAccountID: %v\n", err)
			return 1
		}
		genOpts = append(genOpts, generator.WithBankAccount(id))
	}
	gen := generator.New(cfg.Seed, cfg.Currency, genOpts...)
	rec := metrics.NewRecorder()
	r := runner.New(cfg, client.New(cfg.Target), gen, rec)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Port > 0 {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		go func() {
			if err := rec.Serve(ctx, addr, cfg.Metrics.Path); err != nil {
				fmt.Fprintf(stderr, "loadgen: metrics endpoint: %v\n", err)
			}
		}()
		fmt.Fprintf(stdout, "metrics on %s%s\n", addr, cfg.Metrics.Path)
	}

	fmt.Fprintf(stdout, "running %q against %s for %s with %d workers\n",
		cfg.Name, cfg.Target.BaseURL, cfg.Duration, cfg.Workers)
	start := time.Now()
	if opts.raceOnly {
		err = r.Race(ctx)
	} else {
		err = r.Run(ctx)
	}
	fmt.Fprintf(stdout, "\nfinished in %s\n%s", time.Since(start).Round(time.Millisecond), rec.Summary())
	if err != nil {
		fmt.Fprintf(stderr, "loadgen: %v\n", err)
		return 1
	}
	return 0
}
