// Command server runs the settlement HTTP API and, when enabled, the outbox
// relay in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// version is stamped with -ldflags "-X main.version=..."
var version = "dev"

const drainTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "settlement: load config:", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.ConfigFrom(cfg.Log, cfg.App.Env))
	if err != nil {
		fmt.Fprintln(os.Stderr, "settlement: init logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("Settlement service stopped with error", zap.Error(err))
	}
	_ = logger.Sync(log)
	if err != nil {
		os.Exit(1)
	}
}

// cleanup runs deferred shutdown steps in reverse order of registration
type cleanup struct {
	log   *zap.Logger
	steps []func(context.Context) error
	names []string
}

func (c *cleanup) add(name string, step func(context.Context) error) {
	c.names = append(c.names, name)
	c.steps = append(c.steps, step)
}

func (c *cleanup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			c.log.Error("Shutdown step failed", zap.String("step", c.names[i]), zap.Error(err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	down := &cleanup{log: log}
	defer down.run()

	obs, err := startTelemetry(ctx, cfg, log, down)
	if err != nil {
		return err
	}
	log = obs.log
	down.log = log

	log.Info("Starting settlement service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("db_driver", cfg.Database.Driver),
	)

	app, err := assemble(ctx, cfg, obs, down)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        newEngine(cfg, obs, app, down),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Draining HTTP connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}
