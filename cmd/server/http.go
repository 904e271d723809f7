package main

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const idempotencyLockTTL = 30 * time.Second

func corsPolicy(cfg config.HTTPConfig) middleware.CORSPolicy {
	p := middleware.DefaultCORSPolicy()
	p.Origins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		p.Methods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		p.Headers = cfg.CORSAllowHeaders
	}
	return p
}

// apiChain is the middleware of authenticated routes. It runs after JWT
// verification so limits and idempotency keys are per company.
func apiChain(cfg *config.Config, app *application, log *zap.Logger, down *cleanup) []gin.HandlerFunc {
	jwtCfg := middleware.DefaultJWTConfig(app.jwt)
	jwtCfg.Revocations = app.revocations
	jwtCfg.Logger = log

	chain := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
		middleware.TracingAttributeInjector(),
	}
	if cfg.Telemetry.ProfilingEnabled {
		chain = append(chain, middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	}
	if cfg.HTTP.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		down.add("rate limiter", func(context.Context) error { limiter.Close(); return nil })
		chain = append(chain, middleware.RateLimit(limiter))
	}
	return append(chain, middleware.Idempotency(middleware.IdempotencyConfig{
		Store:   app.stores.Responses,
		TTL:     cfg.Settlement.IdempotencyTTL,
		LockTTL: idempotencyLockTTL,
		Logger:  log,
	}))
}

func newEngine(cfg *config.Config, obs *observability, app *application, down *cleanup) *gin.Engine {
	log := obs.log
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Trusted proxies rejected", zap.Error(err))
		}
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecureHeaders(0),
		middleware.CORS(corsPolicy(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: obs.meters,
			Enabled:       obs.meters.IsEnabled(),
		}),
	)

	checks := map[string]handler.Pinger{"database": handler.PingerFunc(app.db.Ping)}
	if client := app.stores.RedisClient(); client != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}
	system := handler.NewSystemHandler(cfg.App.Name, version, checks)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	svc := app.settlement
	router.Mount(engine, apiChain(cfg, app, log, down), router.SettlementGroups(router.Handlers{
		Periods:     handler.NewPeriodHandler(svc),
		Parties:     handler.NewPartyHandler(svc),
		Documents:   handler.NewDocumentHandler(svc),
		Payments:    handler.NewPaymentHandler(svc),
		Allocations: handler.NewAllocationHandler(svc),
		Cheques:     handler.NewChequeHandler(svc),
		Forecast:    handler.NewForecastHandler(svc),
		Outbox:      handler.NewOutboxHandler(app.outbox),
		System:      system,
	})...)
	return engine
}
