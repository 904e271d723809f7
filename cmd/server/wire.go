package main

import (
	"context"
	"fmt"

	appevent "github.com/erp/settlement/internal/application/event"
	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/auth"
	"github.com/erp/settlement/internal/infrastructure/cache"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/event"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// application is everything the HTTP layer serves
type application struct {
	db          *persistence.Database
	stores      *cache.Stores
	settlement  *appsettlement.Service
	outbox      *appevent.OutboxService
	jwt         *auth.JWTService
	revocations auth.RevocationChecker
}

func openDatabase(cfg *config.Config, obs *observability, down *cleanup) (*persistence.Database, error) {
	log := obs.log
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithRetryableClassifier(persistence.IsLockConflict),
	)
	db, err := persistence.Open(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	down.add("database", func(context.Context) error { return db.Close() })

	// postgres schemas come from cmd/migrate
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrate sqlite schema: %w", err)
		}
	}

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database), log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Database tracing not registered", zap.Error(err))
	}
	metricsCfg := telemetry.DefaultDBMetricsConfig()
	metricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	if m, err := telemetry.RegisterDBMetrics(db.DB, obs.meters, metricsCfg, log); err != nil {
		log.Warn("Database metrics not registered", zap.Error(err))
	} else if m != nil {
		down.add("db metrics", func(context.Context) error { m.Stop(); return nil })
	}
	log.Info("Database connected")
	return db, nil
}

// assemble opens storage and builds the services, the event bus and, when
// enabled, the outbox relay
func assemble(ctx context.Context, cfg *config.Config, obs *observability, down *cleanup) (*application, error) {
	log := obs.log
	db, err := openDatabase(cfg, obs, down)
	if err != nil {
		return nil, err
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	store := persistence.NewGormStore(db.DB, serializer, persistence.WithLockTimeout(cfg.Settlement.LockTimeout))
	engines := settlement.NewEngines(store, settlement.WithDefaultCurrency(cfg.Settlement.DefaultCurrency))

	metrics, err := telemetry.NewSettlementMetrics(telemetry.SettlementMetricsConfig{
		Meter:    obs.meters.Meter("settlement"),
		Logger:   log,
		Provider: persistence.NewGormOpenBalanceProvider(db.DB),
	})
	if err != nil {
		return nil, fmt.Errorf("settlement metrics: %w", err)
	}
	metrics.StartPeriodicCollection(ctx, 0)
	down.add("settlement metrics", func(context.Context) error { metrics.Stop(); return nil })

	stores, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).Create()
	if err != nil {
		return nil, fmt.Errorf("idempotency stores: %w", err)
	}
	down.add("idempotency stores", func(context.Context) error { return stores.Close() })

	// delivery is at least once, so the metrics handler drops event ids it
	// has already counted; the event store is keyed by id alone and has one
	// owner
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditLogHandler(log))
	bus.Subscribe(event.NewIdempotentHandler(event.NewMetricsHandler(metrics), stores.Events, log,
		event.WithIdempotencyConfig(shared.DefaultIdempotencyConfig())))
	if err := bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("event bus: %w", err)
	}
	down.add("event bus", bus.Stop)

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	if cfg.Event.ProcessorEnabled {
		relayCfg := event.OutboxProcessorConfigFrom(cfg.Event)
		relay := event.NewOutboxProcessor(outboxRepo, bus, serializer, relayCfg, log)
		if err := relay.Start(ctx); err != nil {
			return nil, fmt.Errorf("outbox processor: %w", err)
		}
		down.add("outbox processor", relay.Stop)
		log.Info("Outbox relay running",
			zap.Int("batch_size", relayCfg.BatchSize),
			zap.Duration("poll_interval", relayCfg.PollInterval),
		)
	}

	var revocations auth.RevocationChecker = auth.NewMemoryRevocations()
	if client := stores.RedisClient(); client != nil {
		revocations = auth.NewRedisRevocations(client)
	}

	return &application{
		db:     db,
		stores: stores,
		settlement: appsettlement.NewService(engines,
			appsettlement.WithMetrics(metrics),
			appsettlement.WithLogger(log),
		),
		outbox:      appevent.NewOutboxService(outboxRepo, log),
		jwt:         auth.NewJWTService(cfg.JWT),
		revocations: revocations,
	}, nil
}
