package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is an open gorm handle plus its pool
type Database struct {
	DB *gorm.DB
}

type openOptions struct {
	log logger.Interface
}

// OpenOption customises Open
type OpenOption func(*openOptions)

// WithGormLogger replaces the silent default statement logger
func WithGormLogger(l logger.Interface) OpenOption {
	return func(o *openOptions) { o.log = l }
}

// Open connects with the configured driver, sizes the pool and pings once
func Open(cfg *config.DatabaseConfig, opts ...OpenOption) (*Database, error) {
	o := openOptions{log: logger.Default.LogMode(logger.Silent)}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.log,
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver != "sqlite",
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName(cfg), err)
	}

	db := &Database{DB: gdb}
	pool, err := db.pool()
	if err != nil {
		return nil, err
	}
	sizePool(pool, cfg)
	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName(cfg), err)
	}
	return db, nil
}

func driverName(cfg *config.DatabaseConfig) string {
	if cfg.Driver == "" {
		return "postgres"
	}
	return cfg.Driver
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch driverName(cfg) {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func sizePool(pool *sql.DB, cfg *config.DatabaseConfig) {
	if driverName(cfg) == "sqlite" {
		// one writer at a time, and ":memory:" is per connection
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

func (d *Database) pool() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("sql pool: %w", err)
	}
	return pool, nil
}

// AutoMigrate creates the tables from the gorm models. Only sqlite uses it;
// PostgreSQL runs the versioned files through cmd/migrate.
func (d *Database) AutoMigrate() error {
	return d.DB.AutoMigrate(models.SettlementModels()...)
}

// Ping checks the connection within ctx
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Stats exposes the pool counters
func (d *Database) Stats() (sql.DBStats, error) {
	pool, err := d.pool()
	if err != nil {
		return sql.DBStats{}, err
	}
	return pool.Stats(), nil
}

// Close closes the pool
func (d *Database) Close() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}
