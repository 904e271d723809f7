// Package integration runs the settlement engines against a real PostgreSQL
// database started with testcontainers. Row locks, lock timeouts and the
// migration files are only exercised here; unit tests use sqlite.
package integration

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const postgresImage = "postgres:16-alpine"

// server is the one container shared by the package. Tests isolate their
// rows by company ID instead of truncating.
var server struct {
	once      sync.Once
	container *tcpostgres.PostgresContainer
	dsn       string
	err       error
}

// TestDB is a connection to the migrated shared database
type TestDB struct {
	DB *gorm.DB
}

func startServer() {
	ctx := context.Background()
	c, err := tcpostgres.Run(ctx, postgresImage,
		tcpostgres.WithDatabase("settlement_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("settlement"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute)),
	)
	if err != nil {
		server.err = err
		return
	}
	server.container = c
	server.dsn, server.err = c.ConnectionString(ctx, "sslmode=disable")
	if server.err != nil {
		return
	}

	db, err := open(server.dsn)
	if err != nil {
		server.err = err
		return
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	m, err := migration.New(sqlDB, nil, zap.NewNop())
	if err != nil {
		server.err = err
		return
	}
	server.err = m.Up()
}

func open(dsn string) (*gorm.DB, error) {
	level := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = logger.Info
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// room for the concurrent allocation tests
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// NewSharedTestDB starts the container on first use, applies the embedded
// schema once and returns a fresh connection pool closed with the test.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	server.once.Do(startServer)
	require.NoError(t, server.err, "postgres container")

	db, err := open(server.dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &TestDB{DB: db}
}

// CleanupSharedContainer stops the container. TestMain calls it.
func CleanupSharedContainer() {
	if server.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = server.container.Terminate(ctx)
}
