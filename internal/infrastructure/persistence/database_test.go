package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mockedDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	// gorm pings once while opening
	mock.ExpectPing()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return &Database{DB: gdb}, mock
}

func TestDatabase_PingAndClose(t *testing.T) {
	db, mock := mockedDatabase(t)

	mock.ExpectPing()
	require.NoError(t, db.Ping(context.Background()))

	mock.ExpectClose()
	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_PingRespectsContext(t *testing.T) {
	db, mock := mockedDatabase(t)
	mock.ExpectPing().WillDelayFor(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.Ping(ctx))
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{
		Driver:          "sqlite",
		Path:            ":memory:",
		MaxOpenConns:    25,
		ConnMaxLifetime: 60,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.AutoMigrate())
	for _, table := range []string{"parties", "documents", "payments", "allocations", "accounting_periods", "cheques", "outbox_events"} {
		assert.True(t, db.DB.Migrator().HasTable(table), table)
	}

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections, "sqlite is pinned to one connection")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "mysql"`)
}

func TestDialectorFor_DefaultsToPostgres(t *testing.T) {
	d, err := dialectorFor(&config.DatabaseConfig{Host: "db", Port: 5432, DBName: "settlement", SSLMode: "disable"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
