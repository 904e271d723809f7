// Package testutil holds helpers shared by the settlement test suites.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockDB wraps a GORM postgres dialect over sqlmock
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a mock postgres connection closed at test cleanup
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{
		Logger:                 logger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{DB: db, Mock: mock, SqlDB: sqlDB}
}

// ExpectationsWereMet fails the test on unmet database expectations
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

var testNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(testNamespace, []byte(seed))
}

// TestCompanyID is the company most tests run under
func TestCompanyID() uuid.UUID {
	return NewTestUUID("test-company")
}

// TestActorID is the user most tests act as
func TestActorID() uuid.UUID {
	return NewTestUUID("test-actor")
}

// ActorContext returns a background context carrying TestActorID
func ActorContext() context.Context {
	return shared.WithActor(context.Background(), TestActorID())
}

// Amount parses a decimal literal and panics on malformed input
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// RequireEventually polls condition until it holds or timeout elapses
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}
