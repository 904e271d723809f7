package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DefaultLockTimeout bounds row-lock waits when none is configured
const DefaultLockTimeout = 5 * time.Second

// PostgreSQL SQLSTATE codes that mean "another transaction holds what we need"
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// EventSerializer turns a domain event into the outbox payload
type EventSerializer interface {
	Serialize(event shared.DomainEvent) ([]byte, error)
}

// StoreOption configures a GormStore
type StoreOption func(*GormStore)

// WithLockTimeout sets the per-transaction lock_timeout on PostgreSQL
func WithLockTimeout(d time.Duration) StoreOption {
	return func(s *GormStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// GormStore implements settlement.Store with gorm transactions.
// Every Atomic call is one database transaction; on PostgreSQL it starts
// with SET LOCAL lock_timeout so a blocked row lock fails fast instead of
// queueing forever.
type GormStore struct {
	db          *gorm.DB
	serializer  EventSerializer
	lockTimeout time.Duration
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB, serializer EventSerializer, opts ...StoreOption) *GormStore {
	s := &GormStore{
		db:          db,
		serializer:  serializer,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Atomic runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.isPostgres() {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(ctx, s.bind(tx))
	})
	return translateError(ctx, err)
}

// View runs fn within a read-only transaction
func (s *GormStore) View(ctx context.Context, fn func(ctx context.Context, tx settlement.Tx) error) error {
	var opts []*sql.TxOptions
	if s.isPostgres() {
		opts = append(opts, &sql.TxOptions{ReadOnly: true})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.bind(tx))
	}, opts...)
	return translateError(ctx, err)
}

func (s *GormStore) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

func (s *GormStore) bind(tx *gorm.DB) settlement.Tx {
	return &gormSettlementTx{tx: tx, serializer: s.serializer}
}

// gormSettlementTx provides access to all repositories within a transaction.
type gormSettlementTx struct {
	tx         *gorm.DB
	serializer EventSerializer
}

func (t *gormSettlementTx) Parties() settlement.PartyRepository {
	return NewGormPartyRepository(t.tx)
}

func (t *gormSettlementTx) Documents() settlement.DocumentRepository {
	return NewGormDocumentRepository(t.tx)
}

func (t *gormSettlementTx) Payments() settlement.PaymentRepository {
	return NewGormPaymentRepository(t.tx)
}

func (t *gormSettlementTx) Allocations() settlement.AllocationRepository {
	return NewGormAllocationRepository(t.tx)
}

func (t *gormSettlementTx) Periods() settlement.PeriodRepository {
	return NewGormPeriodRepository(t.tx)
}

func (t *gormSettlementTx) Cheques() settlement.ChequeRepository {
	return NewGormChequeRepository(t.tx)
}

func (t *gormSettlementTx) Events() settlement.EventRecorder {
	return NewOutboxRecorder(t.tx, t.serializer)
}

// translateError maps driver-level lock and timeout failures to
// *settlement.ConcurrencyConflictError. Domain errors pass through untouched.
func translateError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if IsLockConflict(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &settlement.ConcurrencyConflictError{Cause: err}
	}
	return err
}

// IsLockConflict reports lock timeouts, serialization failures and deadlocks
// on PostgreSQL and busy errors on sqlite
func IsLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound translates gorm.ErrRecordNotFound into the domain's not-found error
func notFound(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &settlement.NotFoundError{Entity: entity, ID: id.String()}
	}
	return err
}

// saveVersioned writes every column of model on the row that still carries
// the expected version. A miss means another transaction got there first.
func saveVersioned(ctx context.Context, db *gorm.DB, entity string, id uuid.UUID, expected int, model any) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &settlement.ConcurrencyConflictError{
			Cause: fmt.Errorf("%s %s was modified by another transaction", entity, id),
		}
	}
	return nil
}

// Ensure GormStore implements settlement.Store
var _ settlement.Store = (*GormStore)(nil)

// Ensure gormSettlementTx implements settlement.Tx
var _ settlement.Tx = (*gormSettlementTx)(nil)
