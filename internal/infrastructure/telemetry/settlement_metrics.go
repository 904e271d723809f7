// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels for settlement operations
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // business rule said no
	OutcomeConflict = "conflict" // lock timeout or version clash, safe to retry
	OutcomeError    = "error"
)

// SettlementMetrics tracks ledger activity: operation outcomes and latency,
// allocated volume, relayed events and the open balance per company.
type SettlementMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	operationsTotal    *Counter
	operationDuration  *Histogram
	conflictsTotal     *Counter
	allocatedMinorUnit *Counter
	eventsTotal        *Counter

	openDocuments *Gauge
	openBalance   *FloatGauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	provider OpenBalanceProvider
}

// OpenBalance is the outstanding position of one company in one direction
type OpenBalance struct {
	CompanyID uuid.UUID
	Direction string
	Currency  string
	Count     int64
	Unpaid    decimal.Decimal
}

// OpenBalanceProvider supplies open document aggregates for the periodic gauges
type OpenBalanceProvider interface {
	OpenBalances(ctx context.Context) ([]OpenBalance, error)
}

// SettlementMetricsConfig holds configuration for settlement metrics.
type SettlementMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	Provider        OpenBalanceProvider
}

// NewSettlementMetrics creates a new SettlementMetrics instance.
func NewSettlementMetrics(cfg SettlementMetricsConfig) (*SettlementMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SettlementMetrics{
		meter:    cfg.Meter,
		logger:   logger,
		stopChan: make(chan struct{}),
		provider: cfg.Provider,
	}

	in := NewInstruments(cfg.Meter)
	sm.operationsTotal = in.Counter("settlement_operations_total", "Settlement operations by outcome", "{operations}")
	sm.operationDuration = in.Histogram("settlement_operation_duration_seconds",
		"Wall time of settlement operations including the transaction", "s", DBDurationBuckets...)
	sm.conflictsTotal = in.Counter("settlement_concurrency_conflicts_total",
		"Operations aborted by a lock timeout or stale version", "{conflicts}")
	sm.allocatedMinorUnit = in.Counter("settlement_allocated_amount_total",
		"Allocated amount in minor currency units", "{minor_units}")
	sm.eventsTotal = in.Counter("settlement_events_relayed_total", "Domain events relayed from the outbox", "{events}")
	sm.openDocuments = in.Gauge("settlement_open_documents", "Documents in pending or partial status", "{documents}")
	sm.openBalance = in.FloatGauge("settlement_open_balance", "Unpaid balance of open documents", "{currency}")
	if err := in.Err(); err != nil {
		return nil, err
	}

	return sm, nil
}

// OutcomeOf classifies an operation error for metric labels
func OutcomeOf(err error) (outcome, code string) {
	if err == nil {
		return OutcomeSuccess, ""
	}
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return OutcomeError, ""
	}
	if de.Code == shared.ErrConcurrencyConflict.Code {
		return OutcomeConflict, de.Code
	}
	return OutcomeRejected, de.Code
}

// RecordOperation records count and latency of one settlement operation
func (sm *SettlementMetrics) RecordOperation(ctx context.Context, companyID uuid.UUID, operation string, d time.Duration, err error) {
	outcome, code := OutcomeOf(err)
	sm.operationsTotal.Inc(ctx,
		AttrCompanyID.String(companyID.String()),
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
		AttrErrorCode.String(code),
	)
	sm.operationDuration.RecordDuration(ctx, d, AttrOperation.String(operation))
	if outcome == OutcomeConflict {
		sm.conflictsTotal.Inc(ctx, AttrOperation.String(operation))
	}
}

// RecordAllocated adds an allocated amount, converted to minor units (x100)
func (sm *SettlementMetrics) RecordAllocated(ctx context.Context, companyID uuid.UUID, currency string, amount decimal.Decimal) {
	sm.allocatedMinorUnit.Add(ctx, amount.Shift(2).IntPart(),
		AttrCompanyID.String(companyID.String()),
		AttrCurrency.String(currency),
	)
}

// RecordEvent counts one relayed domain event
func (sm *SettlementMetrics) RecordEvent(ctx context.Context, event shared.DomainEvent) {
	sm.eventsTotal.Inc(ctx,
		AttrCompanyID.String(event.CompanyID().String()),
		AttrOperation.String(event.EventType()),
	)
}

// RecordOpenBalance sets the open document gauges for one company and direction
func (sm *SettlementMetrics) RecordOpenBalance(ctx context.Context, b OpenBalance) {
	sm.openDocuments.Record(ctx, b.Count,
		AttrCompanyID.String(b.CompanyID.String()),
		AttrDirection.String(b.Direction),
		AttrCurrency.String(b.Currency),
	)
	sm.openBalance.Record(ctx, b.Unpaid.InexactFloat64(),
		AttrCompanyID.String(b.CompanyID.String()),
		AttrDirection.String(b.Direction),
		AttrCurrency.String(b.Currency),
	)
}

// StartPeriodicCollection refreshes the open balance gauges every interval.
// Non-blocking; call Stop to end collection.
func (sm *SettlementMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go sm.runPeriodicCollection(ctx, interval)
	})
}

func (sm *SettlementMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sm.CollectOpenBalances(ctx)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic settlement metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CollectOpenBalances(ctx)
		}
	}
}

// CollectOpenBalances queries the provider once and updates the gauges
func (sm *SettlementMetrics) CollectOpenBalances(ctx context.Context) {
	if sm.provider == nil {
		sm.logger.Debug("No open balance provider configured, skipping collection")
		return
	}
	balances, err := sm.provider.OpenBalances(ctx)
	if err != nil {
		sm.logger.Warn("Failed to collect open balances", zap.Error(err))
		return
	}
	for _, b := range balances {
		sm.RecordOpenBalance(ctx, b)
	}
}

// Stop stops the periodic collection.
func (sm *SettlementMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSettlementMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
