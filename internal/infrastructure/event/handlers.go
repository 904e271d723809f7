package event

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured log line per relayed settlement event
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a wildcard handler logging to logger
func NewAuditLogHandler(logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger.Named("audit")}
}

// EventTypes subscribes to every event
func (h *AuditLogHandler) EventTypes() []string { return nil }

// Handle logs the event envelope plus the fields an operator searches by
func (h *AuditLogHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("company_id", event.CompanyID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *settlement.DocumentStatusChangedEvent:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)))
	case *settlement.ChequeStatusChangedEvent:
		fields = append(fields,
			zap.String("cheque_number", e.ChequeNumber),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
		)
	case *settlement.PaymentAllocatedEvent:
		fields = append(fields,
			zap.Int("allocations", len(e.Allocations)),
			zap.String("unallocated_amount", e.UnallocatedAmount.String()),
		)
	case *settlement.PeriodLockedEvent:
		fields = append(fields, zap.Int("year", e.Year), zap.Int("month", e.Month))
	case *settlement.PeriodUnlockedEvent:
		fields = append(fields, zap.Int("year", e.Year), zap.Int("month", e.Month))
	}

	h.logger.Info("settlement event", fields...)
	return nil
}

// EventMetrics is the subset of the settlement metrics fed by relayed events
type EventMetrics interface {
	RecordEvent(ctx context.Context, event shared.DomainEvent)
	RecordAllocated(ctx context.Context, companyID uuid.UUID, currency string, amount decimal.Decimal)
}

// MetricsHandler counts relayed events and the amounts allocated by them
type MetricsHandler struct {
	metrics EventMetrics
}

// NewMetricsHandler creates a wildcard handler feeding metrics
func NewMetricsHandler(metrics EventMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// EventTypes subscribes to every event
func (h *MetricsHandler) EventTypes() []string { return nil }

// Handle records the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.metrics.RecordEvent(ctx, event)
	if e, ok := event.(*settlement.PaymentAllocatedEvent); ok {
		total := decimal.Zero
		for _, a := range e.Allocations {
			total = total.Add(a.Amount)
		}
		h.metrics.RecordAllocated(ctx, e.CompanyID(), e.Currency, total)
	}
	return nil
}

var (
	_ shared.EventHandler = (*AuditLogHandler)(nil)
	_ shared.EventHandler = (*MetricsHandler)(nil)
)
