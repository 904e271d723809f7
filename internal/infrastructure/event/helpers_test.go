package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

func statusChanged(companyID uuid.UUID, from, to settlement.DocumentStatus) *settlement.DocumentStatusChangedEvent {
	docID := uuid.New()
	return &settlement.DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(settlement.EventTypeDocumentStatusChanged,
			settlement.AggregateTypeDocument, docID, companyID, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)),
		DocumentID:      docID,
		From:            from,
		To:              to,
		AllocatedAmount: decimal.RequireFromString("40.10"),
	}
}

func allocated(companyID uuid.UUID, amounts ...string) *settlement.PaymentAllocatedEvent {
	paymentID := uuid.New()
	e := &settlement.PaymentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(settlement.EventTypePaymentAllocated,
			settlement.AggregateTypePayment, paymentID, companyID, time.Now()),
		PaymentID:         paymentID,
		Currency:          "TRY",
		UnallocatedAmount: decimal.RequireFromString("0.01"),
	}
	for _, a := range amounts {
		e.Allocations = append(e.Allocations, settlement.AllocationSnapshot{
			AllocationID: uuid.New(),
			DocumentID:   uuid.New(),
			Amount:       decimal.RequireFromString(a),
		})
	}
	return e
}

// recordingHandler remembers what it handled and fails while err is set
type recordingHandler struct {
	types []string

	mu      sync.Mutex
	handled []shared.DomainEvent
	err     error
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, e)
	return h.err
}

func (h *recordingHandler) setErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}
