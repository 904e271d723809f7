package persistence

import (
	"context"
	"fmt"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// OutboxRecorder writes domain events to the outbox table inside the
// current transaction, so they commit or roll back with the aggregate rows.
type OutboxRecorder struct {
	db         *gorm.DB
	serializer EventSerializer
}

// NewOutboxRecorder creates a recorder bound to a transaction
func NewOutboxRecorder(db *gorm.DB, serializer EventSerializer) *OutboxRecorder {
	return &OutboxRecorder{db: db, serializer: serializer}
}

// Record serializes the events and inserts one outbox entry per event
func (r *OutboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*models.OutboxEntryModel, 0, len(events))
	for _, event := range events {
		payload, err := r.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", event.EventType(), err)
		}
		entries = append(entries, models.OutboxEntryModelFromDomain(shared.NewOutboxEntry(event, payload)))
	}
	return r.db.WithContext(ctx).Create(entries).Error
}

// Ensure OutboxRecorder implements settlement.EventRecorder
var _ settlement.EventRecorder = (*OutboxRecorder)(nil)
