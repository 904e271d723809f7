package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxEntryModel is a row of outbox_events. Its fields mirror
// shared.OutboxEntry one for one, so the two convert without copying by hand;
// a field added to one must be added to the other in the same position.
type OutboxEntryModel struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	CompanyID     uuid.UUID           `gorm:"type:uuid;not null;index:idx_outbox_company_status,priority:1"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(255);not null"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null"`
	AggregateType string              `gorm:"type:varchar(255);not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;index:idx_outbox_company_status,priority:2;index:idx_outbox_status_created,priority:1"`
	RetryCount    int                 `gorm:"not null"`
	MaxRetries    int                 `gorm:"not null"`
	LastError     string              `gorm:"type:text"`
	NextRetryAt   *time.Time          `gorm:"index:idx_outbox_next_retry"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_status_created,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (OutboxEntryModel) TableName() string { return "outbox_events" }

func (m *OutboxEntryModel) ToDomain() *shared.OutboxEntry {
	e := shared.OutboxEntry(*m)
	return &e
}

func OutboxEntryModelFromDomain(e *shared.OutboxEntry) *OutboxEntryModel {
	m := OutboxEntryModel(*e)
	return &m
}
