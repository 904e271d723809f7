package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with an identity and audit timestamps. Parties,
// documents, payments, allocations, cheques and accounting periods all are.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity and the timestamps. Both timestamps come
// from the injected clock, never from time.Now, so fixtures stay
// reproducible.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// NewBaseEntityAt assigns a fresh id and stamps both timestamps with now
func NewBaseEntityAt(now time.Time) BaseEntity {
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch records a change at now. Every state transition of a settlement
// record calls it.
func (e *BaseEntity) Touch(now time.Time) {
	e.UpdatedAt = now
}
