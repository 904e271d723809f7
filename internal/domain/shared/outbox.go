package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// Relay retry policy
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	MaxBackoff         = 5 * time.Minute
)

// ErrNotDeadLetter is returned when a retry is requested for a live entry
var ErrNotDeadLetter = errors.New("outbox entry is not in the dead letter queue")

// OutboxEntry is one serialized event on its way to the event bus. It is
// inserted by the transaction that raised the event, so an event exists
// exactly when its ledger change committed.
type OutboxEntry struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event. The entry is stamped with the
// event's occurrence time.
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	at := event.OccurredAt()
	return &OutboxEntry{
		ID:            uuid.New(),
		CompanyID:     event.CompanyID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// MarkSent closes the entry after a successful publish
func (e *OutboxEntry) MarkSent(now time.Time) {
	e.Status, e.ProcessedAt, e.NextRetryAt, e.UpdatedAt = OutboxStatusSent, &now, nil, now
}

// MarkFailed counts a failed attempt and schedules the next one, or parks the
// entry as a dead letter when no attempts are left
func (e *OutboxEntry) MarkFailed(reason string, now time.Time) {
	e.RetryCount++
	e.LastError, e.UpdatedAt = reason, now
	if e.RetryCount < e.MaxRetries {
		next := now.Add(RetryBackoff(e.RetryCount))
		e.Status, e.NextRetryAt = OutboxStatusFailed, &next
		return
	}
	e.Status, e.NextRetryAt = OutboxStatusDead, nil
}

// RetryBackoff is DefaultBaseBackoff doubled per earlier attempt, capped at
// MaxBackoff
func RetryBackoff(attempt int) time.Duration {
	shift := max(attempt, 1) - 1
	if shift >= 16 {
		return MaxBackoff
	}
	return min(DefaultBaseBackoff<<shift, MaxBackoff)
}

// ResetForRetry returns a dead letter to the pending queue with its attempt
// count cleared
func (e *OutboxEntry) ResetForRetry(now time.Time) error {
	if !e.IsDead() {
		return ErrNotDeadLetter
	}
	e.Status, e.RetryCount, e.LastError, e.NextRetryAt, e.UpdatedAt = OutboxStatusPending, 0, "", nil, now
	return nil
}

func (e *OutboxEntry) IsDead() bool { return e.Status == OutboxStatusDead }

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries whose NextRetryAt is before the given time
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	FindDead(ctx context.Context, companyID uuid.UUID, page, pageSize int) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing claims the entries and returns the ones it claimed
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes sent entries processed before the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context, companyID uuid.UUID) (map[OutboxStatus]int64, error)
}
