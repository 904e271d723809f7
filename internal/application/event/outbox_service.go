package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxService is the company's window on the outbox: statistics, dead
// letters and manual retry. Entries of other companies do not exist here.
type OutboxService struct {
	repo  shared.OutboxRepository
	clock shared.Clock
	log   *zap.Logger
}

func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, clock: shared.SystemClock(), log: logger.Named("outbox")}
}

// OutboxEntryDTO is an outbox entry without its payload
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// OutboxFilter is the dead letter listing query
type OutboxFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts a company's rows per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

func newOutboxStats(counts map[shared.OutboxStatus]int64) *OutboxStatsDTO {
	stats := &OutboxStatsDTO{}
	for status, n := range counts {
		stats.Total += n
		switch status {
		case shared.OutboxStatusPending:
			stats.Pending = n
		case shared.OutboxStatusProcessing:
			stats.Processing = n
		case shared.OutboxStatusSent:
			stats.Sent = n
		case shared.OutboxStatusFailed:
			stats.Failed = n
		case shared.OutboxStatusDead:
			stats.Dead = n
		}
	}
	return stats
}

var (
	errEntryNotFound = shared.NewDomainError("NOT_FOUND", "outbox entry not found")
	errOutboxBackend = errors.New("outbox store unavailable")
)

// retryAllBatch bounds one FindDead round of RetryAllDeadEntries
const retryAllBatch = shared.MaxPageSize

// storeErr logs a repository failure and hides it behind errOutboxBackend,
// which the HTTP layer maps to an internal error
func (s *OutboxService) storeErr(op string, err error, fields ...zap.Field) error {
	s.log.Error("Outbox store failure", append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
	return errors.Join(errOutboxBackend, err)
}

// GetDeadLetterEntries pages through the company's dead letters
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, companyID uuid.UUID, filter OutboxFilter) (shared.Paginated[OutboxEntryDTO], error) {
	page, size := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize()

	entries, total, err := s.repo.FindDead(ctx, companyID, page, size)
	if err != nil {
		return shared.Paginated[OutboxEntryDTO]{}, s.storeErr("find_dead", err)
	}
	items := make([]OutboxEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, newOutboxEntryDTO(e))
	}
	return shared.NewPaginated(items, total, page, size), nil
}

func (s *OutboxService) GetEntry(ctx context.Context, companyID, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry puts one dead letter back in the pending queue
func (s *OutboxService) RetryDeadEntry(ctx context.Context, companyID, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.owned(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(s.clock.Now()); err != nil {
		return nil, shared.NewDomainError(shared.ErrInvalidState.Code, err.Error())
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, s.storeErr("update", err, zap.Stringer("id", id))
	}

	s.log.Info("Dead letter requeued",
		zap.Stringer("id", id),
		zap.String("event_type", entry.EventType),
		zap.Stringer("company_id", companyID),
	)
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDeadEntries requeues the company's dead letters batch by batch
// and returns how many were reset. It stops early when a whole batch fails
// to update.
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var total int64
	for done := false; !done; {
		// requeued rows leave the dead set, so page one is always next
		batch, _, err := s.repo.FindDead(ctx, companyID, 1, retryAllBatch)
		if err != nil {
			return total, s.storeErr("find_dead", err)
		}
		n := s.requeue(ctx, batch)
		total += n
		done = n == 0 || len(batch) < retryAllBatch
	}
	s.log.Info("Dead letters requeued", zap.Int64("count", total), zap.Stringer("company_id", companyID))
	return total, nil
}

func (s *OutboxService) requeue(ctx context.Context, batch []*shared.OutboxEntry) int64 {
	var n int64
	now := s.clock.Now()
	for _, e := range batch {
		if e.ResetForRetry(now) != nil {
			continue
		}
		if err := s.repo.Update(ctx, e); err != nil {
			s.log.Error("Requeue failed", zap.Stringer("id", e.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

func (s *OutboxService) GetStats(ctx context.Context, companyID uuid.UUID) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx, companyID)
	if err != nil {
		return nil, s.storeErr("count", err)
	}
	return newOutboxStats(counts), nil
}

// owned loads an entry and hides it unless it belongs to companyID
func (s *OutboxService) owned(ctx context.Context, companyID, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil, errEntryNotFound
	case err != nil:
		return nil, s.storeErr("find", err, zap.Stringer("id", id))
	case entry == nil || entry.CompanyID != companyID:
		return nil, errEntryNotFound
	}
	return entry, nil
}
