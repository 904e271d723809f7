package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrOutboxEntryNotFound = shared.NewDomainError("NOT_FOUND", "outbox entry not found")

// GormOutboxRepository stores outbox entries in the outbox_events table
type GormOutboxRepository struct {
	db *gorm.DB
}

func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func inStatus(statuses ...shared.OutboxStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 1 {
			return db.Where("status = ?", statuses[0])
		}
		return db.Where("status IN ?", statuses)
	}
}

func (r *GormOutboxRepository) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEntryModel{})
}

func find(q *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.OutboxEntryModelFromDomain(e))
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending returns never-attempted entries in commit order
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return find(r.table(ctx).Scopes(inStatus(shared.OutboxStatusPending)).Order("created_at").Limit(limit))
}

// FindRetryable returns failed entries scheduled at or before before
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return find(r.table(ctx).
		Scopes(inStatus(shared.OutboxStatusFailed)).
		Where("next_retry_at <= ?", before).
		Order("next_retry_at").
		Limit(limit))
}

// MarkProcessing claims entries for this worker. On PostgreSQL rows locked
// by another worker are skipped, so no row is published by two processors.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries, err := find(tx.Model(&models.OutboxEntryModel{}).
			Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
			Scopes(inStatus(shared.OutboxStatusPending, shared.OutboxStatusFailed)).
			Where("id IN ?", ids))
		if err != nil || len(entries) == 0 {
			return err
		}

		now := time.Now().UTC()
		locked := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			locked[i] = e.ID
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}
		err = tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", locked).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
		if err == nil {
			claimed = entries
		}
		return err
	})
	return claimed, err
}

// Update writes the whole entry back. The domain transitions stamp UpdatedAt.
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Save(models.OutboxEntryModelFromDomain(entry)).Error
}

// DeleteOlderThan purges sent entries processed before the cutoff
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Scopes(inStatus(shared.OutboxStatusSent)).
		Where("processed_at < ?", before).
		Delete(&models.OutboxEntryModel{})
	return res.RowsAffected, res.Error
}

// FindDead pages through a company's dead letters, most recent failure first
func (r *GormOutboxRepository) FindDead(ctx context.Context, companyID uuid.UUID, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	filter := shared.Filter{Page: page, PageSize: pageSize}
	_, size := filter.Normalize()
	dead := func() *gorm.DB {
		return r.table(ctx).Scopes(company.Scope(companyID), inStatus(shared.OutboxStatusDead))
	}

	var total int64
	if err := dead().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	entries, err := find(dead().Order("updated_at DESC").Offset(filter.Offset()).Limit(size))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEntryModel
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrOutboxEntryNotFound
	case err != nil:
		return nil, err
	}
	return row.ToDomain(), nil
}

// CountByStatus tallies a company's entries per status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context, companyID uuid.UUID) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		N      int64
	}
	err := r.table(ctx).
		Scopes(company.Scope(companyID)).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
