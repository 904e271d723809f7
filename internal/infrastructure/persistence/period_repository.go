package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPeriodRepository implements settlement.PeriodRepository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// Find returns the period, or nil when it was never referenced
func (r *GormPeriodRepository) Find(ctx context.Context, key settlement.PeriodKey) (*settlement.AccountingPeriod, error) {
	return r.find(r.db.WithContext(ctx), key)
}

func (r *GormPeriodRepository) find(db *gorm.DB, key settlement.PeriodKey) (*settlement.AccountingPeriod, error) {
	var m models.AccountingPeriodModel
	err := db.Scopes(company.Scope(key.CompanyID)).Where("year = ? AND month = ?", key.Year, key.Month).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Ensure inserts an open period if none exists and returns the stored row.
// Concurrent first references race on the unique key; the loser's insert is
// a no-op and it reads the winner's row.
func (r *GormPeriodRepository) Ensure(ctx context.Context, key settlement.PeriodKey, now time.Time) (*settlement.AccountingPeriod, error) {
	p, err := r.Find(ctx, key)
	if err != nil || p != nil {
		return p, err
	}
	m := models.AccountingPeriodModelFromDomain(settlement.NewAccountingPeriod(key, now))
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}, {Name: "year"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(m).Error
	if err != nil {
		return nil, err
	}
	p, err = r.Find(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &settlement.NotFoundError{Entity: "accounting period", ID: key.String()}
	}
	return p, nil
}

// EnsureForUpdate ensures the period exists, then row-locks it
func (r *GormPeriodRepository) EnsureForUpdate(ctx context.Context, key settlement.PeriodKey, now time.Time) (*settlement.AccountingPeriod, error) {
	if _, err := r.Ensure(ctx, key, now); err != nil {
		return nil, err
	}
	p, err := r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &settlement.NotFoundError{Entity: "accounting period", ID: key.String()}
	}
	return p, nil
}

// Update saves the period with a version check and bumps its version
func (r *GormPeriodRepository) Update(ctx context.Context, p *settlement.AccountingPeriod) error {
	m := models.AccountingPeriodModelFromDomain(p)
	m.Version = p.Version + 1
	if err := saveVersioned(ctx, r.db, "accounting period", p.ID, p.Version, m); err != nil {
		return err
	}
	p.Version = m.Version
	return nil
}

// ListByYear lists the referenced periods of a company in one year
func (r *GormPeriodRepository) ListByYear(ctx context.Context, companyID uuid.UUID, year int) ([]*settlement.AccountingPeriod, error) {
	var ms []models.AccountingPeriodModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("year = ?", year).
		Order("month ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	periods := make([]*settlement.AccountingPeriod, 0, len(ms))
	for i := range ms {
		periods = append(periods, ms[i].ToDomain())
	}
	return periods, nil
}

// Ensure GormPeriodRepository implements settlement.PeriodRepository
var _ settlement.PeriodRepository = (*GormPeriodRepository)(nil)
