package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormOpenBalanceProvider aggregates unsettled documents for the open balance gauges
type GormOpenBalanceProvider struct {
	db *gorm.DB
}

// NewGormOpenBalanceProvider creates a new GormOpenBalanceProvider
func NewGormOpenBalanceProvider(db *gorm.DB) *GormOpenBalanceProvider {
	return &GormOpenBalanceProvider{db: db}
}

// OpenBalances returns count and unpaid amount per company, direction and currency
func (p *GormOpenBalanceProvider) OpenBalances(ctx context.Context) ([]telemetry.OpenBalance, error) {
	var rows []struct {
		CompanyID uuid.UUID
		Direction string
		Currency  string
		Count     int64
		Unpaid    decimal.Decimal
	}
	err := p.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Select("company_id, direction, currency, COUNT(*) AS count, SUM(total_amount - allocated_amount) AS unpaid").
		Where("status IN ?", []settlement.DocumentStatus{settlement.DocumentStatusPending, settlement.DocumentStatusPartial}).
		Group("company_id, direction, currency").
		Order("company_id, direction, currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]telemetry.OpenBalance, len(rows))
	for i, r := range rows {
		out[i] = telemetry.OpenBalance{
			CompanyID: r.CompanyID,
			Direction: r.Direction,
			Currency:  r.Currency,
			Count:     r.Count,
			Unpaid:    r.Unpaid,
		}
	}
	return out, nil
}

var _ telemetry.OpenBalanceProvider = (*GormOpenBalanceProvider)(nil)
