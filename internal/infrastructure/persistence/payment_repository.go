package persistence

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements settlement.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *settlement.Payment) error {
	return r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error
}

// Update saves the payment with a version check and bumps its version
func (r *GormPaymentRepository) Update(ctx context.Context, p *settlement.Payment) error {
	m := models.PaymentModelFromDomain(p)
	m.Version = p.Version + 1
	if err := saveVersioned(ctx, r.db, "payment", p.ID, p.Version, m); err != nil {
		return err
	}
	p.Version = m.Version
	return nil
}

// FindByID finds a payment by ID within a company
func (r *GormPaymentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*settlement.Payment, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

// FindByIDForUpdate finds and row-locks a payment
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*settlement.Payment, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormPaymentRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*settlement.Payment, error) {
	var m models.PaymentModel
	if err := db.Scopes(company.Scope(companyID)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "payment", id)
	}
	return m.ToDomain(), nil
}

// FindConfirmedByAccount lists confirmed payments that touch the account as
// source or destination, dated on or before asOf
func (r *GormPaymentRepository) FindConfirmedByAccount(ctx context.Context, companyID uuid.UUID, account settlement.AccountRef, asOf time.Time) ([]*settlement.Payment, error) {
	source, dest := "bank_account_id", "dest_bank_account_id"
	if account.Kind == settlement.AccountKindCashbox {
		source, dest = "cashbox_id", "dest_cashbox_id"
	}

	var ms []models.PaymentModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("status = ? AND payment_date <= ?", settlement.PaymentStatusConfirmed, asOf).
		Where(r.db.Where(source+" = ?", account.ID).Or(dest+" = ?", account.ID)).
		Order("payment_date ASC, id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return paymentsToDomain(ms), nil
}

// FindUnallocated lists confirmed payments of a party with money left to allocate
func (r *GormPaymentRepository) FindUnallocated(ctx context.Context, companyID, partyID uuid.UUID) ([]*settlement.Payment, error) {
	var ms []models.PaymentModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("party_id = ? AND status = ? AND unallocated_amount > 0", partyID, settlement.PaymentStatusConfirmed).
		Order("payment_date ASC, id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	return paymentsToDomain(ms), nil
}

func paymentsToDomain(ms []models.PaymentModel) []*settlement.Payment {
	payments := make([]*settlement.Payment, 0, len(ms))
	for i := range ms {
		payments = append(payments, ms[i].ToDomain())
	}
	return payments
}

// Ensure GormPaymentRepository implements settlement.PaymentRepository
var _ settlement.PaymentRepository = (*GormPaymentRepository)(nil)
