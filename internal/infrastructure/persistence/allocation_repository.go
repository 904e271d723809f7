package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAllocationRepository implements settlement.AllocationRepository using GORM.
// Allocation rows are inserted and deleted, never updated.
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create inserts the allocation rows in one statement
func (r *GormAllocationRepository) Create(ctx context.Context, allocs ...*settlement.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	ms := make([]*models.AllocationModel, 0, len(allocs))
	for _, a := range allocs {
		ms = append(ms, models.AllocationModelFromDomain(a))
	}
	return r.db.WithContext(ctx).Create(ms).Error
}

// Delete removes an allocation row
func (r *GormAllocationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AllocationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &settlement.NotFoundError{Entity: "allocation", ID: id.String()}
	}
	return nil
}

// FindByIDForUpdate finds and row-locks an allocation
func (r *GormAllocationRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*settlement.Allocation, error) {
	var m models.AllocationModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(company.Scope(companyID)).Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, "allocation", id)
	}
	return m.ToDomain(), nil
}

// FindByPayment lists the allocations drawn from a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*settlement.Allocation, error) {
	return r.findWhere(ctx, "payment_id = ?", paymentID)
}

// FindByDocument lists the allocations applied to a document
func (r *GormAllocationRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) ([]*settlement.Allocation, error) {
	return r.findWhere(ctx, "document_id = ?", documentID)
}

func (r *GormAllocationRepository) findWhere(ctx context.Context, cond string, id uuid.UUID) ([]*settlement.Allocation, error) {
	var ms []models.AllocationModel
	if err := r.db.WithContext(ctx).Where(cond, id).Order("created_at ASC, id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	allocs := make([]*settlement.Allocation, 0, len(ms))
	for i := range ms {
		allocs = append(allocs, ms[i].ToDomain())
	}
	return allocs, nil
}

// Ensure GormAllocationRepository implements settlement.AllocationRepository
var _ settlement.AllocationRepository = (*GormAllocationRepository)(nil)
