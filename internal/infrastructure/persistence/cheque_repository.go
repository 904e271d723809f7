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

// GormChequeRepository implements settlement.ChequeRepository using GORM
type GormChequeRepository struct {
	db *gorm.DB
}

// NewGormChequeRepository creates a new GormChequeRepository
func NewGormChequeRepository(db *gorm.DB) *GormChequeRepository {
	return &GormChequeRepository{db: db}
}

// Create inserts a new cheque
func (r *GormChequeRepository) Create(ctx context.Context, c *settlement.Cheque) error {
	return r.db.WithContext(ctx).Create(models.ChequeModelFromDomain(c)).Error
}

// Update saves the cheque with a version check and bumps its version
func (r *GormChequeRepository) Update(ctx context.Context, c *settlement.Cheque) error {
	m := models.ChequeModelFromDomain(c)
	m.Version = c.Version + 1
	if err := saveVersioned(ctx, r.db, "cheque", c.ID, c.Version, m); err != nil {
		return err
	}
	c.Version = m.Version
	return nil
}

// FindByID finds a cheque by ID within a company
func (r *GormChequeRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*settlement.Cheque, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

// FindByIDForUpdate finds and row-locks a cheque
func (r *GormChequeRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*settlement.Cheque, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormChequeRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*settlement.Cheque, error) {
	var m models.ChequeModel
	if err := db.Scopes(company.Scope(companyID)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "cheque", id)
	}
	return m.ToDomain(), nil
}

// FindByDocumentIDs returns the cheques of the given documents keyed by document id
func (r *GormChequeRepository) FindByDocumentIDs(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]*settlement.Cheque, error) {
	out := make(map[uuid.UUID]*settlement.Cheque, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	var ms []models.ChequeModel
	if err := r.db.WithContext(ctx).Where("document_id IN ?", documentIDs).Find(&ms).Error; err != nil {
		return nil, err
	}
	for i := range ms {
		out[ms[i].DocumentID] = ms[i].ToDomain()
	}
	return out, nil
}

// Ensure GormChequeRepository implements settlement.ChequeRepository
var _ settlement.ChequeRepository = (*GormChequeRepository)(nil)
