package persistence

import (
	"context"
	"errors"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/persistence/company"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPartyRepository implements settlement.PartyRepository using GORM
type GormPartyRepository struct {
	db *gorm.DB
}

// NewGormPartyRepository creates a new GormPartyRepository
func NewGormPartyRepository(db *gorm.DB) *GormPartyRepository {
	return &GormPartyRepository{db: db}
}

// Create inserts a new party. A second party for the same linkable entity is rejected.
func (r *GormPartyRepository) Create(ctx context.Context, party *settlement.Party) error {
	if err := r.db.WithContext(ctx).Create(models.PartyModelFromDomain(party)).Error; err != nil {
		if isUniqueViolation(err) {
			return settlement.NewValidationError("linkable", "is already linked to another party")
		}
		return err
	}
	return nil
}

// Update saves the party with a version check
func (r *GormPartyRepository) Update(ctx context.Context, party *settlement.Party) error {
	m := models.PartyModelFromDomain(party)
	m.Version = party.Version + 1
	if err := saveVersioned(ctx, r.db, "party", party.ID, party.Version, m); err != nil {
		return err
	}
	party.Version = m.Version
	return nil
}

// FindByID finds a party by ID within a company
func (r *GormPartyRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*settlement.Party, error) {
	return r.find(r.db.WithContext(ctx), companyID, id)
}

// FindByIDForUpdate finds and row-locks a party
func (r *GormPartyRepository) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*settlement.Party, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), companyID, id)
}

func (r *GormPartyRepository) find(db *gorm.DB, companyID, id uuid.UUID) (*settlement.Party, error) {
	var m models.PartyModel
	if err := db.Scopes(company.Scope(companyID)).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, "party", id)
	}
	return m.ToDomain(), nil
}

// FindByLinkable finds the party linked to an internal entity
func (r *GormPartyRepository) FindByLinkable(ctx context.Context, companyID uuid.UUID, ref settlement.LinkableRef) (*settlement.Party, error) {
	var m models.PartyModel
	err := r.db.WithContext(ctx).
		Scopes(company.Scope(companyID)).Where("linkable_type = ? AND linkable_id = ?", ref.Type, ref.ID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &settlement.NotFoundError{Entity: "party", ID: ref.Type + ":" + ref.ID.String()}
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Ensure GormPartyRepository implements settlement.PartyRepository
var _ settlement.PartyRepository = (*GormPartyRepository)(nil)
