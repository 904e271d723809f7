package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity. Timestamps come from the domain clock,
// so gorm must not stamp them.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// PopulateAggregateRoot populates a domain BaseAggregateRoot from the persistence model
func (m *AggregateModel) PopulateAggregateRoot(a *shared.BaseAggregateRoot) {
	a.BaseEntity = m.BaseModel.ToDomain()
	a.Version = m.Version
}

// CompanyAggregateModel provides common persistence fields for company-scoped aggregate roots.
// It extends AggregateModel with company, branch and creator.
type CompanyAggregateModel struct {
	AggregateModel
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index"`
	BranchID  *uuid.UUID `gorm:"type:uuid;index"`
	CreatedBy uuid.UUID  `gorm:"type:uuid"`
}

// FromDomainCompanyAggregateRoot populates CompanyAggregateModel from domain CompanyAggregateRoot
func (m *CompanyAggregateModel) FromDomainCompanyAggregateRoot(c shared.CompanyAggregateRoot) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CompanyID = c.CompanyID
	m.BranchID = c.BranchID
	m.CreatedBy = c.CreatedBy
}

// PopulateCompanyAggregateRoot populates a domain CompanyAggregateRoot from the persistence model
func (m *CompanyAggregateModel) PopulateCompanyAggregateRoot(c *shared.CompanyAggregateRoot) {
	m.PopulateAggregateRoot(&c.BaseAggregateRoot)
	c.CompanyID = m.CompanyID
	c.BranchID = m.BranchID
	c.CreatedBy = m.CreatedBy
}
