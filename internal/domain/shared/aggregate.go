package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRootAt creates a new base aggregate root stamped with the given time
func NewBaseAggregateRootAt(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntityAt(now),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// CompanyAggregateRoot extends BaseAggregateRoot with company/branch scope
type CompanyAggregateRoot struct {
	BaseAggregateRoot
	CompanyID uuid.UUID
	BranchID  *uuid.UUID
	CreatedBy uuid.UUID
}

// NewCompanyAggregateRoot creates a new company-scoped aggregate root
func NewCompanyAggregateRoot(companyID uuid.UUID, branchID *uuid.UUID, createdBy uuid.UUID, now time.Time) CompanyAggregateRoot {
	return CompanyAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRootAt(now),
		CompanyID:         companyID,
		BranchID:          branchID,
		CreatedBy:         createdBy,
	}
}
