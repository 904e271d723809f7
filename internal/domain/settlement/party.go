package settlement

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// LinkableRef is a polymorphic back-reference to an internal entity
// (an employee, a bank account holder, ...). It is a type tag plus an id,
// never an owning pointer, so the party outlives the linked entity.
type LinkableRef struct {
	Type string
	ID   uuid.UUID
}

// IsZero reports whether the reference is unset
func (r LinkableRef) IsZero() bool {
	return r.Type == "" && r.ID == uuid.Nil
}

// Party is a counterparty scoped to a company and optional branch
type Party struct {
	shared.CompanyAggregateRoot
	Name     string
	Type     PartyType
	Linkable *LinkableRef
	Active   bool
}

// NewPartyInput holds the fields needed to register a party
type NewPartyInput struct {
	CompanyID uuid.UUID
	BranchID  *uuid.UUID
	Name      string
	Type      PartyType
	Linkable  *LinkableRef
}

// Validate checks the input
func (in NewPartyInput) Validate() error {
	v := &ValidationError{}
	if in.CompanyID == uuid.Nil {
		v.Add("company_id", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.Add("name", "is required")
	}
	if len(in.Name) > 200 {
		v.Add("name", "must be at most 200 characters")
	}
	if !in.Type.IsValid() {
		v.Add("type", "is not a valid party type")
	}
	if in.Linkable != nil && !in.Linkable.IsZero() {
		if strings.TrimSpace(in.Linkable.Type) == "" {
			v.Add("linkable_type", "is required when linkable_id is set")
		}
		if in.Linkable.ID == uuid.Nil {
			v.Add("linkable_id", "is required when linkable_type is set")
		}
	}
	return v.OrNil()
}

// NewParty creates an active party
func NewParty(in NewPartyInput, actor uuid.UUID, now time.Time) (*Party, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p := &Party{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(in.CompanyID, in.BranchID, actor, now),
		Name:                 strings.TrimSpace(in.Name),
		Type:                 in.Type,
		Active:               true,
	}
	if in.Linkable != nil && !in.Linkable.IsZero() {
		ref := *in.Linkable
		p.Linkable = &ref
	}
	return p, nil
}

// Deactivate marks the party inactive. Parties are never deleted.
func (p *Party) Deactivate(now time.Time) bool {
	if !p.Active {
		return false
	}
	p.Active = false
	p.Touch(now)
	return true
}
