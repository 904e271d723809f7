package settlement

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyLedger registers counterparties and reports their running balance
type PartyLedger struct {
	*engineCore
}

// PartyBalance summarizes what is still owed to and by a party.
// Net is positive when the party owes the company.
type PartyBalance struct {
	PartyID               uuid.UUID
	ReceivableOutstanding decimal.Decimal
	PayableOutstanding    decimal.Decimal
	UnallocatedIn         decimal.Decimal
	UnallocatedOut        decimal.Decimal
	Net                   decimal.Decimal
}

// Create registers a party
func (l *PartyLedger) Create(ctx context.Context, in NewPartyInput) (*Party, error) {
	actor := l.actorOf(ctx)
	p, err := NewParty(in, actor, l.clock.Now())
	if err != nil {
		return nil, err
	}
	err = l.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if p.Linkable != nil {
			existing, err := tx.Parties().FindByLinkable(ctx, p.CompanyID, *p.Linkable)
			if err != nil && !isNotFound(err) {
				return err
			}
			if existing != nil {
				return NewValidationError("linkable_id", "is already linked to party "+existing.ID.String())
			}
		}
		return tx.Parties().Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureForLinkable returns the party linked to ref, creating it when absent
func (l *PartyLedger) EnsureForLinkable(ctx context.Context, companyID uuid.UUID, ref LinkableRef, name string, partyType PartyType) (*Party, error) {
	if ref.IsZero() || strings.TrimSpace(ref.Type) == "" || ref.ID == uuid.Nil {
		return nil, NewValidationError("linkable", "type and id are required")
	}
	actor := l.actorOf(ctx)
	var out *Party
	err := l.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.Parties().FindByLinkable(ctx, companyID, ref)
		if err == nil {
			out = existing
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		p, err := NewParty(NewPartyInput{CompanyID: companyID, Name: name, Type: partyType, Linkable: &ref}, actor, l.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.Parties().Create(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// FindByLinkable returns the party linked to ref
func (l *PartyLedger) FindByLinkable(ctx context.Context, companyID uuid.UUID, ref LinkableRef) (*Party, error) {
	var out *Party
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Parties().FindByLinkable(ctx, companyID, ref)
		return err
	})
	return out, err
}

// Get returns a party
func (l *PartyLedger) Get(ctx context.Context, companyID, id uuid.UUID) (*Party, error) {
	var out *Party
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Parties().FindByID(ctx, companyID, id)
		return err
	})
	return out, err
}

// Deactivate hides the party from new documents and payments
func (l *PartyLedger) Deactivate(ctx context.Context, companyID, id uuid.UUID) (*Party, error) {
	var out *Party
	err := l.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Parties().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		out = p
		if !p.Deactivate(l.clock.Now()) {
			return nil
		}
		return tx.Parties().Update(ctx, p)
	})
	return out, err
}

// Balance totals open documents and unallocated payments of a party
func (l *PartyLedger) Balance(ctx context.Context, companyID, partyID uuid.UUID) (*PartyBalance, error) {
	b := &PartyBalance{
		PartyID:               partyID,
		ReceivableOutstanding: decimal.Zero,
		PayableOutstanding:    decimal.Zero,
		UnallocatedIn:         decimal.Zero,
		UnallocatedOut:        decimal.Zero,
	}
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Parties().FindByID(ctx, companyID, partyID); err != nil {
			return err
		}
		receivables, err := tx.Documents().FindOpen(ctx, companyID, partyID, DirectionReceivable)
		if err != nil {
			return err
		}
		for _, d := range receivables {
			b.ReceivableOutstanding = b.ReceivableOutstanding.Add(d.UnpaidBalance())
		}
		payables, err := tx.Documents().FindOpen(ctx, companyID, partyID, DirectionPayable)
		if err != nil {
			return err
		}
		for _, d := range payables {
			b.PayableOutstanding = b.PayableOutstanding.Add(d.UnpaidBalance())
		}
		payments, err := tx.Payments().FindUnallocated(ctx, companyID, partyID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Direction() == PaymentIn {
				b.UnallocatedIn = b.UnallocatedIn.Add(p.UnallocatedAmount())
			} else {
				b.UnallocatedOut = b.UnallocatedOut.Add(p.UnallocatedAmount())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.Net = b.ReceivableOutstanding.Sub(b.PayableOutstanding).Sub(b.UnallocatedIn).Add(b.UnallocatedOut)
	return b, nil
}
