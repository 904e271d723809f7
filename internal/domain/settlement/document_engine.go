package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentEngine creates, posts, cancels and reverses documents.
// Status after creation is only moved by allocation recomputation.
type DocumentEngine struct {
	*engineCore
	periods *PeriodGuard
}

// Create validates and stores a document in pending (or draft) status
func (e *DocumentEngine) Create(ctx context.Context, in CreateDocumentInput) (*Document, error) {
	if in.Type.IsCheque() {
		return nil, NewValidationError("type", "cheque documents are created by receiving or issuing a cheque")
	}
	in.Currency = e.currencyOr(in.Currency)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out *Document
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		d, err := e.createInTx(ctx, tx, in, nil)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *DocumentEngine) createInTx(ctx context.Context, tx Tx, in CreateDocumentInput, reversalOf *uuid.UUID) (*Document, error) {
	in.Currency = e.currencyOr(in.Currency)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := e.requireActiveParty(ctx, tx, in.CompanyID, in.PartyID); err != nil {
		return nil, err
	}
	if err := e.periods.AssertOpenAt(ctx, tx, in.CompanyID, in.DocumentDate); err != nil {
		return nil, err
	}
	d := newDocument(in, reversalOf, e.actorOf(ctx), e.clock.Now())
	if err := tx.Documents().Create(ctx, d); err != nil {
		return nil, err
	}
	return d, flush(ctx, tx, d)
}

func (e *DocumentEngine) requireActiveParty(ctx context.Context, tx Tx, companyID, partyID uuid.UUID) error {
	p, err := tx.Parties().FindByID(ctx, companyID, partyID)
	if err != nil {
		if isNotFound(err) {
			return NewValidationError("party_id", "party "+partyID.String()+" does not exist")
		}
		return err
	}
	if !p.Active {
		return NewValidationError("party_id", "party "+partyID.String()+" is inactive")
	}
	return nil
}

// Post moves a draft document to pending
func (e *DocumentEngine) Post(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	var out *Document
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.Documents().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if err := e.periods.AssertOpen(ctx, tx, d.Period()); err != nil {
			return err
		}
		if err := d.post(e.actorOf(ctx), e.clock.Now()); err != nil {
			return err
		}
		if err := tx.Documents().Update(ctx, d); err != nil {
			return err
		}
		out = d
		return flush(ctx, tx, d)
	})
	return out, err
}

// Cancel cancels a document that carries no allocations.
// Cheque documents are cancelled through the cheque engine.
func (e *DocumentEngine) Cancel(ctx context.Context, companyID, id uuid.UUID, reason string) (*Document, error) {
	var out *Document
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.Documents().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if d.Type().IsCheque() {
			return NewValidationError("type", "cheque documents are cancelled through the cheque")
		}
		out = d
		return e.cancelInTx(ctx, tx, d, reason)
	})
	return out, err
}

// cancelInTx expects d to be locked by the caller
func (e *DocumentEngine) cancelInTx(ctx context.Context, tx Tx, d *Document, reason string) error {
	if d.Status().IsTerminal() {
		return &DocumentNotOpenError{DocumentID: d.ID, Status: d.Status()}
	}
	if d.AllocatedAmount().IsPositive() {
		return &HasActiveAllocationsError{Entity: "document", ID: d.ID, Allocated: d.AllocatedAmount()}
	}
	if err := e.periods.AssertOpen(ctx, tx, d.Period()); err != nil {
		return err
	}
	if err := d.cancel(reason, e.actorOf(ctx), e.clock.Now()); err != nil {
		return err
	}
	if err := tx.Documents().Update(ctx, d); err != nil {
		return err
	}
	return flush(ctx, tx, d)
}

// Reverse creates the offsetting document dated reversalDate. The original
// is left untouched until the reversal is fully settled.
func (e *DocumentEngine) Reverse(ctx context.Context, companyID, id uuid.UUID, reversalDate time.Time) (*Document, error) {
	if reversalDate.IsZero() {
		return nil, NewValidationError("reversal_date", "is required")
	}
	var out *Document
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		orig, err := tx.Documents().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch orig.Status() {
		case DocumentStatusDraft, DocumentStatusCancelled, DocumentStatusReversed:
			return &DocumentNotOpenError{DocumentID: orig.ID, Status: orig.Status()}
		}
		if orig.Type().IsCheque() {
			return NewValidationError("type", "cheque documents cannot be reversed")
		}
		if orig.IsReversal() {
			return NewValidationError("id", "a reversal document cannot be reversed")
		}
		if dateOnly(reversalDate).Before(orig.DocumentDate()) {
			return NewValidationError("reversal_date", "must not be before the original document date")
		}
		exists, err := tx.Documents().HasActiveReversal(ctx, companyID, orig.ID)
		if err != nil {
			return err
		}
		if exists {
			return NewValidationError("id", "document "+orig.ID.String()+" already has an active reversal")
		}
		in := CreateDocumentInput{
			CompanyID:    orig.CompanyID,
			BranchID:     orig.BranchID,
			Type:         orig.Type().Counterpart(),
			PartyID:      orig.PartyID(),
			Number:       reversalNumber(orig.Number),
			DocumentDate: reversalDate,
			DueDate:      reversalDate,
			TotalAmount:  orig.TotalAmount(),
			Currency:     orig.Currency(),
			Notes:        "Reversal of " + orig.ID.String(),
		}
		origID := orig.ID
		rev, err := e.createInTx(ctx, tx, in, &origID)
		if err != nil {
			return err
		}
		orig.AddDomainEvent(NewDocumentReversedEvent(orig, rev, e.clock.Now()))
		out = rev
		return flush(ctx, tx, orig)
	})
	return out, err
}

func reversalNumber(number string) string {
	if number == "" {
		return ""
	}
	n := "REV-" + number
	if len(n) > 50 {
		n = n[:50]
	}
	return n
}

// Get returns a document
func (e *DocumentEngine) Get(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	var out *Document
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Documents().FindByID(ctx, companyID, id)
		return err
	})
	return out, err
}

// ListOpenByParty lists the open documents of a party in one direction,
// oldest due date first
func (e *DocumentEngine) ListOpenByParty(ctx context.Context, companyID, partyID uuid.UUID, direction DocumentDirection) ([]*Document, error) {
	if !direction.IsValid() {
		return nil, NewValidationError("direction", "must be payable or receivable")
	}
	var out []*Document
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Documents().FindOpen(ctx, companyID, partyID, direction)
		return err
	})
	return out, err
}

// List pages through documents
func (e *DocumentEngine) List(ctx context.Context, companyID uuid.UUID, filter DocumentFilter) (*DocumentPage, error) {
	var out *DocumentPage
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		page, err := tx.Documents().List(ctx, companyID, filter)
		if err != nil {
			return err
		}
		out = &page
		return nil
	})
	return out, err
}
