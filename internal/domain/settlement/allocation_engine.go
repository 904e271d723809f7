package settlement

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationEngine links payments to documents and keeps both sides'
// derived amounts and statuses in step with the allocation rows
type AllocationEngine struct {
	*engineCore
	periods *PeriodGuard
}

// AllocationResult is the state after an allocate or deallocate call
type AllocationResult struct {
	Payment     *Payment
	Documents   []*Document
	Allocations []*Allocation
}

// Allocate applies the lines to a confirmed payment in one transaction.
// Either every line is applied or none is.
func (e *AllocationEngine) Allocate(ctx context.Context, companyID, paymentID uuid.UUID, lines []AllocationLine) (*AllocationResult, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	var out *AllocationResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		out, err = e.allocateInTx(ctx, tx, p, lines, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// allocateInTx runs the allocation algorithm against a payment the caller
// has already locked. Target documents are locked here in id order.
// collecting is the cheque being cleared when Collect is the caller.
func (e *AllocationEngine) allocateInTx(ctx context.Context, tx Tx, p *Payment, lines []AllocationLine, collecting *Cheque) (*AllocationResult, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	if p.Status() != PaymentStatusConfirmed {
		return nil, NewValidationError("payment_id", "payment "+p.ID.String()+" is "+p.Status().String()+", only confirmed payments can be allocated")
	}
	if p.Type().IsInternalTransfer() || p.PartyID() == nil {
		return nil, NewValidationError("payment_id", "transfers between own accounts cannot be allocated")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.DocumentID)
	}
	sortByID(ids)
	docs, err := tx.Documents().FindByIDsForUpdate(ctx, p.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &NotFoundError{Entity: "document", ID: id.String()}
		}
	}

	if err := checkAllocationTargets(p, docs); err != nil {
		return nil, err
	}
	if err := checkChequeCustody(ctx, tx, docs, collecting); err != nil {
		return nil, err
	}
	keys := make([]PeriodKey, 0, len(docs)+1)
	keys = append(keys, p.Period())
	for _, d := range docs {
		keys = append(keys, d.Period())
	}
	if err := e.periods.assertAll(ctx, tx, keys...); err != nil {
		return nil, err
	}
	if err := checkAllocationAmounts(p, byID, lines); err != nil {
		return nil, err
	}

	actor, now := e.actorOf(ctx), e.clock.Now()
	allocs := make([]*Allocation, 0, len(lines))
	for _, l := range lines {
		allocs = append(allocs, newAllocation(p, l, actor, now))
	}
	if err := tx.Allocations().Create(ctx, allocs...); err != nil {
		return nil, err
	}
	if err := e.recompute(ctx, tx, p, docs); err != nil {
		return nil, err
	}
	p.AddDomainEvent(NewPaymentAllocatedEvent(p, allocs, now))
	if err := e.persist(ctx, tx, p, docs); err != nil {
		return nil, err
	}
	return &AllocationResult{Payment: p, Documents: docs, Allocations: allocs}, nil
}

// checkAllocationTargets applies the per-document rules in order:
// open status, direction, then party and currency
func checkAllocationTargets(p *Payment, docs []*Document) error {
	for _, d := range docs {
		if !d.IsOpen() {
			return &DocumentNotOpenError{DocumentID: d.ID, Status: d.Status()}
		}
		if !Compatible(d.Direction(), p.Direction()) {
			return &DirectionMismatchError{DocumentID: d.ID, DocumentDirection: d.Direction(), PaymentDirection: p.Direction()}
		}
		if d.PartyID() != *p.PartyID() {
			return NewValidationError("document_id", "document "+d.ID.String()+" belongs to another party")
		}
		if d.Currency() != p.Currency() {
			return NewValidationError("document_id", "document "+d.ID.String()+" is in "+d.Currency()+", payment is in "+p.Currency())
		}
	}
	return nil
}

// checkChequeCustody keeps payments off cheque documents while the cheque can
// still be collected. Those documents settle through Collect; once the
// cheque bounces or is endorsed the document takes ordinary payments.
func checkChequeCustody(ctx context.Context, tx Tx, docs []*Document, collecting *Cheque) error {
	held, err := chequesInCustody(ctx, tx, docs)
	if err != nil {
		return err
	}
	for _, d := range docs {
		c, ok := held[d.ID]
		if !ok || (collecting != nil && collecting.ID == c.ID) {
			continue
		}
		return NewValidationError("document_id", fmt.Sprintf(
			"document %s belongs to cheque %s which is %s; it is settled by collecting the cheque", d.ID, c.ChequeNumber, c.Status()))
	}
	return nil
}

// chequesInCustody returns, keyed by document id, the cheques of docs that
// are on their way to collection
func chequesInCustody(ctx context.Context, tx Tx, docs []*Document) (map[uuid.UUID]*Cheque, error) {
	var ids []uuid.UUID
	for _, d := range docs {
		if d.Type().IsCheque() {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	cheques, err := tx.Cheques().FindByDocumentIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	maps.DeleteFunc(cheques, func(_ uuid.UUID, c *Cheque) bool { return !c.Status().Collectable() })
	return cheques, nil
}

func checkAllocationAmounts(p *Payment, docs map[uuid.UUID]*Document, lines []AllocationLine) error {
	requested := decimal.Zero
	for _, l := range lines {
		requested = requested.Add(l.Amount)
	}
	if requested.GreaterThan(p.UnallocatedAmount()) {
		return &InsufficientBalanceError{Subject: "payment", ID: p.ID, Available: p.UnallocatedAmount(), Requested: requested}
	}
	for _, l := range lines {
		d := docs[l.DocumentID]
		if l.Amount.GreaterThan(d.UnpaidBalance()) {
			return &InsufficientBalanceError{Subject: "document", ID: d.ID, Available: d.UnpaidBalance(), Requested: l.Amount}
		}
	}
	return nil
}

// recompute rebuilds the derived amounts of the payment and documents from
// the stored allocation rows and aborts if either side would overflow
func (e *AllocationEngine) recompute(ctx context.Context, tx Tx, p *Payment, docs []*Document) error {
	actor, now := e.actorOf(ctx), e.clock.Now()

	paymentAllocs, err := tx.Allocations().FindByPayment(ctx, p.ID)
	if err != nil {
		return err
	}
	paid := SumAllocations(paymentAllocs)
	if paid.GreaterThan(p.Amount()) {
		return &InsufficientBalanceError{Subject: "payment", ID: p.ID, Available: p.Amount(), Requested: paid}
	}
	p.recomputeUnallocated(paid, actor, now)

	for _, d := range docs {
		docAllocs, err := tx.Allocations().FindByDocument(ctx, d.ID)
		if err != nil {
			return err
		}
		allocated := SumAllocations(docAllocs)
		if allocated.GreaterThan(d.TotalAmount()) {
			return &InsufficientBalanceError{Subject: "document", ID: d.ID, Available: d.TotalAmount(), Requested: allocated}
		}
		d.applyAllocationTotal(allocated, actor, now)
	}
	return nil
}

func (e *AllocationEngine) persist(ctx context.Context, tx Tx, p *Payment, docs []*Document) error {
	if err := tx.Payments().Update(ctx, p); err != nil {
		return err
	}
	if err := flush(ctx, tx, p); err != nil {
		return err
	}
	for _, d := range docs {
		if err := tx.Documents().Update(ctx, d); err != nil {
			return err
		}
		if err := flush(ctx, tx, d); err != nil {
			return err
		}
		if err := e.markReversalSettled(ctx, tx, d); err != nil {
			return err
		}
	}
	return nil
}

// markReversalSettled flips the original to reversed once its reversal
// document is settled. The reversal must already be locked.
func (e *AllocationEngine) markReversalSettled(ctx context.Context, tx Tx, d *Document) error {
	if !d.IsReversal() || d.Status() != DocumentStatusSettled {
		return nil
	}
	orig, err := tx.Documents().FindByIDForUpdate(ctx, d.CompanyID, *d.ReversalOfID())
	if err != nil {
		return err
	}
	if orig.Status() == DocumentStatusReversed {
		return nil
	}
	orig.markReversed(e.actorOf(ctx), e.clock.Now())
	if err := tx.Documents().Update(ctx, orig); err != nil {
		return err
	}
	return flush(ctx, tx, orig)
}

// Deallocate removes one allocation and recomputes both sides
func (e *AllocationEngine) Deallocate(ctx context.Context, companyID, allocationID uuid.UUID) (*AllocationResult, error) {
	var out *AllocationResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		a, err := tx.Allocations().FindByIDForUpdate(ctx, companyID, allocationID)
		if err != nil {
			return err
		}
		p, err := tx.Payments().FindByIDForUpdate(ctx, companyID, a.PaymentID)
		if err != nil {
			return err
		}
		d, err := tx.Documents().FindByIDForUpdate(ctx, companyID, a.DocumentID)
		if err != nil {
			return err
		}
		if err := e.periods.assertAll(ctx, tx, p.Period(), d.Period()); err != nil {
			return err
		}
		if err := checkNotCollection(ctx, tx, p, d); err != nil {
			return err
		}
		if err := tx.Allocations().Delete(ctx, a.ID); err != nil {
			return err
		}
		docs := []*Document{d}
		if err := e.recompute(ctx, tx, p, docs); err != nil {
			return err
		}
		p.AddDomainEvent(NewPaymentDeallocatedEvent(p, a, e.clock.Now()))
		if err := e.persist(ctx, tx, p, docs); err != nil {
			return err
		}
		out = &AllocationResult{Payment: p, Documents: docs, Allocations: []*Allocation{a}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkNotCollection refuses to undo the allocation a cheque collection
// made. The cheque would stay collected with its document open again.
func checkNotCollection(ctx context.Context, tx Tx, p *Payment, d *Document) error {
	if !d.Type().IsCheque() {
		return nil
	}
	cheques, err := tx.Cheques().FindByDocumentIDs(ctx, []uuid.UUID{d.ID})
	if err != nil {
		return err
	}
	c, ok := cheques[d.ID]
	if !ok || c.CollectedPaymentID == nil || *c.CollectedPaymentID != p.ID {
		return nil
	}
	return NewValidationError("allocation_id", fmt.Sprintf(
		"allocation settles collected cheque %s and cannot be removed", c.ChequeNumber))
}

// Suggest proposes an oldest-due-first allocation of the payment's
// unallocated amount. Nothing is written.
func (e *AllocationEngine) Suggest(ctx context.Context, companyID, paymentID uuid.UUID) (*Suggestion, error) {
	var out *Suggestion
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Payments().FindByID(ctx, companyID, paymentID)
		if err != nil {
			return err
		}
		if p.PartyID() == nil || p.Type().IsInternalTransfer() || p.Status() == PaymentStatusCancelled {
			out = suggestOldestDueFirst(p.ID, p.UnallocatedAmount(), nil)
			return nil
		}
		docs, err := tx.Documents().FindOpen(ctx, companyID, *p.PartyID(), p.Direction().Settles())
		if err != nil {
			return err
		}
		held, err := chequesInCustody(ctx, tx, docs)
		if err != nil {
			return err
		}
		candidates := docs[:0]
		for _, d := range docs {
			if _, inCustody := held[d.ID]; !inCustody && d.Currency() == p.Currency() {
				candidates = append(candidates, d)
			}
		}
		out = suggestOldestDueFirst(p.ID, p.UnallocatedAmount(), candidates)
		return nil
	})
	return out, err
}

// ForPayment lists the allocations of a payment
func (e *AllocationEngine) ForPayment(ctx context.Context, companyID, paymentID uuid.UUID) ([]*Allocation, error) {
	var out []*Allocation
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Payments().FindByID(ctx, companyID, paymentID); err != nil {
			return err
		}
		var err error
		out, err = tx.Allocations().FindByPayment(ctx, paymentID)
		return err
	})
	return out, err
}
