package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChequeEngine drives the cheque custody machine. Collect is the one place
// where the cheque machine reaches into the settlement machine.
type ChequeEngine struct {
	*engineCore
	periods     *PeriodGuard
	documents   *DocumentEngine
	payments    *PaymentEngine
	allocations *AllocationEngine
}

// ChequeResult pairs a cheque with its document and, after collection, the payment
type ChequeResult struct {
	Cheque   *Cheque
	Document *Document
	Payment  *Payment
}

// Receive records a customer cheque taken into the portfolio
func (e *ChequeEngine) Receive(ctx context.Context, in ChequeInput) (*ChequeResult, error) {
	if in.PendingIssue {
		return nil, NewValidationError("pending_issue", "only issued cheques can be pending issue")
	}
	return e.create(ctx, in, DocumentTypeChequeReceivable, ChequeStatusInPortfolio)
}

// Issue records a cheque written to a supplier. With PendingIssue the
// cheque is prepared but not yet handed over.
func (e *ChequeEngine) Issue(ctx context.Context, in ChequeInput) (*ChequeResult, error) {
	status := ChequeStatusInPortfolio
	if in.PendingIssue {
		status = ChequeStatusPendingIssue
	}
	return e.create(ctx, in, DocumentTypeChequePayable, status)
}

func (e *ChequeEngine) create(ctx context.Context, in ChequeInput, t DocumentType, status ChequeStatus) (*ChequeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	docIn := in.documentInput(t)
	docIn.Currency = e.currencyOr(docIn.Currency)
	if err := docIn.Validate(); err != nil {
		return nil, err
	}
	var out *ChequeResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := e.documents.createInTx(ctx, tx, docIn, nil)
		if err != nil {
			return err
		}
		c := newCheque(doc, in, status, e.clock.Now())
		if err := tx.Cheques().Create(ctx, c); err != nil {
			return err
		}
		out = &ChequeResult{Cheque: c, Document: doc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Release hands over a cheque that was pending issue
func (e *ChequeEngine) Release(ctx context.Context, companyID, id uuid.UUID, date time.Time) (*ChequeResult, error) {
	return e.move(ctx, companyID, id, ChequeStatusInPortfolio, date, nil)
}

// Deposit presents the cheque to a bank account
func (e *ChequeEngine) Deposit(ctx context.Context, companyID, id uuid.UUID, depositDate time.Time, bankAccountID uuid.UUID) (*ChequeResult, error) {
	if bankAccountID == uuid.Nil {
		return nil, NewValidationError("bank_account_id", "is required")
	}
	return e.move(ctx, companyID, id, ChequeStatusDeposited, depositDate, func(ctx context.Context, tx Tx, c *Cheque, d time.Time) error {
		if d.Before(c.IssueDate) {
			return NewValidationError("deposit_date", "must not be before the issue date")
		}
		acct := bankAccountID
		c.DepositDate = &d
		c.DepositBankAccountID = &acct
		return nil
	})
}

// Bounce records a dishonoured cheque. The document is left as it was.
func (e *ChequeEngine) Bounce(ctx context.Context, companyID, id uuid.UUID, bouncedDate time.Time) (*ChequeResult, error) {
	return e.move(ctx, companyID, id, ChequeStatusBounced, bouncedDate, func(ctx context.Context, tx Tx, c *Cheque, d time.Time) error {
		c.BouncedDate = &d
		return nil
	})
}

// Endorse passes a received cheque on to another party
func (e *ChequeEngine) Endorse(ctx context.Context, companyID, id, toPartyID uuid.UUID, date time.Time) (*ChequeResult, error) {
	if toPartyID == uuid.Nil {
		return nil, NewValidationError("to_party_id", "is required")
	}
	return e.move(ctx, companyID, id, ChequeStatusEndorsed, date, func(ctx context.Context, tx Tx, c *Cheque, d time.Time) error {
		doc, err := tx.Documents().FindByID(ctx, companyID, c.DocumentID)
		if err != nil {
			return err
		}
		if doc.Type() != DocumentTypeChequeReceivable {
			return NewValidationError("id", "only received cheques can be endorsed")
		}
		if err := e.documents.requireActiveParty(ctx, tx, companyID, toPartyID); err != nil {
			return err
		}
		to := toPartyID
		c.EndorsedToPartyID = &to
		c.EndorsedDate = &d
		return nil
	})
}

// move locks the cheque, checks the edge and the period of date, applies
// the side effects and persists the transition
func (e *ChequeEngine) move(ctx context.Context, companyID, id uuid.UUID, to ChequeStatus, date time.Time, apply func(context.Context, Tx, *Cheque, time.Time) error) (*ChequeResult, error) {
	if date.IsZero() {
		return nil, NewValidationError("date", "is required")
	}
	date = dateOnly(date)
	var out *ChequeResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Cheques().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status(), to) {
			return &InvalidTransitionError{Entity: "cheque", ID: c.ID, From: string(c.Status()), To: string(to)}
		}
		if err := e.periods.AssertOpenAt(ctx, tx, companyID, date); err != nil {
			return err
		}
		if apply != nil {
			if err := apply(ctx, tx, c, date); err != nil {
				return err
			}
		}
		if err := e.save(ctx, tx, c, to); err != nil {
			return err
		}
		doc, err := tx.Documents().FindByID(ctx, companyID, c.DocumentID)
		if err != nil {
			return err
		}
		out = &ChequeResult{Cheque: c, Document: doc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ChequeEngine) save(ctx context.Context, tx Tx, c *Cheque, to ChequeStatus) error {
	if err := c.transition(to, e.clock.Now()); err != nil {
		return err
	}
	if err := tx.Cheques().Update(ctx, c); err != nil {
		return err
	}
	return flush(ctx, tx, c)
}

// Collect clears a deposited cheque: it creates a confirmed cheque payment
// on the deposit account and allocates it to the cheque's document, all in
// one transaction.
func (e *ChequeEngine) Collect(ctx context.Context, companyID, id uuid.UUID, collectedDate time.Time) (*ChequeResult, error) {
	if collectedDate.IsZero() {
		return nil, NewValidationError("collected_date", "is required")
	}
	collectedDate = dateOnly(collectedDate)
	var out *ChequeResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Cheques().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status(), ChequeStatusCollected) {
			return &InvalidTransitionError{Entity: "cheque", ID: c.ID, From: string(c.Status()), To: string(ChequeStatusCollected)}
		}
		if c.DepositDate != nil && collectedDate.Before(*c.DepositDate) {
			return NewValidationError("collected_date", "must not be before the deposit date")
		}
		if err := e.periods.AssertOpenAt(ctx, tx, companyID, collectedDate); err != nil {
			return err
		}
		doc, err := tx.Documents().FindByIDForUpdate(ctx, companyID, c.DocumentID)
		if err != nil {
			return err
		}
		if !doc.IsOpen() {
			return &DocumentNotOpenError{DocumentID: doc.ID, Status: doc.Status()}
		}

		payType := PaymentTypeChequeIn
		if doc.Direction() == DirectionPayable {
			payType = PaymentTypeChequeOut
		}
		partyID := doc.PartyID()
		p, err := e.payments.createInTx(ctx, tx, CreatePaymentInput{
			CompanyID:     companyID,
			BranchID:      doc.BranchID,
			Type:          payType,
			PartyID:       &partyID,
			BankAccountID: c.DepositBankAccountID,
			PaymentDate:   collectedDate,
			Amount:        doc.TotalAmount(),
			Currency:      doc.Currency(),
			Reference:     c.ChequeNumber,
			Notes:         "Cheque " + c.ChequeNumber + " collected",
		})
		if err != nil {
			return err
		}
		if err := e.payments.confirmInTx(ctx, tx, p); err != nil {
			return err
		}
		res, err := e.allocations.allocateInTx(ctx, tx, p, []AllocationLine{{
			DocumentID: doc.ID,
			Amount:     doc.UnpaidBalance(),
			Notes:      "cheque " + c.ChequeNumber,
		}}, c)
		if err != nil {
			return err
		}

		pid := p.ID
		c.CollectedDate = &collectedDate
		c.CollectedPaymentID = &pid
		if err := e.save(ctx, tx, c, ChequeStatusCollected); err != nil {
			return err
		}
		out = &ChequeResult{Cheque: c, Document: res.Documents[0], Payment: res.Payment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel voids a cheque that is still with the company, together with its
// document. The document's own period must be open.
func (e *ChequeEngine) Cancel(ctx context.Context, companyID, id uuid.UUID, date time.Time) (*ChequeResult, error) {
	if date.IsZero() {
		return nil, NewValidationError("date", "is required")
	}
	date = dateOnly(date)
	var out *ChequeResult
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Cheques().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status(), ChequeStatusCancelled) {
			return &InvalidTransitionError{Entity: "cheque", ID: c.ID, From: string(c.Status()), To: string(ChequeStatusCancelled)}
		}
		doc, err := tx.Documents().FindByIDForUpdate(ctx, companyID, c.DocumentID)
		if err != nil {
			return err
		}
		if err := e.documents.cancelInTx(ctx, tx, doc, "cheque "+c.ChequeNumber+" cancelled"); err != nil {
			return err
		}
		c.CancelledDate = &date
		if err := e.save(ctx, tx, c, ChequeStatusCancelled); err != nil {
			return err
		}
		out = &ChequeResult{Cheque: c, Document: doc}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a cheque with its document
func (e *ChequeEngine) Get(ctx context.Context, companyID, id uuid.UUID) (*ChequeResult, error) {
	var out *ChequeResult
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.Cheques().FindByID(ctx, companyID, id)
		if err != nil {
			return err
		}
		doc, err := tx.Documents().FindByID(ctx, companyID, c.DocumentID)
		if err != nil {
			return err
		}
		out = &ChequeResult{Cheque: c, Document: doc}
		return nil
	})
	return out, err
}
