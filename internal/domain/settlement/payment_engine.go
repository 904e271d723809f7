package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEngine records cash, bank and cheque movements
type PaymentEngine struct {
	*engineCore
	periods *PeriodGuard
}

// AccountBalance is the confirmed movement on one cash box or bank account
type AccountBalance struct {
	Account  AccountRef
	AsOf     time.Time
	Inflows  decimal.Decimal
	Outflows decimal.Decimal
	Balance  decimal.Decimal
	Count    int
}

// Create stores a draft payment with its whole amount unallocated
func (e *PaymentEngine) Create(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	in.Currency = e.currencyOr(in.Currency)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out *Payment
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := e.createInTx(ctx, tx, in)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *PaymentEngine) createInTx(ctx context.Context, tx Tx, in CreatePaymentInput) (*Payment, error) {
	in.Currency = e.currencyOr(in.Currency)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.PartyID != nil {
		p, err := tx.Parties().FindByID(ctx, in.CompanyID, *in.PartyID)
		if err != nil {
			if isNotFound(err) {
				return nil, NewValidationError("party_id", "party "+in.PartyID.String()+" does not exist")
			}
			return nil, err
		}
		if !p.Active {
			return nil, NewValidationError("party_id", "party "+in.PartyID.String()+" is inactive")
		}
	}
	if err := e.periods.AssertOpenAt(ctx, tx, in.CompanyID, in.PaymentDate); err != nil {
		return nil, err
	}
	p := newPayment(in, e.actorOf(ctx), e.clock.Now())
	if err := tx.Payments().Create(ctx, p); err != nil {
		return nil, err
	}
	return p, flush(ctx, tx, p)
}

// Confirm moves a draft payment to confirmed, making it allocatable
func (e *PaymentEngine) Confirm(ctx context.Context, companyID, id uuid.UUID) (*Payment, error) {
	var out *Payment
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		out = p
		return e.confirmInTx(ctx, tx, p)
	})
	return out, err
}

func (e *PaymentEngine) confirmInTx(ctx context.Context, tx Tx, p *Payment) error {
	if err := e.periods.AssertOpen(ctx, tx, p.Period()); err != nil {
		return err
	}
	if err := p.confirm(e.actorOf(ctx), e.clock.Now()); err != nil {
		return err
	}
	if err := tx.Payments().Update(ctx, p); err != nil {
		return err
	}
	return flush(ctx, tx, p)
}

// Cancel cancels a payment that carries no allocations
func (e *PaymentEngine) Cancel(ctx context.Context, companyID, id uuid.UUID, reason string) (*Payment, error) {
	var out *Payment
	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Payments().FindByIDForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		out = p
		if err := e.periods.AssertOpen(ctx, tx, p.Period()); err != nil {
			return err
		}
		if err := p.cancel(reason, e.actorOf(ctx), e.clock.Now()); err != nil {
			return err
		}
		if err := tx.Payments().Update(ctx, p); err != nil {
			return err
		}
		return flush(ctx, tx, p)
	})
	return out, err
}

// Get returns a payment
func (e *PaymentEngine) Get(ctx context.Context, companyID, id uuid.UUID) (*Payment, error) {
	var out *Payment
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Payments().FindByID(ctx, companyID, id)
		return err
	})
	return out, err
}

// AccountBalance sums confirmed payments touching the account up to asOf.
// A transfer row counts as an outflow on its source and an inflow on its
// destination; fees reduce what arrives.
func (e *PaymentEngine) AccountBalance(ctx context.Context, companyID uuid.UUID, account AccountRef, asOf time.Time) (*AccountBalance, error) {
	if account.ID == uuid.Nil {
		return nil, NewValidationError("account", "exactly one of cashbox_id or bank_account_id is required")
	}
	if asOf.IsZero() {
		asOf = e.clock.Now()
	}
	asOf = dateOnly(asOf)
	var payments []*Payment
	err := e.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		payments, err = tx.Payments().FindConfirmedByAccount(ctx, companyID, account, asOf)
		return err
	})
	if err != nil {
		return nil, err
	}
	return accountBalanceOf(account, asOf, payments), nil
}

func accountBalanceOf(account AccountRef, asOf time.Time, payments []*Payment) *AccountBalance {
	b := &AccountBalance{Account: account, AsOf: asOf, Inflows: decimal.Zero, Outflows: decimal.Zero}
	for _, p := range payments {
		if p.Status() != PaymentStatusConfirmed {
			continue
		}
		touched := false
		if p.Source() == account {
			touched = true
			if p.Direction() == PaymentIn {
				b.Inflows = b.Inflows.Add(p.NetAmount())
			} else {
				b.Outflows = b.Outflows.Add(p.Amount())
			}
		}
		if dest := p.Destination(); dest != nil && *dest == account {
			touched = true
			b.Inflows = b.Inflows.Add(p.NetAmount())
		}
		if touched {
			b.Count++
		}
	}
	b.Balance = b.Inflows.Sub(b.Outflows)
	return b
}
