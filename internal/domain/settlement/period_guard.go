package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PeriodGuard answers whether a (company, year, month) accepts writes and
// toggles the lock flag. Every mutating engine call asks it before writing.
type PeriodGuard struct {
	*engineCore
}

// IsOpen reports whether the period is open. A period that was never
// referenced is created open.
func (g *PeriodGuard) IsOpen(ctx context.Context, tx Tx, key PeriodKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	p, err := tx.Periods().Ensure(ctx, key, g.clock.Now())
	if err != nil {
		return false, err
	}
	return p.IsOpen(), nil
}

// AssertOpen returns *PeriodLockedError when the period is locked
func (g *PeriodGuard) AssertOpen(ctx context.Context, tx Tx, key PeriodKey) error {
	open, err := g.IsOpen(ctx, tx, key)
	if err != nil {
		return err
	}
	if !open {
		return &PeriodLockedError{CompanyID: key.CompanyID, Year: key.Year, Month: key.Month}
	}
	return nil
}

// AssertOpenAt guards the period an effective date falls in
func (g *PeriodGuard) AssertOpenAt(ctx context.Context, tx Tx, companyID uuid.UUID, date time.Time) error {
	return g.AssertOpen(ctx, tx, PeriodOf(companyID, dateOnly(date)))
}

// assertAll guards each distinct key once
func (g *PeriodGuard) assertAll(ctx context.Context, tx Tx, keys ...PeriodKey) error {
	seen := make(map[PeriodKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if err := g.AssertOpen(ctx, tx, k); err != nil {
			return err
		}
	}
	return nil
}

// Lock closes the period for writes. Locking a locked period is a no-op.
func (g *PeriodGuard) Lock(ctx context.Context, key PeriodKey) (*AccountingPeriod, error) {
	return g.toggle(ctx, key, func(p *AccountingPeriod, actor uuid.UUID, now time.Time) bool {
		return p.Lock(actor, now)
	})
}

// Unlock reopens the period. Unlocking an open period is a no-op.
func (g *PeriodGuard) Unlock(ctx context.Context, key PeriodKey) (*AccountingPeriod, error) {
	return g.toggle(ctx, key, func(p *AccountingPeriod, actor uuid.UUID, now time.Time) bool {
		return p.Unlock(actor, now)
	})
}

func (g *PeriodGuard) toggle(ctx context.Context, key PeriodKey, apply func(*AccountingPeriod, uuid.UUID, time.Time) bool) (*AccountingPeriod, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	actor := g.actorOf(ctx)
	var out *AccountingPeriod
	err := g.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		now := g.clock.Now()
		p, err := tx.Periods().EnsureForUpdate(ctx, key, now)
		if err != nil {
			return err
		}
		out = p
		if !apply(p, actor, now) {
			return nil
		}
		if err := tx.Periods().Update(ctx, p); err != nil {
			return err
		}
		return flush(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the period, creating it open on first reference
func (g *PeriodGuard) Get(ctx context.Context, key PeriodKey) (*AccountingPeriod, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var out *AccountingPeriod
	err := g.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		p, err := tx.Periods().Ensure(ctx, key, g.clock.Now())
		out = p
		return err
	})
	return out, err
}

// List returns the stored periods of a year ordered by month. Months never
// referenced are absent and read as open.
func (g *PeriodGuard) List(ctx context.Context, companyID uuid.UUID, year int) ([]*AccountingPeriod, error) {
	if err := (PeriodKey{CompanyID: companyID, Year: year, Month: 1}).Validate(); err != nil {
		return nil, err
	}
	var out []*AccountingPeriod
	err := g.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Periods().ListByYear(ctx, companyID, year)
		return err
	})
	return out, err
}
