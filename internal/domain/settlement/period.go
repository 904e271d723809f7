package settlement

import (
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// PeriodKey identifies an accounting period
type PeriodKey struct {
	CompanyID uuid.UUID
	Year      int
	Month     int
}

// PeriodOf derives the period key from an effective date
func PeriodOf(companyID uuid.UUID, date time.Time) PeriodKey {
	return PeriodKey{CompanyID: companyID, Year: date.Year(), Month: int(date.Month())}
}

// Validate checks the year/month range
func (k PeriodKey) Validate() error {
	v := &ValidationError{}
	if k.CompanyID == uuid.Nil {
		v.Add("company_id", "is required")
	}
	if k.Year < 1900 || k.Year > 9999 {
		v.Add("year", "must be between 1900 and 9999")
	}
	if k.Month < 1 || k.Month > 12 {
		v.Add("month", "must be between 1 and 12")
	}
	return v.OrNil()
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// AccountingPeriod is the lock flag for one (company, year, month)
type AccountingPeriod struct {
	shared.BaseAggregateRoot
	CompanyID  uuid.UUID
	Year       int
	Month      int
	Status     PeriodStatus
	LockedAt   *time.Time
	LockedBy   *uuid.UUID
	UnlockedAt *time.Time
	UnlockedBy *uuid.UUID
}

// NewAccountingPeriod creates an open period
func NewAccountingPeriod(key PeriodKey, now time.Time) *AccountingPeriod {
	return &AccountingPeriod{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		CompanyID:         key.CompanyID,
		Year:              key.Year,
		Month:             key.Month,
		Status:            PeriodStatusOpen,
	}
}

// Key returns the period key
func (p *AccountingPeriod) Key() PeriodKey {
	return PeriodKey{CompanyID: p.CompanyID, Year: p.Year, Month: p.Month}
}

// IsOpen reports whether writes are allowed
func (p *AccountingPeriod) IsOpen() bool {
	return p.Status != PeriodStatusLocked
}

// Lock locks the period. It reports false when the period was already locked.
func (p *AccountingPeriod) Lock(actor uuid.UUID, now time.Time) bool {
	if p.Status == PeriodStatusLocked {
		return false
	}
	p.Status = PeriodStatusLocked
	p.LockedAt = &now
	p.LockedBy = &actor
	p.Touch(now)
	p.AddDomainEvent(NewPeriodLockedEvent(p, actor, now))
	return true
}

// Unlock reopens the period. It reports false when the period was already open.
func (p *AccountingPeriod) Unlock(actor uuid.UUID, now time.Time) bool {
	if p.Status == PeriodStatusOpen {
		return false
	}
	p.Status = PeriodStatusOpen
	p.UnlockedAt = &now
	p.UnlockedBy = &actor
	p.Touch(now)
	p.AddDomainEvent(NewPeriodUnlockedEvent(p, actor, now))
	return true
}
