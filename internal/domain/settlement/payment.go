package settlement

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes cash boxes from bank accounts
type AccountKind string

const (
	AccountKindCashbox     AccountKind = "cashbox"
	AccountKindBankAccount AccountKind = "bank_account"
)

// AccountRef points at a cash box or a bank account (never both)
type AccountRef struct {
	Kind AccountKind
	ID   uuid.UUID
}

// AccountFromIDs builds a reference from the xor pair used in storage and
// requests. ok is false when both or neither id is set.
func AccountFromIDs(cashboxID, bankAccountID *uuid.UUID) (AccountRef, bool) {
	hasCash := cashboxID != nil && *cashboxID != uuid.Nil
	hasBank := bankAccountID != nil && *bankAccountID != uuid.Nil
	switch {
	case hasCash && !hasBank:
		return AccountRef{Kind: AccountKindCashbox, ID: *cashboxID}, true
	case hasBank && !hasCash:
		return AccountRef{Kind: AccountKindBankAccount, ID: *bankAccountID}, true
	default:
		return AccountRef{}, false
	}
}

// IDs splits the reference back into the storage pair
func (r AccountRef) IDs() (cashboxID, bankAccountID *uuid.UUID) {
	id := r.ID
	if r.Kind == AccountKindCashbox {
		return &id, nil
	}
	return nil, &id
}

// Payment is a cash, bank or cheque movement.
// Status and unallocated amount are derived and written only by this package.
type Payment struct {
	shared.CompanyAggregateRoot
	Reference    string
	Notes        string
	CancelReason string
	ConfirmedBy  *uuid.UUID
	ConfirmedAt  *time.Time
	UpdatedBy    uuid.UUID

	payType     PaymentType
	direction   PaymentDirection
	partyID     *uuid.UUID
	source      AccountRef
	destination *AccountRef
	paymentDate time.Time
	amount      decimal.Decimal
	feeAmount   decimal.Decimal
	currency    string

	status            PaymentStatus
	unallocatedAmount decimal.Decimal
	periodYear        int
	periodMonth       int
}

// CreatePaymentInput holds the caller-supplied fields of a new payment
type CreatePaymentInput struct {
	CompanyID         uuid.UUID
	BranchID          *uuid.UUID
	Type              PaymentType
	PartyID           *uuid.UUID
	CashboxID         *uuid.UUID
	BankAccountID     *uuid.UUID
	DestCashboxID     *uuid.UUID
	DestBankAccountID *uuid.UUID
	PaymentDate       time.Time
	Amount            decimal.Decimal
	FeeAmount         decimal.Decimal
	Currency          string
	Reference         string
	Notes             string
}

// Validate checks the input without touching storage
func (in CreatePaymentInput) Validate() error {
	v := &ValidationError{}
	if in.CompanyID == uuid.Nil {
		v.Add("company_id", "is required")
	}
	if !in.Type.IsValid() {
		v.Add("type", "is not a valid payment type")
	}
	if in.PaymentDate.IsZero() {
		v.Add("payment_date", "is required")
	}
	if !in.Amount.IsPositive() {
		v.Add("amount", "must be greater than zero")
	}
	if in.FeeAmount.IsNegative() {
		v.Add("fee_amount", "must not be negative")
	} else if in.FeeAmount.GreaterThan(in.Amount) {
		v.Add("fee_amount", "must not exceed amount")
	}
	if in.Currency != "" && len(in.Currency) != 3 {
		v.Add("currency", "must be a 3-letter ISO code")
	}
	source, ok := AccountFromIDs(in.CashboxID, in.BankAccountID)
	if !ok {
		v.Add("source_account", "exactly one of cashbox_id or bank_account_id is required")
	}
	hasParty := in.PartyID != nil && *in.PartyID != uuid.Nil
	dest, hasDest := AccountFromIDs(in.DestCashboxID, in.DestBankAccountID)
	destGiven := (in.DestCashboxID != nil && *in.DestCashboxID != uuid.Nil) ||
		(in.DestBankAccountID != nil && *in.DestBankAccountID != uuid.Nil)
	if in.Type.IsInternalTransfer() {
		if hasParty {
			v.Add("party_id", "must be empty for transfers between own accounts")
		}
		if !hasDest {
			v.Add("destination_account", "exactly one of dest_cashbox_id or dest_bank_account_id is required for transfers")
		} else if ok && dest == source {
			v.Add("destination_account", "must differ from the source account")
		}
	} else if in.Type.IsValid() {
		if !hasParty {
			v.Add("party_id", "is required")
		}
		if destGiven {
			v.Add("destination_account", "is only allowed for transfers")
		}
	}
	return v.OrNil()
}

func newPayment(in CreatePaymentInput, actor uuid.UUID, now time.Time) *Payment {
	source, _ := AccountFromIDs(in.CashboxID, in.BankAccountID)
	p := &Payment{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(in.CompanyID, in.BranchID, actor, now),
		Reference:            strings.TrimSpace(in.Reference),
		Notes:                in.Notes,
		UpdatedBy:            actor,
		payType:              in.Type,
		direction:            in.Type.Direction(),
		source:               source,
		paymentDate:          dateOnly(in.PaymentDate),
		amount:               in.Amount,
		feeAmount:            in.FeeAmount,
		currency:             strings.ToUpper(in.Currency),
		status:               PaymentStatusDraft,
		unallocatedAmount:    in.Amount,
	}
	if in.PartyID != nil && *in.PartyID != uuid.Nil {
		id := *in.PartyID
		p.partyID = &id
	}
	if dest, ok := AccountFromIDs(in.DestCashboxID, in.DestBankAccountID); ok {
		p.destination = &dest
	}
	key := PeriodOf(in.CompanyID, p.paymentDate)
	p.periodYear, p.periodMonth = key.Year, key.Month
	p.AddDomainEvent(NewPaymentCreatedEvent(p, now))
	return p
}

// PaymentState is the persisted shape of a payment
type PaymentState struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	BranchID          *uuid.UUID
	Type              PaymentType
	Direction         PaymentDirection
	PartyID           *uuid.UUID
	CashboxID         *uuid.UUID
	BankAccountID     *uuid.UUID
	DestCashboxID     *uuid.UUID
	DestBankAccountID *uuid.UUID
	PaymentDate       time.Time
	Amount            decimal.Decimal
	FeeAmount         decimal.Decimal
	NetAmount         decimal.Decimal
	UnallocatedAmount decimal.Decimal
	Currency          string
	Status            PaymentStatus
	PeriodYear        int
	PeriodMonth       int
	Reference         string
	Notes             string
	CancelReason      string
	ConfirmedBy       *uuid.UUID
	ConfirmedAt       *time.Time
	CreatedBy         uuid.UUID
	UpdatedBy         uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int
}

// RestorePayment rebuilds a payment from its persisted state
func RestorePayment(s PaymentState) *Payment {
	p := &Payment{
		Reference:         s.Reference,
		Notes:             s.Notes,
		CancelReason:      s.CancelReason,
		ConfirmedBy:       s.ConfirmedBy,
		ConfirmedAt:       s.ConfirmedAt,
		UpdatedBy:         s.UpdatedBy,
		payType:           s.Type,
		direction:         s.Direction,
		partyID:           s.PartyID,
		paymentDate:       s.PaymentDate,
		amount:            s.Amount,
		feeAmount:         s.FeeAmount,
		currency:          s.Currency,
		status:            s.Status,
		unallocatedAmount: s.UnallocatedAmount,
		periodYear:        s.PeriodYear,
		periodMonth:       s.PeriodMonth,
	}
	p.source, _ = AccountFromIDs(s.CashboxID, s.BankAccountID)
	if dest, ok := AccountFromIDs(s.DestCashboxID, s.DestBankAccountID); ok {
		p.destination = &dest
	}
	p.ID = s.ID
	p.CompanyID = s.CompanyID
	p.BranchID = s.BranchID
	p.CreatedBy = s.CreatedBy
	p.CreatedAt = s.CreatedAt
	p.UpdatedAt = s.UpdatedAt
	p.Version = s.Version
	return p
}

// State returns the persisted shape of the payment
func (p *Payment) State() PaymentState {
	s := PaymentState{
		ID:                p.ID,
		CompanyID:         p.CompanyID,
		BranchID:          p.BranchID,
		Type:              p.payType,
		Direction:         p.direction,
		PartyID:           p.partyID,
		PaymentDate:       p.paymentDate,
		Amount:            p.amount,
		FeeAmount:         p.feeAmount,
		NetAmount:         p.NetAmount(),
		UnallocatedAmount: p.unallocatedAmount,
		Currency:          p.currency,
		Status:            p.status,
		PeriodYear:        p.periodYear,
		PeriodMonth:       p.periodMonth,
		Reference:         p.Reference,
		Notes:             p.Notes,
		CancelReason:      p.CancelReason,
		ConfirmedBy:       p.ConfirmedBy,
		ConfirmedAt:       p.ConfirmedAt,
		CreatedBy:         p.CreatedBy,
		UpdatedBy:         p.UpdatedBy,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
	s.CashboxID, s.BankAccountID = p.source.IDs()
	if p.destination != nil {
		s.DestCashboxID, s.DestBankAccountID = p.destination.IDs()
	}
	return s
}

func (p *Payment) Type() PaymentType                  { return p.payType }
func (p *Payment) Direction() PaymentDirection        { return p.direction }
func (p *Payment) PartyID() *uuid.UUID                { return p.partyID }
func (p *Payment) Source() AccountRef                 { return p.source }
func (p *Payment) Destination() *AccountRef           { return p.destination }
func (p *Payment) PaymentDate() time.Time             { return p.paymentDate }
func (p *Payment) Amount() decimal.Decimal            { return p.amount }
func (p *Payment) FeeAmount() decimal.Decimal         { return p.feeAmount }
func (p *Payment) NetAmount() decimal.Decimal         { return p.amount.Sub(p.feeAmount) }
func (p *Payment) UnallocatedAmount() decimal.Decimal { return p.unallocatedAmount }
func (p *Payment) AllocatedAmount() decimal.Decimal   { return p.amount.Sub(p.unallocatedAmount) }
func (p *Payment) Currency() string                   { return p.currency }
func (p *Payment) Status() PaymentStatus              { return p.status }
func (p *Payment) Period() PeriodKey                  { return PeriodKey{p.CompanyID, p.periodYear, p.periodMonth} }

// confirm moves a draft to confirmed
func (p *Payment) confirm(actor uuid.UUID, now time.Time) error {
	if p.status != PaymentStatusDraft {
		return &InvalidTransitionError{Entity: "payment", ID: p.ID, From: string(p.status), To: string(PaymentStatusConfirmed)}
	}
	p.status = PaymentStatusConfirmed
	p.ConfirmedBy = &actor
	p.ConfirmedAt = &now
	p.UpdatedBy = actor
	p.Touch(now)
	p.AddDomainEvent(NewPaymentConfirmedEvent(p, now))
	return nil
}

// cancel rejects payments that still carry allocations
func (p *Payment) cancel(reason string, actor uuid.UUID, now time.Time) error {
	if p.status == PaymentStatusCancelled {
		return &InvalidTransitionError{Entity: "payment", ID: p.ID, From: string(p.status), To: string(PaymentStatusCancelled)}
	}
	if p.unallocatedAmount.LessThan(p.amount) {
		return &HasActiveAllocationsError{Entity: "payment", ID: p.ID, Allocated: p.AllocatedAmount()}
	}
	p.status = PaymentStatusCancelled
	p.CancelReason = reason
	p.UpdatedBy = actor
	p.Touch(now)
	p.AddDomainEvent(NewPaymentCancelledEvent(p, reason, now))
	return nil
}

// recomputeUnallocated stores amount minus the allocated sum.
// It is the only writer of unallocatedAmount.
func (p *Payment) recomputeUnallocated(allocated decimal.Decimal, actor uuid.UUID, now time.Time) {
	p.unallocatedAmount = p.amount.Sub(allocated)
	p.UpdatedBy = actor
	p.Touch(now)
}
