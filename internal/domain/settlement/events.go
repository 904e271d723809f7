package settlement

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type names used in events
const (
	AggregateTypeDocument = "Document"
	AggregateTypePayment  = "Payment"
	AggregateTypeCheque   = "Cheque"
	AggregateTypePeriod   = "AccountingPeriod"
)

// Event type names
const (
	EventTypeDocumentCreated       = "DocumentCreated"
	EventTypeDocumentStatusChanged = "DocumentStatusChanged"
	EventTypeDocumentCancelled     = "DocumentCancelled"
	EventTypeDocumentReversed      = "DocumentReversed"
	EventTypePaymentCreated        = "PaymentCreated"
	EventTypePaymentConfirmed      = "PaymentConfirmed"
	EventTypePaymentCancelled      = "PaymentCancelled"
	EventTypePaymentAllocated      = "PaymentAllocated"
	EventTypePaymentDeallocated    = "PaymentDeallocated"
	EventTypeChequeStatusChanged   = "ChequeStatusChanged"
	EventTypePeriodLocked          = "AccountingPeriodLocked"
	EventTypePeriodUnlocked        = "AccountingPeriodUnlocked"
)

// DocumentCreatedEvent is raised when a document is recorded
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentID   uuid.UUID         `json:"document_id"`
	Type         DocumentType      `json:"type"`
	Direction    DocumentDirection `json:"direction"`
	PartyID      uuid.UUID         `json:"party_id"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	DocumentDate time.Time         `json:"document_date"`
	DueDate      time.Time         `json:"due_date"`
	ReversalOfID *uuid.UUID        `json:"reversal_of_id,omitempty"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(d *Document, at time.Time) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCreated, AggregateTypeDocument, d.ID, d.CompanyID, at),
		DocumentID:      d.ID,
		Type:            d.docType,
		Direction:       d.direction,
		PartyID:         d.partyID,
		TotalAmount:     d.totalAmount,
		DocumentDate:    d.documentDate,
		DueDate:         d.dueDate,
		ReversalOfID:    d.reversalOfID,
	}
}

// DocumentStatusChangedEvent is raised whenever a document's settlement status moves
type DocumentStatusChangedEvent struct {
	shared.BaseDomainEvent
	DocumentID      uuid.UUID       `json:"document_id"`
	From            DocumentStatus  `json:"from"`
	To              DocumentStatus  `json:"to"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
}

// NewDocumentStatusChangedEvent creates a new DocumentStatusChangedEvent
func NewDocumentStatusChangedEvent(d *Document, from, to DocumentStatus, at time.Time) *DocumentStatusChangedEvent {
	return &DocumentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentStatusChanged, AggregateTypeDocument, d.ID, d.CompanyID, at),
		DocumentID:      d.ID,
		From:            from,
		To:              to,
		AllocatedAmount: d.allocatedAmount,
	}
}

// DocumentCancelledEvent is raised when a document is cancelled
type DocumentCancelledEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID `json:"document_id"`
	Reason     string    `json:"reason"`
}

// NewDocumentCancelledEvent creates a new DocumentCancelledEvent
func NewDocumentCancelledEvent(d *Document, reason string, at time.Time) *DocumentCancelledEvent {
	return &DocumentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCancelled, AggregateTypeDocument, d.ID, d.CompanyID, at),
		DocumentID:      d.ID,
		Reason:          reason,
	}
}

// DocumentReversedEvent is raised when an offsetting document is created
type DocumentReversedEvent struct {
	shared.BaseDomainEvent
	OriginalID   uuid.UUID `json:"original_id"`
	ReversalID   uuid.UUID `json:"reversal_id"`
	ReversalDate time.Time `json:"reversal_date"`
}

// NewDocumentReversedEvent creates a new DocumentReversedEvent
func NewDocumentReversedEvent(original, reversal *Document, at time.Time) *DocumentReversedEvent {
	return &DocumentReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentReversed, AggregateTypeDocument, original.ID, original.CompanyID, at),
		OriginalID:      original.ID,
		ReversalID:      reversal.ID,
		ReversalDate:    reversal.documentDate,
	}
}

// PaymentCreatedEvent is raised when a payment is recorded
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID        `json:"payment_id"`
	Type        PaymentType      `json:"type"`
	Direction   PaymentDirection `json:"direction"`
	Amount      decimal.Decimal  `json:"amount"`
	PaymentDate time.Time        `json:"payment_date"`
}

// NewPaymentCreatedEvent creates a new PaymentCreatedEvent
func NewPaymentCreatedEvent(p *Payment, at time.Time) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCreated, AggregateTypePayment, p.ID, p.CompanyID, at),
		PaymentID:       p.ID,
		Type:            p.payType,
		Direction:       p.direction,
		Amount:          p.amount,
		PaymentDate:     p.paymentDate,
	}
}

// PaymentConfirmedEvent is raised when a payment becomes allocatable
type PaymentConfirmedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewPaymentConfirmedEvent creates a new PaymentConfirmedEvent
func NewPaymentConfirmedEvent(p *Payment, at time.Time) *PaymentConfirmedEvent {
	return &PaymentConfirmedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentConfirmed, AggregateTypePayment, p.ID, p.CompanyID, at),
		PaymentID:       p.ID,
		Amount:          p.amount,
	}
}

// PaymentCancelledEvent is raised when a payment is cancelled
type PaymentCancelledEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

// NewPaymentCancelledEvent creates a new PaymentCancelledEvent
func NewPaymentCancelledEvent(p *Payment, reason string, at time.Time) *PaymentCancelledEvent {
	return &PaymentCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCancelled, AggregateTypePayment, p.ID, p.CompanyID, at),
		PaymentID:       p.ID,
		Reason:          reason,
	}
}

// AllocationSnapshot is the event form of an allocation row
type AllocationSnapshot struct {
	AllocationID uuid.UUID       `json:"allocation_id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// PaymentAllocatedEvent is raised once per allocate batch
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID         uuid.UUID            `json:"payment_id"`
	Currency          string               `json:"currency"`
	Allocations       []AllocationSnapshot `json:"allocations"`
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"`
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(p *Payment, allocs []*Allocation, at time.Time) *PaymentAllocatedEvent {
	snaps := make([]AllocationSnapshot, 0, len(allocs))
	for _, a := range allocs {
		snaps = append(snaps, AllocationSnapshot{AllocationID: a.ID, DocumentID: a.DocumentID, Amount: a.Amount})
	}
	return &PaymentAllocatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypePaymentAllocated, AggregateTypePayment, p.ID, p.CompanyID, at),
		PaymentID:         p.ID,
		Currency:          p.currency,
		Allocations:       snaps,
		UnallocatedAmount: p.unallocatedAmount,
	}
}

// PaymentDeallocatedEvent is raised when an allocation is removed
type PaymentDeallocatedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID       `json:"payment_id"`
	AllocationID uuid.UUID       `json:"allocation_id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// NewPaymentDeallocatedEvent creates a new PaymentDeallocatedEvent
func NewPaymentDeallocatedEvent(p *Payment, a *Allocation, at time.Time) *PaymentDeallocatedEvent {
	return &PaymentDeallocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeallocated, AggregateTypePayment, p.ID, p.CompanyID, at),
		PaymentID:       p.ID,
		AllocationID:    a.ID,
		DocumentID:      a.DocumentID,
		Amount:          a.Amount,
	}
}

// ChequeStatusChangedEvent is raised on every cheque transition
type ChequeStatusChangedEvent struct {
	shared.BaseDomainEvent
	ChequeID     uuid.UUID    `json:"cheque_id"`
	DocumentID   uuid.UUID    `json:"document_id"`
	ChequeNumber string       `json:"cheque_number"`
	From         ChequeStatus `json:"from"`
	To           ChequeStatus `json:"to"`
}

// NewChequeStatusChangedEvent creates a new ChequeStatusChangedEvent
func NewChequeStatusChangedEvent(c *Cheque, from, to ChequeStatus, at time.Time) *ChequeStatusChangedEvent {
	return &ChequeStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeChequeStatusChanged, AggregateTypeCheque, c.ID, c.CompanyID, at),
		ChequeID:        c.ID,
		DocumentID:      c.DocumentID,
		ChequeNumber:    c.ChequeNumber,
		From:            from,
		To:              to,
	}
}

// PeriodLockedEvent is raised when a period is locked
type PeriodLockedEvent struct {
	shared.BaseDomainEvent
	Year     int       `json:"year"`
	Month    int       `json:"month"`
	LockedBy uuid.UUID `json:"locked_by"`
}

// NewPeriodLockedEvent creates a new PeriodLockedEvent
func NewPeriodLockedEvent(p *AccountingPeriod, actor uuid.UUID, at time.Time) *PeriodLockedEvent {
	return &PeriodLockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePeriodLocked, AggregateTypePeriod, p.ID, p.CompanyID, at),
		Year:            p.Year,
		Month:           p.Month,
		LockedBy:        actor,
	}
}

// PeriodUnlockedEvent is raised when a period is reopened
type PeriodUnlockedEvent struct {
	shared.BaseDomainEvent
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	UnlockedBy uuid.UUID `json:"unlocked_by"`
}

// NewPeriodUnlockedEvent creates a new PeriodUnlockedEvent
func NewPeriodUnlockedEvent(p *AccountingPeriod, actor uuid.UUID, at time.Time) *PeriodUnlockedEvent {
	return &PeriodUnlockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePeriodUnlocked, AggregateTypePeriod, p.ID, p.CompanyID, at),
		Year:            p.Year,
		Month:           p.Month,
		UnlockedBy:      actor,
	}
}

// EventFactories returns a constructor of an empty event per event type, for
// decoding outbox payloads
func EventFactories() map[string]func() shared.DomainEvent {
	return map[string]func() shared.DomainEvent{
		EventTypeDocumentCreated:       blank[DocumentCreatedEvent],
		EventTypeDocumentStatusChanged: blank[DocumentStatusChangedEvent],
		EventTypeDocumentCancelled:     blank[DocumentCancelledEvent],
		EventTypeDocumentReversed:      blank[DocumentReversedEvent],
		EventTypePaymentCreated:        blank[PaymentCreatedEvent],
		EventTypePaymentConfirmed:      blank[PaymentConfirmedEvent],
		EventTypePaymentCancelled:      blank[PaymentCancelledEvent],
		EventTypePaymentAllocated:      blank[PaymentAllocatedEvent],
		EventTypePaymentDeallocated:    blank[PaymentDeallocatedEvent],
		EventTypeChequeStatusChanged:   blank[ChequeStatusChangedEvent],
		EventTypePeriodLocked:          blank[PeriodLockedEvent],
		EventTypePeriodUnlocked:        blank[PeriodUnlockedEvent],
	}
}

func blank[T any, P interface {
	*T
	shared.DomainEvent
}]() shared.DomainEvent {
	return P(new(T))
}
