package settlement

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// Store is the unit of work for the settlement engines.
//
// Atomic runs fn inside one transaction: every write fn performs commits
// together or not at all. Row-lock waits inside Atomic are bounded; a wait
// that exceeds the bound surfaces as *ConcurrencyConflictError and the
// transaction is rolled back.
//
// View runs fn against a consistent read snapshot. Writes are not allowed.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction
type Tx interface {
	Parties() PartyRepository
	Documents() DocumentRepository
	Payments() PaymentRepository
	Allocations() AllocationRepository
	Periods() PeriodRepository
	Cheques() ChequeRepository
	Events() EventRecorder
}

// EventRecorder writes domain events to the outbox inside the current transaction
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// PartyRepository persists parties
type PartyRepository interface {
	Create(ctx context.Context, party *Party) error

	// Update saves the party with a version check
	Update(ctx context.Context, party *Party) error

	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Party, error)

	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Party, error)

	// FindByLinkable finds the party linked to an internal entity
	FindByLinkable(ctx context.Context, companyID uuid.UUID, ref LinkableRef) (*Party, error)
}

// DocumentRepository persists documents. All lookups are company-scoped;
// a document of another company is reported as not found.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error

	// Update saves the document with a version check and bumps Version
	Update(ctx context.Context, doc *Document) error

	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Document, error)

	// FindByIDForUpdate loads and row-locks a document
	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Document, error)

	// FindByIDsForUpdate loads and row-locks documents in ascending id order.
	// Missing ids are reported as *NotFoundError.
	FindByIDsForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Document, error)

	// FindOpen lists pending and partial documents of a party in one
	// direction, oldest due date first with id as tie breaker
	FindOpen(ctx context.Context, companyID, partyID uuid.UUID, direction DocumentDirection) ([]*Document, error)

	// FindOpenDueBetween lists open documents due in [from, to]
	FindOpenDueBetween(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]*Document, error)

	// HasActiveReversal reports whether a non-cancelled reversal exists
	HasActiveReversal(ctx context.Context, companyID, originalID uuid.UUID) (bool, error)

	List(ctx context.Context, companyID uuid.UUID, filter DocumentFilter) (DocumentPage, error)
}

// DocumentPage is one page of a document listing
type DocumentPage = shared.Paginated[*Document]

// DocumentFilter narrows document listings
type DocumentFilter struct {
	shared.Filter
	PartyID   *uuid.UUID
	Type      *DocumentType
	Direction *DocumentDirection
	Status    *DocumentStatus
	DueFrom   *time.Time
	DueTo     *time.Time
}

// PaymentRepository persists payments
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error

	Update(ctx context.Context, p *Payment) error

	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)

	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Payment, error)

	// FindConfirmedByAccount lists confirmed payments touching the account
	// (as source or destination) dated on or before asOf
	FindConfirmedByAccount(ctx context.Context, companyID uuid.UUID, account AccountRef, asOf time.Time) ([]*Payment, error)

	// FindUnallocated lists confirmed payments of a party with money left to allocate
	FindUnallocated(ctx context.Context, companyID, partyID uuid.UUID) ([]*Payment, error)
}

// AllocationRepository persists allocations. Rows are never updated.
type AllocationRepository interface {
	Create(ctx context.Context, allocs ...*Allocation) error

	Delete(ctx context.Context, id uuid.UUID) error

	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Allocation, error)

	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Allocation, error)

	FindByDocument(ctx context.Context, documentID uuid.UUID) ([]*Allocation, error)
}

// PeriodRepository persists accounting periods
type PeriodRepository interface {
	// Find returns the period, or nil when it was never referenced
	Find(ctx context.Context, key PeriodKey) (*AccountingPeriod, error)

	// Ensure inserts an open period if none exists and returns the stored row
	Ensure(ctx context.Context, key PeriodKey, now time.Time) (*AccountingPeriod, error)

	// EnsureForUpdate is Ensure followed by a row lock on the period
	EnsureForUpdate(ctx context.Context, key PeriodKey, now time.Time) (*AccountingPeriod, error)

	Update(ctx context.Context, p *AccountingPeriod) error

	ListByYear(ctx context.Context, companyID uuid.UUID, year int) ([]*AccountingPeriod, error)
}

// ChequeRepository persists cheques
type ChequeRepository interface {
	Create(ctx context.Context, c *Cheque) error

	Update(ctx context.Context, c *Cheque) error

	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Cheque, error)

	FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Cheque, error)

	// FindByDocumentIDs returns cheques keyed by document id
	FindByDocumentIDs(ctx context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]*Cheque, error)
}
