package settlement

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document is a recorded obligation, payable or receivable.
//
// Derived fields (direction, status, allocated amount, period) and the
// fields they are derived from are unexported: only this package writes
// them, through the engines. Other packages read them through getters and
// rebuild persisted documents with RestoreDocument.
type Document struct {
	shared.CompanyAggregateRoot
	Number       string
	Notes        string
	CancelReason string
	UpdatedBy    uuid.UUID

	docType      DocumentType
	direction    DocumentDirection
	partyID      uuid.UUID
	documentDate time.Time
	dueDate      time.Time
	totalAmount  decimal.Decimal
	currency     string
	reversalOfID *uuid.UUID

	status          DocumentStatus
	allocatedAmount decimal.Decimal
	periodYear      int
	periodMonth     int
}

// CreateDocumentInput holds the caller-supplied fields of a new document
type CreateDocumentInput struct {
	CompanyID    uuid.UUID
	BranchID     *uuid.UUID
	Type         DocumentType
	Direction    DocumentDirection // optional; must match the type when set
	PartyID      uuid.UUID
	Number       string
	DocumentDate time.Time
	DueDate      time.Time
	TotalAmount  decimal.Decimal
	Currency     string
	Notes        string
	Draft        bool
}

// Validate checks the input without touching storage
func (in CreateDocumentInput) Validate() error {
	v := &ValidationError{}
	if in.CompanyID == uuid.Nil {
		v.Add("company_id", "is required")
	}
	if !in.Type.IsValid() {
		v.Add("type", "is not a valid document type")
	} else if in.Direction != "" && in.Direction != in.Type.Direction() {
		v.Add("direction", "must be "+in.Type.Direction().String()+" for "+in.Type.String())
	}
	if in.PartyID == uuid.Nil {
		v.Add("party_id", "is required")
	}
	if in.DocumentDate.IsZero() {
		v.Add("document_date", "is required")
	}
	if in.DueDate.IsZero() {
		v.Add("due_date", "is required")
	} else if !in.DocumentDate.IsZero() && dateOnly(in.DueDate).Before(dateOnly(in.DocumentDate)) {
		v.Add("due_date", "must not be before document_date")
	}
	if !in.TotalAmount.IsPositive() {
		v.Add("total_amount", "must be greater than zero")
	}
	if in.Currency != "" && len(in.Currency) != 3 {
		v.Add("currency", "must be a 3-letter ISO code")
	}
	if len(in.Number) > 50 {
		v.Add("number", "must be at most 50 characters")
	}
	return v.OrNil()
}

func newDocument(in CreateDocumentInput, reversalOf *uuid.UUID, actor uuid.UUID, now time.Time) *Document {
	status := DocumentStatusPending
	if in.Draft {
		status = DocumentStatusDraft
	}
	d := &Document{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(in.CompanyID, in.BranchID, actor, now),
		Number:               strings.TrimSpace(in.Number),
		Notes:                in.Notes,
		UpdatedBy:            actor,
		docType:              in.Type,
		direction:            in.Type.Direction(),
		partyID:              in.PartyID,
		documentDate:         dateOnly(in.DocumentDate),
		dueDate:              dateOnly(in.DueDate),
		totalAmount:          in.TotalAmount,
		currency:             strings.ToUpper(in.Currency),
		status:               status,
		allocatedAmount:      decimal.Zero,
		reversalOfID:         reversalOf,
	}
	key := PeriodOf(in.CompanyID, d.documentDate)
	d.periodYear, d.periodMonth = key.Year, key.Month
	d.AddDomainEvent(NewDocumentCreatedEvent(d, now))
	return d
}

// DocumentState is the persisted shape of a document
type DocumentState struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	BranchID        *uuid.UUID
	Number          string
	Type            DocumentType
	Direction       DocumentDirection
	PartyID         uuid.UUID
	DocumentDate    time.Time
	DueDate         time.Time
	TotalAmount     decimal.Decimal
	AllocatedAmount decimal.Decimal
	Currency        string
	Status          DocumentStatus
	PeriodYear      int
	PeriodMonth     int
	ReversalOfID    *uuid.UUID
	CancelReason    string
	Notes           string
	CreatedBy       uuid.UUID
	UpdatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// RestoreDocument rebuilds a document from its persisted state
func RestoreDocument(s DocumentState) *Document {
	d := &Document{
		Number:          s.Number,
		Notes:           s.Notes,
		CancelReason:    s.CancelReason,
		UpdatedBy:       s.UpdatedBy,
		docType:         s.Type,
		direction:       s.Direction,
		partyID:         s.PartyID,
		documentDate:    s.DocumentDate,
		dueDate:         s.DueDate,
		totalAmount:     s.TotalAmount,
		currency:        s.Currency,
		reversalOfID:    s.ReversalOfID,
		status:          s.Status,
		allocatedAmount: s.AllocatedAmount,
		periodYear:      s.PeriodYear,
		periodMonth:     s.PeriodMonth,
	}
	d.ID = s.ID
	d.CompanyID = s.CompanyID
	d.BranchID = s.BranchID
	d.CreatedBy = s.CreatedBy
	d.CreatedAt = s.CreatedAt
	d.UpdatedAt = s.UpdatedAt
	d.Version = s.Version
	return d
}

// State returns the persisted shape of the document
func (d *Document) State() DocumentState {
	return DocumentState{
		ID:              d.ID,
		CompanyID:       d.CompanyID,
		BranchID:        d.BranchID,
		Number:          d.Number,
		Type:            d.docType,
		Direction:       d.direction,
		PartyID:         d.partyID,
		DocumentDate:    d.documentDate,
		DueDate:         d.dueDate,
		TotalAmount:     d.totalAmount,
		AllocatedAmount: d.allocatedAmount,
		Currency:        d.currency,
		Status:          d.status,
		PeriodYear:      d.periodYear,
		PeriodMonth:     d.periodMonth,
		ReversalOfID:    d.reversalOfID,
		CancelReason:    d.CancelReason,
		Notes:           d.Notes,
		CreatedBy:       d.CreatedBy,
		UpdatedBy:       d.UpdatedBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Version:         d.Version,
	}
}

func (d *Document) Type() DocumentType               { return d.docType }
func (d *Document) Direction() DocumentDirection     { return d.direction }
func (d *Document) PartyID() uuid.UUID               { return d.partyID }
func (d *Document) DocumentDate() time.Time          { return d.documentDate }
func (d *Document) DueDate() time.Time               { return d.dueDate }
func (d *Document) TotalAmount() decimal.Decimal     { return d.totalAmount }
func (d *Document) AllocatedAmount() decimal.Decimal { return d.allocatedAmount }
func (d *Document) Currency() string                 { return d.currency }
func (d *Document) Status() DocumentStatus           { return d.status }
func (d *Document) ReversalOfID() *uuid.UUID         { return d.reversalOfID }
func (d *Document) Period() PeriodKey                { return PeriodKey{d.CompanyID, d.periodYear, d.periodMonth} }
func (d *Document) UnpaidBalance() decimal.Decimal   { return d.totalAmount.Sub(d.allocatedAmount) }
func (d *Document) IsReversal() bool                 { return d.reversalOfID != nil }
func (d *Document) IsOpen() bool                     { return d.status.IsOpen() }

// post moves a draft to pending
func (d *Document) post(actor uuid.UUID, now time.Time) error {
	if d.status != DocumentStatusDraft {
		return &InvalidTransitionError{Entity: "document", ID: d.ID, From: string(d.status), To: string(DocumentStatusPending)}
	}
	d.setStatus(DocumentStatusPending, actor, now)
	return nil
}

// cancel marks the document cancelled; allocations must be removed first
func (d *Document) cancel(reason string, actor uuid.UUID, now time.Time) error {
	if d.status.IsTerminal() {
		return &DocumentNotOpenError{DocumentID: d.ID, Status: d.status}
	}
	if d.allocatedAmount.IsPositive() {
		return &HasActiveAllocationsError{Entity: "document", ID: d.ID, Allocated: d.allocatedAmount}
	}
	d.CancelReason = reason
	d.setStatus(DocumentStatusCancelled, actor, now)
	d.AddDomainEvent(NewDocumentCancelledEvent(d, reason, now))
	return nil
}

// markReversed is called once the offsetting document is settled
func (d *Document) markReversed(actor uuid.UUID, now time.Time) {
	if d.status == DocumentStatusReversed {
		return
	}
	d.setStatus(DocumentStatusReversed, actor, now)
}

// applyAllocationTotal stores the new allocated sum and recomputes status.
// It is the only writer of allocatedAmount.
func (d *Document) applyAllocationTotal(allocated decimal.Decimal, actor uuid.UUID, now time.Time) {
	d.allocatedAmount = allocated
	d.UpdatedBy = actor
	d.Touch(now)
	d.recomputeStatus(actor, now)
}

// recomputeStatus derives status from the allocated sum using exact decimal
// comparison. Draft, cancelled and reversed are never overwritten.
func (d *Document) recomputeStatus(actor uuid.UUID, now time.Time) {
	if d.status.IsTerminal() || d.status == DocumentStatusDraft {
		return
	}
	next := statusForAllocation(d.allocatedAmount, d.totalAmount)
	if next != d.status {
		d.setStatus(next, actor, now)
	}
}

func statusForAllocation(allocated, total decimal.Decimal) DocumentStatus {
	switch {
	case allocated.Equal(total):
		return DocumentStatusSettled
	case allocated.IsPositive():
		return DocumentStatusPartial
	default:
		return DocumentStatusPending
	}
}

func (d *Document) setStatus(next DocumentStatus, actor uuid.UUID, now time.Time) {
	prev := d.status
	d.status = next
	d.UpdatedBy = actor
	d.Touch(now)
	d.AddDomainEvent(NewDocumentStatusChangedEvent(d, prev, next, now))
}

func dateOnly(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
