package settlement

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// chequeTransitions is the custody state machine. Anything not listed is rejected.
var chequeTransitions = map[ChequeStatus][]ChequeStatus{
	ChequeStatusPendingIssue: {ChequeStatusInPortfolio, ChequeStatusCancelled},
	ChequeStatusInPortfolio:  {ChequeStatusEndorsed, ChequeStatusDeposited, ChequeStatusCancelled},
	ChequeStatusDeposited:    {ChequeStatusCollected, ChequeStatusBounced},
}

// CanTransition reports whether from -> to is an edge of the cheque machine
func CanTransition(from, to ChequeStatus) bool {
	for _, next := range chequeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Cheque is the instrument data layered on a cheque_receivable or
// cheque_payable document. Its status is a second state machine, moved only
// by the cheque engine.
type Cheque struct {
	shared.BaseAggregateRoot
	CompanyID            uuid.UUID
	DocumentID           uuid.UUID
	ChequeNumber         string
	BankName             string
	IssueDate            time.Time
	DepositDate          *time.Time
	DepositBankAccountID *uuid.UUID
	CollectedDate        *time.Time
	CollectedPaymentID   *uuid.UUID
	BouncedDate          *time.Time
	EndorsedToPartyID    *uuid.UUID
	EndorsedDate         *time.Time
	CancelledDate        *time.Time

	status ChequeStatus
}

// ChequeInput holds the fields needed to receive or issue a cheque
type ChequeInput struct {
	CompanyID    uuid.UUID
	BranchID     *uuid.UUID
	PartyID      uuid.UUID
	ChequeNumber string
	BankName     string
	IssueDate    time.Time
	DueDate      time.Time
	Amount       decimal.Decimal
	Currency     string
	Notes        string
	PendingIssue bool
}

// Validate checks the instrument fields; document fields are checked by the document engine
func (in ChequeInput) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(in.ChequeNumber) == "" {
		v.Add("cheque_number", "is required")
	}
	if len(in.ChequeNumber) > 50 {
		v.Add("cheque_number", "must be at most 50 characters")
	}
	if strings.TrimSpace(in.BankName) == "" {
		v.Add("bank_name", "is required")
	}
	if in.IssueDate.IsZero() {
		v.Add("issue_date", "is required")
	}
	return v.OrNil()
}

func (in ChequeInput) documentInput(t DocumentType) CreateDocumentInput {
	due := in.DueDate
	if due.IsZero() {
		due = in.IssueDate
	}
	return CreateDocumentInput{
		CompanyID:    in.CompanyID,
		BranchID:     in.BranchID,
		Type:         t,
		PartyID:      in.PartyID,
		Number:       strings.TrimSpace(in.ChequeNumber),
		DocumentDate: in.IssueDate,
		DueDate:      due,
		TotalAmount:  in.Amount,
		Currency:     in.Currency,
		Notes:        in.Notes,
	}
}

func newCheque(doc *Document, in ChequeInput, status ChequeStatus, now time.Time) *Cheque {
	c := &Cheque{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(now),
		CompanyID:         doc.CompanyID,
		DocumentID:        doc.ID,
		ChequeNumber:      strings.TrimSpace(in.ChequeNumber),
		BankName:          strings.TrimSpace(in.BankName),
		IssueDate:         dateOnly(in.IssueDate),
		status:            status,
	}
	return c
}

// RestoreCheque rebuilds a cheque from storage. The status is the only
// field not settable from outside this package.
func RestoreCheque(c Cheque, status ChequeStatus) *Cheque {
	c.status = status
	return &c
}

// Status returns the custody status
func (c *Cheque) Status() ChequeStatus {
	return c.status
}

// transition moves the cheque along one edge of the machine
func (c *Cheque) transition(to ChequeStatus, now time.Time) error {
	if !CanTransition(c.status, to) {
		return &InvalidTransitionError{Entity: "cheque", ID: c.ID, From: string(c.status), To: string(to)}
	}
	from := c.status
	c.status = to
	c.Touch(now)
	c.AddDomainEvent(NewChequeStatusChangedEvent(c, from, to, now))
	return nil
}
