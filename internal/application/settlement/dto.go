package settlement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar date carried as "YYYY-MM-DD"
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD"
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// datePtr returns nil for a zero time
func datePtr(t *time.Time) *Date {
	if t == nil || t.IsZero() {
		return nil
	}
	d := NewDate(*t)
	return &d
}

// =============================================================================
// Requests
// =============================================================================

// CreatePartyRequest registers a counterparty
type CreatePartyRequest struct {
	BranchID     *uuid.UUID `json:"branch_id"`
	Name         string     `json:"name" binding:"required,min=1,max=200"`
	Type         string     `json:"type" binding:"required"`
	LinkableType string     `json:"linkable_type" binding:"max=50"`
	LinkableID   *uuid.UUID `json:"linkable_id"`
}

// LinkPartyRequest returns the party linked to an internal entity, creating it if needed
type LinkPartyRequest struct {
	LinkableType string    `json:"linkable_type" binding:"required,max=50"`
	LinkableID   uuid.UUID `json:"linkable_id" binding:"required"`
	Name         string    `json:"name" binding:"required,min=1,max=200"`
	Type         string    `json:"type" binding:"required"`
}

// CreateDocumentRequest records an obligation
type CreateDocumentRequest struct {
	BranchID     *uuid.UUID      `json:"branch_id"`
	Type         string          `json:"type" binding:"required"`
	Direction    string          `json:"direction" binding:"omitempty,oneof=payable receivable"`
	PartyID      uuid.UUID       `json:"party_id" binding:"required"`
	Number       string          `json:"number" binding:"max=50"`
	DocumentDate Date            `json:"document_date"`
	DueDate      Date            `json:"due_date"`
	TotalAmount  decimal.Decimal `json:"total_amount" binding:"decimal_gt0"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	Notes        string          `json:"notes" binding:"max=2000"`
	Draft        bool            `json:"draft"`
}

// CancelRequest carries an optional reason
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ReverseDocumentRequest names the date of the counter-document
type ReverseDocumentRequest struct {
	ReversalDate Date `json:"reversal_date"`
}

// CreatePaymentRequest records a cash, bank or cheque movement
type CreatePaymentRequest struct {
	BranchID          *uuid.UUID       `json:"branch_id"`
	Type              string           `json:"type" binding:"required"`
	PartyID           *uuid.UUID       `json:"party_id"`
	CashboxID         *uuid.UUID       `json:"cashbox_id"`
	BankAccountID     *uuid.UUID       `json:"bank_account_id"`
	DestCashboxID     *uuid.UUID       `json:"dest_cashbox_id"`
	DestBankAccountID *uuid.UUID       `json:"dest_bank_account_id"`
	PaymentDate       Date             `json:"payment_date"`
	Amount            decimal.Decimal  `json:"amount" binding:"decimal_gt0"`
	FeeAmount         *decimal.Decimal `json:"fee_amount"`
	Currency          string           `json:"currency" binding:"omitempty,len=3"`
	Reference         string           `json:"reference" binding:"max=100"`
	Notes             string           `json:"notes" binding:"max=2000"`
}

// AllocationLineRequest is one {document, amount} pair
type AllocationLineRequest struct {
	DocumentID uuid.UUID       `json:"document_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Notes      string          `json:"notes" binding:"max=500"`
}

// AllocateRequest applies a payment to documents. With UseSuggestion and no
// lines, the oldest-due-first suggestion is applied.
type AllocateRequest struct {
	Lines         []AllocationLineRequest `json:"lines" binding:"omitempty,dive"`
	UseSuggestion bool                    `json:"use_suggestion"`
}

// ChequeRequest receives or issues a cheque
type ChequeRequest struct {
	BranchID     *uuid.UUID      `json:"branch_id"`
	PartyID      uuid.UUID       `json:"party_id" binding:"required"`
	ChequeNumber string          `json:"cheque_number" binding:"required,max=50"`
	BankName     string          `json:"bank_name" binding:"required,max=100"`
	IssueDate    Date            `json:"issue_date"`
	DueDate      Date            `json:"due_date"`
	Amount       decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	Notes        string          `json:"notes" binding:"max=2000"`
	PendingIssue bool            `json:"pending_issue"`
}

// ChequeMoveRequest carries the effective date of a cheque transition
type ChequeMoveRequest struct {
	Date          Date       `json:"date"`
	BankAccountID *uuid.UUID `json:"bank_account_id"`
	ToPartyID     *uuid.UUID `json:"to_party_id"`
}

// DocumentListFilter narrows a document listing
type DocumentListFilter struct {
	PartyID   string     `form:"party_id" binding:"omitempty,uuid"`
	Type      string     `form:"type"`
	Direction string     `form:"direction" binding:"omitempty,oneof=payable receivable"`
	Status    string     `form:"status"`
	DueFrom   string     `form:"due_from"`
	DueTo     string     `form:"due_to"`
	Search    string     `form:"search" binding:"max=100"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortBy    string     `form:"sort_by"`
	SortDesc  bool       `form:"sort_desc"`
}

// =============================================================================
// Responses
// =============================================================================

// PartyResponse is a party in API responses
type PartyResponse struct {
	ID           uuid.UUID  `json:"id"`
	CompanyID    uuid.UUID  `json:"company_id"`
	BranchID     *uuid.UUID `json:"branch_id,omitempty"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	LinkableType string     `json:"linkable_type,omitempty"`
	LinkableID   *uuid.UUID `json:"linkable_id,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Version      int        `json:"version"`
}

// PartyBalanceResponse is the outstanding position with one party
type PartyBalanceResponse struct {
	PartyID               uuid.UUID       `json:"party_id"`
	ReceivableOutstanding decimal.Decimal `json:"receivable_outstanding"`
	PayableOutstanding    decimal.Decimal `json:"payable_outstanding"`
	UnallocatedIn         decimal.Decimal `json:"unallocated_in"`
	UnallocatedOut        decimal.Decimal `json:"unallocated_out"`
	Net                   decimal.Decimal `json:"net"`
}

// DocumentResponse is a document in API responses
type DocumentResponse struct {
	ID              uuid.UUID       `json:"id"`
	CompanyID       uuid.UUID       `json:"company_id"`
	BranchID        *uuid.UUID      `json:"branch_id,omitempty"`
	Type            string          `json:"type"`
	Direction       string          `json:"direction"`
	PartyID         uuid.UUID       `json:"party_id"`
	Number          string          `json:"number"`
	DocumentDate    Date            `json:"document_date"`
	DueDate         Date            `json:"due_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	UnpaidBalance   decimal.Decimal `json:"unpaid_balance"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	Period          string          `json:"period"`
	ReversalOfID    *uuid.UUID      `json:"reversal_of_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// DocumentListResponse is one page of documents
type DocumentListResponse struct {
	Items      []DocumentResponse `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// PaymentResponse is a payment in API responses
type PaymentResponse struct {
	ID                uuid.UUID            `json:"id"`
	CompanyID         uuid.UUID            `json:"company_id"`
	BranchID          *uuid.UUID           `json:"branch_id,omitempty"`
	Type              string               `json:"type"`
	Direction         string               `json:"direction"`
	PartyID           *uuid.UUID           `json:"party_id,omitempty"`
	CashboxID         *uuid.UUID           `json:"cashbox_id,omitempty"`
	BankAccountID     *uuid.UUID           `json:"bank_account_id,omitempty"`
	DestCashboxID     *uuid.UUID           `json:"dest_cashbox_id,omitempty"`
	DestBankAccountID *uuid.UUID           `json:"dest_bank_account_id,omitempty"`
	PaymentDate       Date                 `json:"payment_date"`
	Amount            decimal.Decimal      `json:"amount"`
	FeeAmount         decimal.Decimal      `json:"fee_amount"`
	NetAmount         decimal.Decimal      `json:"net_amount"`
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"`
	Currency          string               `json:"currency"`
	Status            string               `json:"status"`
	Period            string               `json:"period"`
	Reference         string               `json:"reference,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	CancelReason      string               `json:"cancel_reason,omitempty"`
	ConfirmedAt       *time.Time           `json:"confirmed_at,omitempty"`
	Allocations       []AllocationResponse `json:"allocations,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	Version           int                  `json:"version"`
}

// AllocationResponse is one allocation row
type AllocationResponse struct {
	ID         uuid.UUID       `json:"id"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	DocumentID uuid.UUID       `json:"document_id"`
	Amount     decimal.Decimal `json:"amount"`
	Notes      string          `json:"notes,omitempty"`
	CreatedBy  uuid.UUID       `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AllocationResultResponse shows both sides after an allocation change
type AllocationResultResponse struct {
	Payment     PaymentResponse      `json:"payment"`
	Documents   []DocumentResponse   `json:"documents"`
	Allocations []AllocationResponse `json:"allocations"`
}

// SuggestionLineResponse proposes an amount for one document
type SuggestionLineResponse struct {
	DocumentID    uuid.UUID       `json:"document_id"`
	Number        string          `json:"number"`
	Type          string          `json:"type"`
	DueDate       Date            `json:"due_date"`
	UnpaidBalance decimal.Decimal `json:"unpaid_balance"`
	Suggested     decimal.Decimal `json:"suggested"`
}

// SuggestionResponse is an oldest-due-first fill proposal
type SuggestionResponse struct {
	PaymentID      uuid.UUID                `json:"payment_id"`
	Unallocated    decimal.Decimal          `json:"unallocated"`
	TotalSuggested decimal.Decimal          `json:"total_suggested"`
	Remaining      decimal.Decimal          `json:"remaining"`
	Lines          []SuggestionLineResponse `json:"lines"`
}

// AccountBalanceResponse is the confirmed movement on one account
type AccountBalanceResponse struct {
	AccountKind string          `json:"account_kind"`
	AccountID   uuid.UUID       `json:"account_id"`
	AsOf        Date            `json:"as_of"`
	Inflows     decimal.Decimal `json:"inflows"`
	Outflows    decimal.Decimal `json:"outflows"`
	Balance     decimal.Decimal `json:"balance"`
	Payments    int             `json:"payments"`
}

// ChequeResponse is a cheque with its document and, once collected, payment
type ChequeResponse struct {
	ID                   uuid.UUID        `json:"id"`
	CompanyID            uuid.UUID        `json:"company_id"`
	ChequeNumber         string           `json:"cheque_number"`
	BankName             string           `json:"bank_name"`
	Status               string           `json:"status"`
	IssueDate            Date             `json:"issue_date"`
	DepositDate          *Date            `json:"deposit_date,omitempty"`
	DepositBankAccountID *uuid.UUID       `json:"deposit_bank_account_id,omitempty"`
	CollectedDate        *Date            `json:"collected_date,omitempty"`
	CollectedPaymentID   *uuid.UUID       `json:"collected_payment_id,omitempty"`
	BouncedDate          *Date            `json:"bounced_date,omitempty"`
	EndorsedToPartyID    *uuid.UUID       `json:"endorsed_to_party_id,omitempty"`
	EndorsedDate         *Date            `json:"endorsed_date,omitempty"`
	CancelledDate        *Date            `json:"cancelled_date,omitempty"`
	Document             DocumentResponse `json:"document"`
	Payment              *PaymentResponse `json:"payment,omitempty"`
	Version              int              `json:"version"`
}

// PeriodResponse is an accounting period
type PeriodResponse struct {
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Status     string     `json:"status"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LockedBy   *uuid.UUID `json:"locked_by,omitempty"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	UnlockedBy *uuid.UUID `json:"unlocked_by,omitempty"`
}

// ForecastBucketResponse is the expected movement on one day
type ForecastBucketResponse struct {
	Date      Date            `json:"date"`
	Inflow    decimal.Decimal `json:"inflow"`
	Outflow   decimal.Decimal `json:"outflow"`
	Net       decimal.Decimal `json:"net"`
	Documents int             `json:"documents"`
}

// ForecastResponse is the cash flow projection for a range
type ForecastResponse struct {
	From         Date                     `json:"from"`
	To           Date                     `json:"to"`
	Buckets      []ForecastBucketResponse `json:"buckets"`
	TotalInflow  decimal.Decimal          `json:"total_inflow"`
	TotalOutflow decimal.Decimal          `json:"total_outflow"`
	Net          decimal.Decimal          `json:"net"`
}
