// Package settlement implements the ledger consistency engine: documents
// (obligations), payments, the allocations linking them, cheques and
// accounting period locks.
package settlement

// DocumentDirection tells whether a document is owed by or to the company
type DocumentDirection string

const (
	DirectionPayable    DocumentDirection = "payable"
	DirectionReceivable DocumentDirection = "receivable"
)

// IsValid checks if the direction is known
func (d DocumentDirection) IsValid() bool {
	return d == DirectionPayable || d == DirectionReceivable
}

// String returns the string representation of DocumentDirection
func (d DocumentDirection) String() string {
	return string(d)
}

// SettledBy returns the payment direction that settles documents of this direction
func (d DocumentDirection) SettledBy() PaymentDirection {
	if d == DirectionReceivable {
		return PaymentIn
	}
	return PaymentOut
}

// DocumentType is one of the fourteen obligation kinds
type DocumentType string

const (
	DocumentTypeSupplierInvoice    DocumentType = "supplier_invoice"
	DocumentTypeSupplierCreditNote DocumentType = "supplier_credit_note"
	DocumentTypeCustomerInvoice    DocumentType = "customer_invoice"
	DocumentTypeCustomerCreditNote DocumentType = "customer_credit_note"
	DocumentTypePayrollDue         DocumentType = "payroll_due"
	DocumentTypePayrollRecovery    DocumentType = "payroll_recovery"
	DocumentTypeTaxDue             DocumentType = "tax_due"
	DocumentTypeTaxRefund          DocumentType = "tax_refund"
	DocumentTypeExpenseClaim       DocumentType = "expense_claim"
	DocumentTypeEmployeeAdvance    DocumentType = "employee_advance"
	DocumentTypeLoanPayable        DocumentType = "loan_payable"
	DocumentTypeLoanReceivable     DocumentType = "loan_receivable"
	DocumentTypeChequePayable      DocumentType = "cheque_payable"
	DocumentTypeChequeReceivable   DocumentType = "cheque_receivable"
)

type documentTypePolicy struct {
	direction   DocumentDirection
	counterpart DocumentType
}

var documentTypePolicies = map[DocumentType]documentTypePolicy{
	DocumentTypeSupplierInvoice:    {DirectionPayable, DocumentTypeSupplierCreditNote},
	DocumentTypeSupplierCreditNote: {DirectionReceivable, DocumentTypeSupplierInvoice},
	DocumentTypeCustomerInvoice:    {DirectionReceivable, DocumentTypeCustomerCreditNote},
	DocumentTypeCustomerCreditNote: {DirectionPayable, DocumentTypeCustomerInvoice},
	DocumentTypePayrollDue:         {DirectionPayable, DocumentTypePayrollRecovery},
	DocumentTypePayrollRecovery:    {DirectionReceivable, DocumentTypePayrollDue},
	DocumentTypeTaxDue:             {DirectionPayable, DocumentTypeTaxRefund},
	DocumentTypeTaxRefund:          {DirectionReceivable, DocumentTypeTaxDue},
	DocumentTypeExpenseClaim:       {DirectionPayable, DocumentTypeEmployeeAdvance},
	DocumentTypeEmployeeAdvance:    {DirectionReceivable, DocumentTypeExpenseClaim},
	DocumentTypeLoanPayable:        {DirectionPayable, DocumentTypeLoanReceivable},
	DocumentTypeLoanReceivable:     {DirectionReceivable, DocumentTypeLoanPayable},
	DocumentTypeChequePayable:      {DirectionPayable, DocumentTypeChequeReceivable},
	DocumentTypeChequeReceivable:   {DirectionReceivable, DocumentTypeChequePayable},
}

// AllDocumentTypes returns every document type
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeSupplierInvoice, DocumentTypeSupplierCreditNote,
		DocumentTypeCustomerInvoice, DocumentTypeCustomerCreditNote,
		DocumentTypePayrollDue, DocumentTypePayrollRecovery,
		DocumentTypeTaxDue, DocumentTypeTaxRefund,
		DocumentTypeExpenseClaim, DocumentTypeEmployeeAdvance,
		DocumentTypeLoanPayable, DocumentTypeLoanReceivable,
		DocumentTypeChequePayable, DocumentTypeChequeReceivable,
	}
}

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	_, ok := documentTypePolicies[t]
	return ok
}

// String returns the string representation of DocumentType
func (t DocumentType) String() string {
	return string(t)
}

// Direction returns the canonical direction of the type
func (t DocumentType) Direction() DocumentDirection {
	return documentTypePolicies[t].direction
}

// Counterpart returns the type used to reverse a document of this type
func (t DocumentType) Counterpart() DocumentType {
	return documentTypePolicies[t].counterpart
}

// IsCheque reports whether the type carries cheque instrument data
func (t DocumentType) IsCheque() bool {
	return t == DocumentTypeChequePayable || t == DocumentTypeChequeReceivable
}

// DocumentStatus is the settlement state of a document
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusPending   DocumentStatus = "pending"
	DocumentStatusPartial   DocumentStatus = "partial"
	DocumentStatusSettled   DocumentStatus = "settled"
	DocumentStatusCancelled DocumentStatus = "cancelled"
	DocumentStatusReversed  DocumentStatus = "reversed"
)

// IsValid checks if the status is known
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPending, DocumentStatusPartial,
		DocumentStatusSettled, DocumentStatusCancelled, DocumentStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// IsTerminal returns true for the sticky states recompute never overwrites
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCancelled || s == DocumentStatusReversed
}

// IsOpen returns true if allocations may be applied in this status
func (s DocumentStatus) IsOpen() bool {
	return s == DocumentStatusPending || s == DocumentStatusPartial
}

// PaymentDirection tells whether money enters or leaves the company
type PaymentDirection string

const (
	PaymentIn  PaymentDirection = "in"
	PaymentOut PaymentDirection = "out"
)

// IsValid checks if the direction is known
func (d PaymentDirection) IsValid() bool {
	return d == PaymentIn || d == PaymentOut
}

// String returns the string representation of PaymentDirection
func (d PaymentDirection) String() string {
	return string(d)
}

// Settles returns the document direction this payment direction settles
func (d PaymentDirection) Settles() DocumentDirection {
	if d == PaymentIn {
		return DirectionReceivable
	}
	return DirectionPayable
}

// Compatible reports whether a payment of direction p may settle a document of direction d
func Compatible(d DocumentDirection, p PaymentDirection) bool {
	return d.SettledBy() == p
}

// PaymentType is one of the nine movement kinds
type PaymentType string

const (
	PaymentTypeCashIn       PaymentType = "cash_in"
	PaymentTypeCashOut      PaymentType = "cash_out"
	PaymentTypeBankIn       PaymentType = "bank_in"
	PaymentTypeBankOut      PaymentType = "bank_out"
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
	PaymentTypePOSIn        PaymentType = "pos_in"
	PaymentTypeChequeIn     PaymentType = "cheque_in"
	PaymentTypeChequeOut    PaymentType = "cheque_out"
	PaymentTypeTransfer     PaymentType = "transfer"
)

var paymentTypeDirections = map[PaymentType]PaymentDirection{
	PaymentTypeCashIn:       PaymentIn,
	PaymentTypeCashOut:      PaymentOut,
	PaymentTypeBankIn:       PaymentIn,
	PaymentTypeBankOut:      PaymentOut,
	PaymentTypeBankTransfer: PaymentOut,
	PaymentTypePOSIn:        PaymentIn,
	PaymentTypeChequeIn:     PaymentIn,
	PaymentTypeChequeOut:    PaymentOut,
	PaymentTypeTransfer:     PaymentOut,
}

// AllPaymentTypes returns every payment type
func AllPaymentTypes() []PaymentType {
	return []PaymentType{
		PaymentTypeCashIn, PaymentTypeCashOut,
		PaymentTypeBankIn, PaymentTypeBankOut, PaymentTypeBankTransfer,
		PaymentTypePOSIn,
		PaymentTypeChequeIn, PaymentTypeChequeOut,
		PaymentTypeTransfer,
	}
}

// IsValid checks if the payment type is known
func (t PaymentType) IsValid() bool {
	_, ok := paymentTypeDirections[t]
	return ok
}

// String returns the string representation of PaymentType
func (t PaymentType) String() string {
	return string(t)
}

// Direction returns the canonical direction of the type
func (t PaymentType) Direction() PaymentDirection {
	return paymentTypeDirections[t]
}

// IsInternalTransfer reports whether the type moves money between own accounts.
// Such payments have no party and never take allocations.
func (t PaymentType) IsInternalTransfer() bool {
	return t == PaymentTypeTransfer
}

// PaymentStatus is the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusDraft     PaymentStatus = "draft"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsValid checks if the status is known
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusDraft, PaymentStatusConfirmed, PaymentStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PartyType classifies a counterparty
type PartyType string

const (
	PartyTypeCustomer     PartyType = "customer"
	PartyTypeSupplier     PartyType = "supplier"
	PartyTypeEmployee     PartyType = "employee"
	PartyTypeOther        PartyType = "other"
	PartyTypeTaxAuthority PartyType = "tax_authority"
	PartyTypeBank         PartyType = "bank"
)

// IsValid checks if the party type is known
func (t PartyType) IsValid() bool {
	switch t {
	case PartyTypeCustomer, PartyTypeSupplier, PartyTypeEmployee,
		PartyTypeOther, PartyTypeTaxAuthority, PartyTypeBank:
		return true
	}
	return false
}

// String returns the string representation of PartyType
func (t PartyType) String() string {
	return string(t)
}

// ChequeStatus is the custody state of a physical cheque
type ChequeStatus string

const (
	ChequeStatusPendingIssue ChequeStatus = "pending_issue"
	ChequeStatusInPortfolio  ChequeStatus = "in_portfolio"
	ChequeStatusEndorsed     ChequeStatus = "endorsed"
	ChequeStatusDeposited    ChequeStatus = "deposited"
	ChequeStatusCollected    ChequeStatus = "collected"
	ChequeStatusBounced      ChequeStatus = "bounced"
	ChequeStatusCancelled    ChequeStatus = "cancelled"
)

// AllChequeStatuses returns every cheque status
func AllChequeStatuses() []ChequeStatus {
	return []ChequeStatus{
		ChequeStatusPendingIssue, ChequeStatusInPortfolio, ChequeStatusEndorsed,
		ChequeStatusDeposited, ChequeStatusCollected, ChequeStatusBounced,
		ChequeStatusCancelled,
	}
}

// ForecastChequeStatuses are the statuses still expected to move cash
func ForecastChequeStatuses() []ChequeStatus {
	return []ChequeStatus{
		ChequeStatusInPortfolio,
		ChequeStatusDeposited,
		ChequeStatusPendingIssue,
	}
}

// IsValid checks if the status is known
func (s ChequeStatus) IsValid() bool {
	for _, st := range AllChequeStatuses() {
		if st == s {
			return true
		}
	}
	return false
}

// String returns the string representation of ChequeStatus
func (s ChequeStatus) String() string {
	return string(s)
}

// CountsInForecast reports whether a cheque in this status belongs in the cashflow forecast
func (s ChequeStatus) CountsInForecast() bool {
	for _, st := range ForecastChequeStatuses() {
		if st == s {
			return true
		}
	}
	return false
}

// PeriodStatus is the lock state of an accounting period
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusLocked PeriodStatus = "locked"
)

// String returns the string representation of PeriodStatus
func (s PeriodStatus) String() string {
	return string(s)
}

// Collectable reports whether a cheque in this status can still reach collected
func (s ChequeStatus) Collectable() bool {
	switch s {
	case ChequeStatusPendingIssue, ChequeStatusInPortfolio, ChequeStatusDeposited:
		return true
	}
	return false
}
