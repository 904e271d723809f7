package models

import (
	"time"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyModel is the persistence model for the Party aggregate root.
type PartyModel struct {
	CompanyAggregateModel
	Name         string               `gorm:"type:varchar(200);not null"`
	Type         settlement.PartyType `gorm:"type:varchar(30);not null;index"`
	LinkableType *string              `gorm:"type:varchar(50);uniqueIndex:idx_party_linkable,priority:1"`
	LinkableID   *uuid.UUID           `gorm:"type:uuid;uniqueIndex:idx_party_linkable,priority:2"`
	Active       bool                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PartyModel) TableName() string {
	return "parties"
}

// ToDomain converts the persistence model to a domain Party.
func (m *PartyModel) ToDomain() *settlement.Party {
	p := &settlement.Party{
		Name:   m.Name,
		Type:   m.Type,
		Active: m.Active,
	}
	m.PopulateCompanyAggregateRoot(&p.CompanyAggregateRoot)
	if m.LinkableType != nil && m.LinkableID != nil {
		p.Linkable = &settlement.LinkableRef{Type: *m.LinkableType, ID: *m.LinkableID}
	}
	return p
}

// FromDomain populates the persistence model from a domain Party.
func (m *PartyModel) FromDomain(p *settlement.Party) {
	m.FromDomainCompanyAggregateRoot(p.CompanyAggregateRoot)
	m.Name = p.Name
	m.Type = p.Type
	m.Active = p.Active
	m.LinkableType, m.LinkableID = nil, nil
	if p.Linkable != nil {
		t, id := p.Linkable.Type, p.Linkable.ID
		m.LinkableType = &t
		m.LinkableID = &id
	}
}

// PartyModelFromDomain creates a new persistence model from a domain Party.
func PartyModelFromDomain(p *settlement.Party) *PartyModel {
	m := &PartyModel{}
	m.FromDomain(p)
	return m
}

// DocumentModel is the persistence model for the Document aggregate root.
type DocumentModel struct {
	CompanyAggregateModel
	Number          string                       `gorm:"type:varchar(50);index"`
	Type            settlement.DocumentType      `gorm:"type:varchar(30);not null;index"`
	Direction       settlement.DocumentDirection `gorm:"type:varchar(20);not null"`
	PartyID         uuid.UUID                    `gorm:"type:uuid;not null;index"`
	DocumentDate    time.Time                    `gorm:"type:date;not null"`
	DueDate         time.Time                    `gorm:"type:date;not null;index"`
	TotalAmount     decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	AllocatedAmount decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	Currency        string                       `gorm:"type:varchar(3);not null"`
	Status          settlement.DocumentStatus    `gorm:"type:varchar(20);not null;index"`
	PeriodYear      int                          `gorm:"not null"`
	PeriodMonth     int                          `gorm:"not null"`
	ReversalOfID    *uuid.UUID                   `gorm:"type:uuid;index"`
	CancelReason    string                       `gorm:"type:varchar(500)"`
	Notes           string                       `gorm:"type:text"`
	UpdatedBy       uuid.UUID                    `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document.
func (m *DocumentModel) ToDomain() *settlement.Document {
	return settlement.RestoreDocument(settlement.DocumentState{
		ID:              m.ID,
		CompanyID:       m.CompanyID,
		BranchID:        m.BranchID,
		Number:          m.Number,
		Type:            m.Type,
		Direction:       m.Direction,
		PartyID:         m.PartyID,
		DocumentDate:    m.DocumentDate,
		DueDate:         m.DueDate,
		TotalAmount:     m.TotalAmount,
		AllocatedAmount: m.AllocatedAmount,
		Currency:        m.Currency,
		Status:          m.Status,
		PeriodYear:      m.PeriodYear,
		PeriodMonth:     m.PeriodMonth,
		ReversalOfID:    m.ReversalOfID,
		CancelReason:    m.CancelReason,
		Notes:           m.Notes,
		CreatedBy:       m.CreatedBy,
		UpdatedBy:       m.UpdatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Version:         m.Version,
	})
}

// FromDomain populates the persistence model from a domain Document.
func (m *DocumentModel) FromDomain(d *settlement.Document) {
	s := d.State()
	m.ID = s.ID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.Version = s.Version
	m.CompanyID = s.CompanyID
	m.BranchID = s.BranchID
	m.CreatedBy = s.CreatedBy
	m.Number = s.Number
	m.Type = s.Type
	m.Direction = s.Direction
	m.PartyID = s.PartyID
	m.DocumentDate = s.DocumentDate
	m.DueDate = s.DueDate
	m.TotalAmount = s.TotalAmount
	m.AllocatedAmount = s.AllocatedAmount
	m.Currency = s.Currency
	m.Status = s.Status
	m.PeriodYear = s.PeriodYear
	m.PeriodMonth = s.PeriodMonth
	m.ReversalOfID = s.ReversalOfID
	m.CancelReason = s.CancelReason
	m.Notes = s.Notes
	m.UpdatedBy = s.UpdatedBy
}

// DocumentModelFromDomain creates a new persistence model from a domain Document.
func DocumentModelFromDomain(d *settlement.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	CompanyAggregateModel
	Type              settlement.PaymentType      `gorm:"type:varchar(30);not null;index"`
	Direction         settlement.PaymentDirection `gorm:"type:varchar(10);not null"`
	PartyID           *uuid.UUID                  `gorm:"type:uuid;index"`
	CashboxID         *uuid.UUID                  `gorm:"type:uuid;index"`
	BankAccountID     *uuid.UUID                  `gorm:"type:uuid;index"`
	DestCashboxID     *uuid.UUID                  `gorm:"type:uuid;index"`
	DestBankAccountID *uuid.UUID                  `gorm:"type:uuid;index"`
	PaymentDate       time.Time                   `gorm:"type:date;not null;index"`
	Amount            decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	FeeAmount         decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	NetAmount         decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	UnallocatedAmount decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	Currency          string                      `gorm:"type:varchar(3);not null"`
	Status            settlement.PaymentStatus    `gorm:"type:varchar(20);not null;index"`
	PeriodYear        int                         `gorm:"not null"`
	PeriodMonth       int                         `gorm:"not null"`
	Reference         string                      `gorm:"type:varchar(100)"`
	Notes             string                      `gorm:"type:text"`
	CancelReason      string                      `gorm:"type:varchar(500)"`
	ConfirmedBy       *uuid.UUID                  `gorm:"type:uuid"`
	ConfirmedAt       *time.Time
	UpdatedBy         uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m *PaymentModel) ToDomain() *settlement.Payment {
	return settlement.RestorePayment(settlement.PaymentState{
		ID:                m.ID,
		CompanyID:         m.CompanyID,
		BranchID:          m.BranchID,
		Type:              m.Type,
		Direction:         m.Direction,
		PartyID:           m.PartyID,
		CashboxID:         m.CashboxID,
		BankAccountID:     m.BankAccountID,
		DestCashboxID:     m.DestCashboxID,
		DestBankAccountID: m.DestBankAccountID,
		PaymentDate:       m.PaymentDate,
		Amount:            m.Amount,
		FeeAmount:         m.FeeAmount,
		NetAmount:         m.NetAmount,
		UnallocatedAmount: m.UnallocatedAmount,
		Currency:          m.Currency,
		Status:            m.Status,
		PeriodYear:        m.PeriodYear,
		PeriodMonth:       m.PeriodMonth,
		Reference:         m.Reference,
		Notes:             m.Notes,
		CancelReason:      m.CancelReason,
		ConfirmedBy:       m.ConfirmedBy,
		ConfirmedAt:       m.ConfirmedAt,
		CreatedBy:         m.CreatedBy,
		UpdatedBy:         m.UpdatedBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		Version:           m.Version,
	})
}

// FromDomain populates the persistence model from a domain Payment.
func (m *PaymentModel) FromDomain(p *settlement.Payment) {
	s := p.State()
	m.ID = s.ID
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	m.Version = s.Version
	m.CompanyID = s.CompanyID
	m.BranchID = s.BranchID
	m.CreatedBy = s.CreatedBy
	m.Type = s.Type
	m.Direction = s.Direction
	m.PartyID = s.PartyID
	m.CashboxID = s.CashboxID
	m.BankAccountID = s.BankAccountID
	m.DestCashboxID = s.DestCashboxID
	m.DestBankAccountID = s.DestBankAccountID
	m.PaymentDate = s.PaymentDate
	m.Amount = s.Amount
	m.FeeAmount = s.FeeAmount
	m.NetAmount = s.NetAmount
	m.UnallocatedAmount = s.UnallocatedAmount
	m.Currency = s.Currency
	m.Status = s.Status
	m.PeriodYear = s.PeriodYear
	m.PeriodMonth = s.PeriodMonth
	m.Reference = s.Reference
	m.Notes = s.Notes
	m.CancelReason = s.CancelReason
	m.ConfirmedBy = s.ConfirmedBy
	m.ConfirmedAt = s.ConfirmedAt
	m.UpdatedBy = s.UpdatedBy
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *settlement.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// AllocationModel is the persistence model for an allocation row.
// Rows are inserted and deleted, never updated.
type AllocationModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	CompanyID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	DocumentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Notes      string          `gorm:"type:text"`
	CreatedBy  uuid.UUID       `gorm:"type:uuid"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation.
func (m *AllocationModel) ToDomain() *settlement.Allocation {
	return &settlement.Allocation{
		ID:         m.ID,
		CompanyID:  m.CompanyID,
		PaymentID:  m.PaymentID,
		DocumentID: m.DocumentID,
		Amount:     m.Amount,
		Notes:      m.Notes,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
	}
}

// AllocationModelFromDomain creates a new persistence model from a domain Allocation.
func AllocationModelFromDomain(a *settlement.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:         a.ID,
		CompanyID:  a.CompanyID,
		PaymentID:  a.PaymentID,
		DocumentID: a.DocumentID,
		Amount:     a.Amount,
		Notes:      a.Notes,
		CreatedBy:  a.CreatedBy,
		CreatedAt:  a.CreatedAt,
	}
}

// AccountingPeriodModel is the persistence model for the AccountingPeriod aggregate root.
type AccountingPeriodModel struct {
	AggregateModel
	CompanyID  uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_period_key,priority:1"`
	Year       int                     `gorm:"not null;uniqueIndex:idx_period_key,priority:2"`
	Month      int                     `gorm:"not null;uniqueIndex:idx_period_key,priority:3"`
	Status     settlement.PeriodStatus `gorm:"type:varchar(10);not null"`
	LockedAt   *time.Time
	LockedBy   *uuid.UUID `gorm:"type:uuid"`
	UnlockedAt *time.Time
	UnlockedBy *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AccountingPeriodModel) TableName() string {
	return "accounting_periods"
}

// ToDomain converts the persistence model to a domain AccountingPeriod.
func (m *AccountingPeriodModel) ToDomain() *settlement.AccountingPeriod {
	p := &settlement.AccountingPeriod{
		CompanyID:  m.CompanyID,
		Year:       m.Year,
		Month:      m.Month,
		Status:     m.Status,
		LockedAt:   m.LockedAt,
		LockedBy:   m.LockedBy,
		UnlockedAt: m.UnlockedAt,
		UnlockedBy: m.UnlockedBy,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain AccountingPeriod.
func (m *AccountingPeriodModel) FromDomain(p *settlement.AccountingPeriod) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.CompanyID = p.CompanyID
	m.Year = p.Year
	m.Month = p.Month
	m.Status = p.Status
	m.LockedAt = p.LockedAt
	m.LockedBy = p.LockedBy
	m.UnlockedAt = p.UnlockedAt
	m.UnlockedBy = p.UnlockedBy
}

// AccountingPeriodModelFromDomain creates a new persistence model from a domain AccountingPeriod.
func AccountingPeriodModelFromDomain(p *settlement.AccountingPeriod) *AccountingPeriodModel {
	m := &AccountingPeriodModel{}
	m.FromDomain(p)
	return m
}

// ChequeModel is the persistence model for the Cheque aggregate root.
// One cheque row exists per cheque document.
type ChequeModel struct {
	AggregateModel
	CompanyID            uuid.UUID               `gorm:"type:uuid;not null;index"`
	DocumentID           uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex"`
	ChequeNumber         string                  `gorm:"type:varchar(50);not null"`
	BankName             string                  `gorm:"type:varchar(200);not null"`
	IssueDate            time.Time               `gorm:"type:date;not null"`
	Status               settlement.ChequeStatus `gorm:"type:varchar(20);not null;index"`
	DepositDate          *time.Time              `gorm:"type:date"`
	DepositBankAccountID *uuid.UUID              `gorm:"type:uuid"`
	CollectedDate        *time.Time              `gorm:"type:date"`
	CollectedPaymentID   *uuid.UUID              `gorm:"type:uuid"`
	BouncedDate          *time.Time              `gorm:"type:date"`
	EndorsedToPartyID    *uuid.UUID              `gorm:"type:uuid"`
	EndorsedDate         *time.Time              `gorm:"type:date"`
	CancelledDate        *time.Time              `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (ChequeModel) TableName() string {
	return "cheques"
}

// ToDomain converts the persistence model to a domain Cheque.
func (m *ChequeModel) ToDomain() *settlement.Cheque {
	c := settlement.Cheque{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		CompanyID:            m.CompanyID,
		DocumentID:           m.DocumentID,
		ChequeNumber:         m.ChequeNumber,
		BankName:             m.BankName,
		IssueDate:            m.IssueDate,
		DepositDate:          m.DepositDate,
		DepositBankAccountID: m.DepositBankAccountID,
		CollectedDate:        m.CollectedDate,
		CollectedPaymentID:   m.CollectedPaymentID,
		BouncedDate:          m.BouncedDate,
		EndorsedToPartyID:    m.EndorsedToPartyID,
		EndorsedDate:         m.EndorsedDate,
		CancelledDate:        m.CancelledDate,
	}
	return settlement.RestoreCheque(c, m.Status)
}

// FromDomain populates the persistence model from a domain Cheque.
func (m *ChequeModel) FromDomain(c *settlement.Cheque) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CompanyID = c.CompanyID
	m.DocumentID = c.DocumentID
	m.ChequeNumber = c.ChequeNumber
	m.BankName = c.BankName
	m.IssueDate = c.IssueDate
	m.Status = c.Status()
	m.DepositDate = c.DepositDate
	m.DepositBankAccountID = c.DepositBankAccountID
	m.CollectedDate = c.CollectedDate
	m.CollectedPaymentID = c.CollectedPaymentID
	m.BouncedDate = c.BouncedDate
	m.EndorsedToPartyID = c.EndorsedToPartyID
	m.EndorsedDate = c.EndorsedDate
	m.CancelledDate = c.CancelledDate
}

// ChequeModelFromDomain creates a new persistence model from a domain Cheque.
func ChequeModelFromDomain(c *settlement.Cheque) *ChequeModel {
	m := &ChequeModel{}
	m.FromDomain(c)
	return m
}

// SettlementModels lists every table the settlement store touches, for AutoMigrate in tests and dev mode
func SettlementModels() []any {
	return []any{
		&PartyModel{},
		&DocumentModel{},
		&PaymentModel{},
		&AllocationModel{},
		&AccountingPeriodModel{},
		&ChequeModel{},
		&OutboxEntryModel{},
	}
}
