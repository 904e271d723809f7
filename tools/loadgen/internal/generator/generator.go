// Package generator builds realistic request bodies for the settlement API.
package generator

import (
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PartyBody is the body of POST /parties.
type PartyBody struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DocumentBody is the body of POST /documents.
type DocumentBody struct {
	Type         string          `json:"type"`
	PartyID      uuid.UUID       `json:"party_id"`
	Number       string          `json:"number"`
	DocumentDate string          `json:"document_date"`
	DueDate      string          `json:"due_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	Notes        string          `json:"notes,omitempty"`
}

// PaymentBody is the body of POST /payments.
type PaymentBody struct {
	Type          string          `json:"type"`
	PartyID       uuid.UUID       `json:"party_id"`
	BankAccountID uuid.UUID       `json:"bank_account_id"`
	PaymentDate   string          `json:"payment_date"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
}

// Generator produces request bodies. It is safe for concurrent use.
type Generator struct {
	mu          sync.Mutex
	faker       *gofakeit.Faker
	currency    string
	bankAccount uuid.UUID
	today       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.today = now }
}

// WithBankAccount sets the account used by generated payments.
func WithBankAccount(id uuid.UUID) Option {
	return func(g *Generator) { g.bankAccount = id }
}

// New creates a generator. A zero seed draws a random one.
func New(seed uint64, currency string, opts ...Option) *Generator {
	g := &Generator{
		faker:       gofakeit.New(seed),
		currency:    currency,
		bankAccount: uuid.New(),
		today:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Supplier returns a supplier party.
func (g *Generator) Supplier() PartyBody {
	g.mu.Lock()
	defer g.mu.Unlock()
	return PartyBody{Name: g.faker.Company(), Type: "supplier"}
}

// SupplierInvoice returns a payable invoice dated within the last month and
// due 0 to 60 days after its date.
func (g *Generator) SupplierInvoice(partyID uuid.UUID) DocumentBody {
	g.mu.Lock()
	defer g.mu.Unlock()
	day := g.today().UTC().AddDate(0, 0, -g.faker.IntRange(0, 27))
	return DocumentBody{
		Type:         "supplier_invoice",
		PartyID:      partyID,
		Number:       g.faker.Numerify("INV-######"),
		DocumentDate: day.Format(dateLayout),
		DueDate:      day.AddDate(0, 0, g.faker.IntRange(0, 60)).Format(dateLayout),
		TotalAmount:  g.amount(50, 5000),
		Currency:     g.currency,
		Notes:        g.faker.Sentence(6),
	}
}

// InvoiceOf returns a payable invoice for a fixed amount, dated today.
func (g *Generator) InvoiceOf(partyID uuid.UUID, total decimal.Decimal) DocumentBody {
	doc := g.SupplierInvoice(partyID)
	today := g.today().UTC().Format(dateLayout)
	doc.DocumentDate, doc.DueDate, doc.TotalAmount = today, today, total
	return doc
}

// OutgoingPayment returns a bank payment to the party. A zero amount draws
// a random one.
func (g *Generator) OutgoingPayment(partyID uuid.UUID, amount decimal.Decimal) PaymentBody {
	g.mu.Lock()
	defer g.mu.Unlock()
	if amount.IsZero() {
		amount = g.amount(10, 2500)
	}
	return PaymentBody{
		Type:          "bank_out",
		PartyID:       partyID,
		BankAccountID: g.bankAccount,
		PaymentDate:   g.today().UTC().Format(dateLayout),
		Amount:        amount,
		Currency:      g.currency,
		Reference:     g.faker.Numerify("TRX-########"),
	}
}

// Intn returns a number in [0, n).
func (g *Generator) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.faker.IntN(n)
}

// amount is a two-decimal amount in [min, max]. Callers hold mu.
func (g *Generator) amount(min, max int) decimal.Decimal {
	cents := g.faker.IntRange(min*100, max*100)
	return decimal.New(int64(cents), -2)
}

// BankAccount returns the account used by generated payments.
func (g *Generator) BankAccount() uuid.UUID {
	return g.bankAccount
}
