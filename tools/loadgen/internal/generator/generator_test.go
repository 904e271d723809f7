package generator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedToday = func() time.Time { return time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC) }

func TestGenerator_SameSeedSameData(t *testing.T) {
	party := uuid.New()
	a := New(42, "EUR", WithClock(fixedToday))
	b := New(42, "EUR", WithClock(fixedToday))

	assert.Equal(t, a.Supplier(), b.Supplier())
	docA, docB := a.SupplierInvoice(party), b.SupplierInvoice(party)
	assert.Equal(t, docA.Number, docB.Number)
	assert.True(t, docA.TotalAmount.Equal(docB.TotalAmount))
}

func TestGenerator_SupplierInvoice(t *testing.T) {
	party := uuid.New()
	g := New(7, "USD", WithClock(fixedToday))

	for i := 0; i < 50; i++ {
		doc := g.SupplierInvoice(party)
		assert.Equal(t, "supplier_invoice", doc.Type)
		assert.Equal(t, party, doc.PartyID)
		assert.Equal(t, "USD", doc.Currency)
		assert.Regexp(t, `^INV-\d{6}$`, doc.Number)
		assert.True(t, doc.TotalAmount.GreaterThanOrEqual(decimal.NewFromInt(50)))
		assert.True(t, doc.TotalAmount.LessThanOrEqual(decimal.NewFromInt(5000)))

		issued, err := time.Parse(dateLayout, doc.DocumentDate)
		require.NoError(t, err)
		due, err := time.Parse(dateLayout, doc.DueDate)
		require.NoError(t, err)
		assert.False(t, due.Before(issued), "due date before document date")
		assert.False(t, issued.After(fixedToday()))
		assert.True(t, issued.After(fixedToday().AddDate(0, 0, -28)))
	}
}

func TestGenerator_InvoiceOf(t *testing.T) {
	g := New(1, "EUR", WithClock(fixedToday))
	doc := g.InvoiceOf(uuid.New(), decimal.NewFromInt(1000))
	assert.Equal(t, "2026-05-20", doc.DocumentDate)
	assert.Equal(t, "2026-05-20", doc.DueDate)
	assert.Equal(t, "1000", doc.TotalAmount.String())
}

func TestGenerator_OutgoingPayment(t *testing.T) {
	account := uuid.New()
	party := uuid.New()
	g := New(3, "EUR", WithClock(fixedToday), WithBankAccount(account))

	fixed := g.OutgoingPayment(party, decimal.NewFromInt(150))
	assert.Equal(t, "bank_out", fixed.Type)
	assert.Equal(t, account, fixed.BankAccountID)
	assert.Equal(t, "150", fixed.Amount.String())
	assert.Equal(t, "2026-05-20", fixed.PaymentDate)

	random := g.OutgoingPayment(party, decimal.Zero)
	assert.True(t, random.Amount.IsPositive())
}

func TestGenerator_Intn(t *testing.T) {
	g := New(9, "EUR")
	assert.Zero(t, g.Intn(0))
	assert.Zero(t, g.Intn(1))
	for i := 0; i < 100; i++ {
		n := g.Intn(5)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 5)
	}
}
