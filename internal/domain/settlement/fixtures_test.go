package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *memStore
	engines   *Engines
	companyID uuid.UUID
	actor     uuid.UUID
	bankID    uuid.UUID
	cashboxID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	actor := uuid.New()
	return &fixture{
		t:         t,
		ctx:       shared.WithActor(context.Background(), actor),
		store:     store,
		engines:   NewEngines(store, WithClock(shared.FixedClock(date(2024, time.March, 15))), WithDefaultCurrency("TRY")),
		companyID: uuid.New(),
		actor:     actor,
		bankID:    uuid.New(),
		cashboxID: uuid.New(),
	}
}

func (f *fixture) party(t PartyType) *Party {
	f.t.Helper()
	p, err := f.engines.Parties.Create(f.ctx, NewPartyInput{CompanyID: f.companyID, Name: "Party " + string(t), Type: t})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) document(partyID uuid.UUID, t DocumentType, total string, docDate, due time.Time) *Document {
	f.t.Helper()
	d, err := f.engines.Documents.Create(f.ctx, CreateDocumentInput{
		CompanyID:    f.companyID,
		Type:         t,
		PartyID:      partyID,
		DocumentDate: docDate,
		DueDate:      due,
		TotalAmount:  dec(total),
	})
	require.NoError(f.t, err)
	return d
}

func (f *fixture) payment(partyID uuid.UUID, t PaymentType, amount string, on time.Time) *Payment {
	f.t.Helper()
	pid := partyID
	p, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID:     f.companyID,
		Type:          t,
		PartyID:       &pid,
		BankAccountID: &f.bankID,
		PaymentDate:   on,
		Amount:        dec(amount),
	})
	require.NoError(f.t, err)
	p, err = f.engines.Payments.Confirm(f.ctx, f.companyID, p.ID)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) reloadDocument(id uuid.UUID) *Document {
	f.t.Helper()
	d, err := f.engines.Documents.Get(f.ctx, f.companyID, id)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) reloadPayment(id uuid.UUID) *Payment {
	f.t.Helper()
	p, err := f.engines.Payments.Get(f.ctx, f.companyID, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) lock(y int, m time.Month) {
	f.t.Helper()
	_, err := f.engines.Periods.Lock(f.ctx, PeriodKey{CompanyID: f.companyID, Year: y, Month: int(m)})
	require.NoError(f.t, err)
}
