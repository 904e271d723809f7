package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/event"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
)

type recordedOp struct {
	operation string
	err       error
}

type fakeRecorder struct {
	mu  sync.Mutex
	ops []recordedOp
}

func (r *fakeRecorder) RecordOperation(_ context.Context, _ uuid.UUID, operation string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, recordedOp{operation: operation, err: err})
}

func (r *fakeRecorder) last() recordedOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[len(r.ops)-1]
}

type serviceFixture struct {
	t        *testing.T
	ctx      context.Context
	svc      *Service
	recorder *fakeRecorder
	logs     *observer.ObservedLogs
	company  uuid.UUID
	bank     uuid.UUID
}

func march(d int) Date { return NewDate(time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.SettlementModels()...))

	core, logs := observer.New(zapcore.DebugLevel)
	recorder := &fakeRecorder{}
	store := persistence.NewGormStore(db, event.NewEventSerializer())
	engines := settlement.NewEngines(store,
		settlement.WithClock(shared.FixedClock(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC))),
		settlement.WithDefaultCurrency("TRY"),
	)
	return &serviceFixture{
		t:        t,
		ctx:      shared.WithActor(context.Background(), uuid.New()),
		svc:      NewService(engines, WithMetrics(recorder), WithLogger(zap.New(core))),
		recorder: recorder,
		logs:     logs,
		company:  uuid.New(),
		bank:     uuid.New(),
	}
}

func (f *serviceFixture) party(t settlement.PartyType) *PartyResponse {
	f.t.Helper()
	p, err := f.svc.CreateParty(f.ctx, f.company, CreatePartyRequest{Name: "Marmara Lojistik", Type: string(t)})
	require.NoError(f.t, err)
	return p
}

func (f *serviceFixture) document(partyID uuid.UUID, t settlement.DocumentType, total string, due Date) *DocumentResponse {
	f.t.Helper()
	d, err := f.svc.CreateDocument(f.ctx, f.company, CreateDocumentRequest{
		Type:         string(t),
		PartyID:      partyID,
		DocumentDate: march(2),
		DueDate:      due,
		TotalAmount:  money(total),
	})
	require.NoError(f.t, err)
	return d
}

func (f *serviceFixture) payment(partyID uuid.UUID, t settlement.PaymentType, amount string) *PaymentResponse {
	f.t.Helper()
	p, err := f.svc.CreatePayment(f.ctx, f.company, CreatePaymentRequest{
		Type:          string(t),
		PartyID:       &partyID,
		BankAccountID: &f.bank,
		PaymentDate:   march(10),
		Amount:        money(amount),
	})
	require.NoError(f.t, err)
	p, err = f.svc.ConfirmPayment(f.ctx, f.company, p.ID)
	require.NoError(f.t, err)
	return p
}

func TestService_AllocateAndDeallocate(t *testing.T) {
	f := newServiceFixture(t)
	supplier := f.party(settlement.PartyTypeSupplier)
	doc := f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "1000", march(31))
	pay := f.payment(supplier.ID, settlement.PaymentTypeBankOut, "400")

	res, err := f.svc.Allocate(f.ctx, f.company, pay.ID, AllocateRequest{
		Lines: []AllocationLineRequest{{DocumentID: doc.ID, Amount: money("400")}},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, string(settlement.DocumentStatusPartial), res.Documents[0].Status)
	assert.True(t, res.Documents[0].UnpaidBalance.Equal(money("600")))
	assert.True(t, res.Payment.UnallocatedAmount.IsZero())
	assert.Equal(t, "allocation.allocate", f.recorder.last().operation)

	got, err := f.svc.GetPayment(f.ctx, f.company, pay.ID)
	require.NoError(t, err)
	require.Len(t, got.Allocations, 1)

	balance, err := f.svc.PartyBalance(f.ctx, f.company, supplier.ID)
	require.NoError(t, err)
	assert.True(t, balance.PayableOutstanding.Equal(money("600")), balance.PayableOutstanding.String())

	res, err = f.svc.Deallocate(f.ctx, f.company, got.Allocations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, string(settlement.DocumentStatusPending), res.Documents[0].Status)
	assert.True(t, res.Payment.UnallocatedAmount.Equal(money("400")))

	applied := f.logs.FilterMessage("settlement operation applied").FilterField(zap.String("operation", "allocation.deallocate"))
	assert.Equal(t, 1, applied.Len())
}

func TestService_AllocateUsingSuggestion(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.party(settlement.PartyTypeCustomer)
	older := f.document(customer.ID, settlement.DocumentTypeCustomerInvoice, "300", march(20))
	newer := f.document(customer.ID, settlement.DocumentTypeCustomerInvoice, "500", march(28))
	pay := f.payment(customer.ID, settlement.PaymentTypeBankIn, "450")

	sug, err := f.svc.SuggestAllocations(f.ctx, f.company, pay.ID)
	require.NoError(t, err)
	require.Len(t, sug.Lines, 2)
	assert.Equal(t, older.ID, sug.Lines[0].DocumentID)
	assert.True(t, sug.Lines[0].Suggested.Equal(money("300")))
	assert.Equal(t, newer.ID, sug.Lines[1].DocumentID)
	assert.True(t, sug.Lines[1].Suggested.Equal(money("150")))

	res, err := f.svc.Allocate(f.ctx, f.company, pay.ID, AllocateRequest{UseSuggestion: true})
	require.NoError(t, err)
	assert.Len(t, res.Allocations, 2)
	assert.True(t, res.Payment.UnallocatedAmount.IsZero())
}

func TestService_OverAllocationRejected(t *testing.T) {
	f := newServiceFixture(t)
	supplier := f.party(settlement.PartyTypeSupplier)
	doc := f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "100", march(31))
	pay := f.payment(supplier.ID, settlement.PaymentTypeBankOut, "500")

	_, err := f.svc.Allocate(f.ctx, f.company, pay.ID, AllocateRequest{
		Lines: []AllocationLineRequest{{DocumentID: doc.ID, Amount: money("150")}},
	})
	require.ErrorIs(t, err, settlement.ErrInsufficientBalance)

	last := f.recorder.last()
	assert.Equal(t, "allocation.allocate", last.operation)
	assert.ErrorIs(t, last.err, settlement.ErrInsufficientBalance)

	rejected := f.logs.FilterMessage("settlement operation rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.WarnLevel, rejected[0].Level)
	assert.Equal(t, settlement.CodeInsufficientBalance, rejected[0].ContextMap()["code"])
	assert.Zero(t, f.logs.FilterMessage("settlement operation failed").Len())
}

func TestService_LockedPeriod(t *testing.T) {
	f := newServiceFixture(t)
	supplier := f.party(settlement.PartyTypeSupplier)

	period, err := f.svc.LockPeriod(f.ctx, f.company, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, string(settlement.PeriodStatusLocked), period.Status)
	assert.NotNil(t, period.LockedBy)

	_, err = f.svc.CreateDocument(f.ctx, f.company, CreateDocumentRequest{
		Type:         string(settlement.DocumentTypeSupplierInvoice),
		PartyID:      supplier.ID,
		DocumentDate: march(3),
		DueDate:      march(30),
		TotalAmount:  money("10"),
	})
	require.ErrorIs(t, err, settlement.ErrPeriodLocked)

	periods, err := f.svc.ListPeriods(f.ctx, f.company, 2026)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, 3, periods[0].Month)

	period, err = f.svc.UnlockPeriod(f.ctx, f.company, 2026, 3)
	require.NoError(t, err)
	assert.Equal(t, string(settlement.PeriodStatusOpen), period.Status)

	doc := f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "10", march(30))
	assert.Equal(t, "2026-03", doc.Period)
}

func TestService_ReverseDocument(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.party(settlement.PartyTypeCustomer)
	doc := f.document(customer.ID, settlement.DocumentTypeCustomerInvoice, "250", march(25))

	rev, err := f.svc.ReverseDocument(f.ctx, f.company, doc.ID, ReverseDocumentRequest{ReversalDate: march(12)})
	require.NoError(t, err)
	assert.Equal(t, string(settlement.DocumentTypeCustomerCreditNote), rev.Type)
	require.NotNil(t, rev.ReversalOfID)
	assert.Equal(t, doc.ID, *rev.ReversalOfID)
	assert.True(t, rev.TotalAmount.Equal(money("250")))

	_, err = f.svc.ReverseDocument(f.ctx, f.company, doc.ID, ReverseDocumentRequest{ReversalDate: march(12)})
	assert.ErrorIs(t, err, settlement.ErrValidation)
}

func TestService_ChequeCollect(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.party(settlement.PartyTypeCustomer)

	ch, err := f.svc.ReceiveCheque(f.ctx, f.company, ChequeRequest{
		PartyID:      customer.ID,
		ChequeNumber: "CH-0042",
		BankName:     "Ziraat",
		IssueDate:    march(5),
		DueDate:      march(14),
		Amount:       money("750"),
	})
	require.NoError(t, err)
	assert.Equal(t, string(settlement.ChequeStatusInPortfolio), ch.Status)
	assert.Equal(t, string(settlement.DocumentTypeChequeReceivable), ch.Document.Type)

	_, err = f.svc.DepositCheque(f.ctx, f.company, ch.ID, ChequeMoveRequest{Date: march(6)})
	assert.ErrorIs(t, err, settlement.ErrValidation)

	ch, err = f.svc.DepositCheque(f.ctx, f.company, ch.ID, ChequeMoveRequest{Date: march(6), BankAccountID: &f.bank})
	require.NoError(t, err)
	assert.Equal(t, string(settlement.ChequeStatusDeposited), ch.Status)

	ch, err = f.svc.CollectCheque(f.ctx, f.company, ch.ID, ChequeMoveRequest{Date: march(14)})
	require.NoError(t, err)
	assert.Equal(t, string(settlement.ChequeStatusCollected), ch.Status)
	assert.Equal(t, string(settlement.DocumentStatusSettled), ch.Document.Status)
	require.NotNil(t, ch.Payment)
	assert.Equal(t, string(settlement.PaymentTypeChequeIn), ch.Payment.Type)

	bal, err := f.svc.AccountBalance(f.ctx, f.company, nil, &f.bank, time.Time{})
	require.NoError(t, err)
	assert.True(t, bal.Balance.Equal(money("750")), bal.Balance.String())
	assert.Equal(t, 1, bal.Payments)

	_, err = f.svc.BounceCheque(f.ctx, f.company, ch.ID, ChequeMoveRequest{Date: march(15)})
	assert.ErrorIs(t, err, settlement.ErrInvalidTransition)
}

func TestService_AccountBalanceRequiresOneAccount(t *testing.T) {
	f := newServiceFixture(t)
	cashbox := uuid.New()

	_, err := f.svc.AccountBalance(f.ctx, f.company, &cashbox, &f.bank, time.Time{})
	assert.ErrorIs(t, err, settlement.ErrValidation)
	_, err = f.svc.AccountBalance(f.ctx, f.company, nil, nil, time.Time{})
	assert.ErrorIs(t, err, settlement.ErrValidation)
}

func TestService_Forecast(t *testing.T) {
	f := newServiceFixture(t)
	customer := f.party(settlement.PartyTypeCustomer)
	supplier := f.party(settlement.PartyTypeSupplier)
	f.document(customer.ID, settlement.DocumentTypeCustomerInvoice, "900", march(20))
	f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "400", march(20))
	f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "100", march(25))
	f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "999", NewDate(time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)))

	fc, err := f.svc.Forecast(f.ctx, f.company, march(16).Time, march(31).Time)
	require.NoError(t, err)
	require.Len(t, fc.Buckets, 2)
	assert.Equal(t, march(20), fc.Buckets[0].Date)
	assert.True(t, fc.Buckets[0].Net.Equal(money("500")))
	assert.True(t, fc.TotalInflow.Equal(money("900")))
	assert.True(t, fc.TotalOutflow.Equal(money("500")))
	assert.True(t, fc.Net.Equal(money("400")))

	_, err = f.svc.Forecast(f.ctx, f.company, march(31).Time, march(1).Time)
	assert.ErrorIs(t, err, settlement.ErrValidation)
}

func TestService_ListDocuments(t *testing.T) {
	f := newServiceFixture(t)
	supplier := f.party(settlement.PartyTypeSupplier)
	f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "10", march(18))
	f.document(supplier.ID, settlement.DocumentTypeSupplierInvoice, "20", march(28))

	page, err := f.svc.ListDocuments(f.ctx, f.company, DocumentListFilter{
		PartyID: supplier.ID.String(),
		DueFrom: "2026-03-20",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].TotalAmount.Equal(money("20")))

	_, err = f.svc.ListDocuments(f.ctx, f.company, DocumentListFilter{DueTo: "31/03/2026", Status: "paid"})
	var verr *settlement.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
}

func TestService_PartyLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	linked := uuid.New()

	first, err := f.svc.LinkParty(f.ctx, f.company, LinkPartyRequest{
		LinkableType: "employee", LinkableID: linked, Name: "Ayse Kaya", Type: string(settlement.PartyTypeEmployee),
	})
	require.NoError(t, err)
	again, err := f.svc.LinkParty(f.ctx, f.company, LinkPartyRequest{
		LinkableType: "employee", LinkableID: linked, Name: "Ayse Kaya", Type: string(settlement.PartyTypeEmployee),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	require.NotNil(t, again.LinkableID)
	assert.Equal(t, linked, *again.LinkableID)

	p, err := f.svc.DeactivateParty(f.ctx, f.company, first.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)

	_, err = f.svc.GetParty(f.ctx, f.company, uuid.New())
	assert.ErrorIs(t, err, settlement.ErrNotFound)
}

func TestDate_JSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2026-03-05"`)))
	assert.Equal(t, march(5), d)

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-05"`, string(b))

	require.NoError(t, d.UnmarshalJSON([]byte(`null`)))
	assert.True(t, d.IsZero())
	b, err = d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	assert.Error(t, d.UnmarshalJSON([]byte(`"05.03.2026"`)))
}
