package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_FullSettlement(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "1000", date(2024, 3, 1), date(2024, 3, 31))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "1000", date(2024, 3, 10))

	res, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("1000")}})
	require.NoError(t, err)
	require.Len(t, res.Allocations, 1)

	doc = f.reloadDocument(doc.ID)
	pay = f.reloadPayment(pay.ID)
	assert.Equal(t, DocumentStatusSettled, doc.Status())
	assert.True(t, doc.AllocatedAmount().Equal(dec("1000")))
	assert.True(t, doc.UnpaidBalance().IsZero())
	assert.True(t, pay.UnallocatedAmount().IsZero())
	assert.Contains(t, f.store.eventTypes(), EventTypePaymentAllocated)
}

func TestAllocate_SecondAllocationOverflows(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "1000", date(2024, 3, 1), date(2024, 3, 31))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "1000", date(2024, 3, 10))

	_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("600")}})
	require.NoError(t, err)

	_, err = f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("500")}})
	require.Error(t, err)
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	doc = f.reloadDocument(doc.ID)
	assert.Equal(t, DocumentStatusPartial, doc.Status())
	assert.True(t, doc.AllocatedAmount().Equal(dec("600")))
	assert.True(t, f.reloadPayment(pay.ID).UnallocatedAmount().Equal(dec("400")))
}

func TestAllocate_DocumentBalanceExceeded(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "1000", date(2024, 3, 1), date(2024, 3, 31))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "5000", date(2024, 3, 10))

	_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("1000.01")}})
	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "document", insufficient.Subject)
}

func TestAllocate_BatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	good := f.document(supplier.ID, DocumentTypeSupplierInvoice, "300", date(2024, 3, 1), date(2024, 3, 20))
	cancelled := f.document(supplier.ID, DocumentTypeSupplierInvoice, "300", date(2024, 3, 1), date(2024, 3, 21))
	_, err := f.engines.Documents.Cancel(f.ctx, f.companyID, cancelled.ID, "duplicate")
	require.NoError(t, err)
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "600", date(2024, 3, 10))

	_, err = f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{
		{DocumentID: good.ID, Amount: dec("300")},
		{DocumentID: cancelled.ID, Amount: dec("300")},
	})
	var notOpen *DocumentNotOpenError
	require.ErrorAs(t, err, &notOpen)
	assert.Equal(t, cancelled.ID, notOpen.DocumentID)

	assert.Zero(t, f.store.allocationCount())
	assert.Equal(t, DocumentStatusPending, f.reloadDocument(good.ID).Status())
	assert.True(t, f.reloadPayment(pay.ID).UnallocatedAmount().Equal(dec("600")))
}

func TestAllocate_Rejections(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	customer := f.party(PartyTypeCustomer)
	payable := f.document(supplier.ID, DocumentTypeSupplierInvoice, "100", date(2024, 3, 1), date(2024, 3, 31))
	otherParty := f.document(customer.ID, DocumentTypeCustomerCreditNote, "100", date(2024, 3, 1), date(2024, 3, 31))
	outPay := f.payment(supplier.ID, PaymentTypeBankOut, "100", date(2024, 3, 10))
	inPay := f.payment(supplier.ID, PaymentTypeBankIn, "100", date(2024, 3, 10))

	t.Run("direction mismatch", func(t *testing.T) {
		_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, inPay.ID, []AllocationLine{{DocumentID: payable.ID, Amount: dec("50")}})
		var mismatch *DirectionMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, DirectionPayable, mismatch.DocumentDirection)
		assert.Equal(t, PaymentIn, mismatch.PaymentDirection)
	})

	t.Run("other party", func(t *testing.T) {
		_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, outPay.ID, []AllocationLine{{DocumentID: otherParty.ID, Amount: dec("50")}})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("draft payment", func(t *testing.T) {
		pid := supplier.ID
		draft, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
			CompanyID: f.companyID, Type: PaymentTypeCashOut, PartyID: &pid, CashboxID: &f.cashboxID,
			PaymentDate: date(2024, 3, 10), Amount: dec("10"),
		})
		require.NoError(t, err)
		_, err = f.engines.Allocations.Allocate(f.ctx, f.companyID, draft.ID, []AllocationLine{{DocumentID: payable.ID, Amount: dec("10")}})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("duplicate lines", func(t *testing.T) {
		_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, outPay.ID, []AllocationLine{
			{DocumentID: payable.ID, Amount: dec("10")},
			{DocumentID: payable.ID, Amount: dec("10")},
		})
		assert.True(t, errors.Is(err, ErrValidation))
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, outPay.ID, []AllocationLine{{DocumentID: uuid.New(), Amount: dec("10")}})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	assert.Zero(t, f.store.allocationCount())
}

func TestAllocate_PeriodLocked(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "100", date(2024, 1, 20), date(2024, 2, 20))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "100", date(2024, 3, 10))
	f.lock(2024, time.January)

	_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("100")}})
	var locked *PeriodLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 2024, locked.Year)
	assert.Equal(t, 1, locked.Month)
}

func TestDeallocate(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "1000", date(2024, 3, 1), date(2024, 3, 31))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "1000", date(2024, 3, 10))
	res, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("1000")}})
	require.NoError(t, err)

	_, err = f.engines.Allocations.Deallocate(f.ctx, f.companyID, res.Allocations[0].ID)
	require.NoError(t, err)

	assert.Equal(t, DocumentStatusPending, f.reloadDocument(doc.ID).Status())
	assert.True(t, f.reloadPayment(pay.ID).UnallocatedAmount().Equal(dec("1000")))
	assert.Zero(t, f.store.allocationCount())

	_, err = f.engines.Allocations.Deallocate(f.ctx, f.companyID, res.Allocations[0].ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLockedPeriod_DeallocateFailsReverseSucceeds(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "1000", date(2024, 2, 5), date(2024, 2, 28))
	pay := f.payment(supplier.ID, PaymentTypeBankOut, "400", date(2024, 2, 10))
	res, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("400")}})
	require.NoError(t, err)
	f.lock(2024, time.February)

	_, err = f.engines.Allocations.Deallocate(f.ctx, f.companyID, res.Allocations[0].ID)
	var locked *PeriodLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 1, f.store.allocationCount())

	rev, err := f.engines.Documents.Reverse(f.ctx, f.companyID, doc.ID, date(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeSupplierCreditNote, rev.Type())
	assert.Equal(t, DirectionReceivable, rev.Direction())
	assert.True(t, rev.TotalAmount().Equal(doc.TotalAmount()))
	require.NotNil(t, rev.ReversalOfID())
	assert.Equal(t, doc.ID, *rev.ReversalOfID())
	assert.Equal(t, 3, rev.Period().Month)

	orig := f.reloadDocument(doc.ID)
	assert.Equal(t, DocumentStatusPartial, orig.Status())
	assert.Contains(t, f.store.eventTypes(), EventTypeDocumentReversed)
}

func TestSuggest_OldestDueFirst(t *testing.T) {
	f := newFixture(t)
	customer := f.party(PartyTypeCustomer)
	later := f.document(customer.ID, DocumentTypeCustomerInvoice, "500", date(2024, 1, 5), date(2024, 2, 5))
	earlier := f.document(customer.ID, DocumentTypeCustomerInvoice, "200", date(2024, 1, 2), date(2024, 1, 10))
	third := f.document(customer.ID, DocumentTypeCustomerInvoice, "50", date(2024, 1, 2), date(2024, 3, 1))
	f.document(customer.ID, DocumentTypeCustomerCreditNote, "70", date(2024, 1, 2), date(2024, 1, 3))
	pay := f.payment(customer.ID, PaymentTypeCashIn, "300", date(2024, 3, 10))

	s, err := f.engines.Allocations.Suggest(f.ctx, f.companyID, pay.ID)
	require.NoError(t, err)
	require.Len(t, s.Lines, 3)

	assert.Equal(t, earlier.ID, s.Lines[0].DocumentID)
	assert.True(t, s.Lines[0].Suggested.Equal(dec("200")))
	assert.Equal(t, later.ID, s.Lines[1].DocumentID)
	assert.True(t, s.Lines[1].Suggested.Equal(dec("100")))
	assert.Equal(t, third.ID, s.Lines[2].DocumentID)
	assert.True(t, s.Lines[2].Suggested.IsZero())
	assert.True(t, s.TotalSuggested.Equal(dec("300")))
	assert.True(t, s.Remaining.IsZero())
	assert.Len(t, s.Allocations(), 2)

	assert.Zero(t, f.store.allocationCount())
}

func TestReversal_SettlingReversalMarksOriginalReversed(t *testing.T) {
	f := newFixture(t)
	customer := f.party(PartyTypeCustomer)
	inv := f.document(customer.ID, DocumentTypeCustomerInvoice, "250", date(2024, 3, 1), date(2024, 3, 31))
	rev, err := f.engines.Documents.Reverse(f.ctx, f.companyID, inv.ID, date(2024, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, DirectionPayable, rev.Direction())

	_, err = f.engines.Documents.Reverse(f.ctx, f.companyID, inv.ID, date(2024, 3, 6))
	assert.True(t, errors.Is(err, ErrValidation))

	refund := f.payment(customer.ID, PaymentTypeCashOut, "250", date(2024, 3, 6))
	_, err = f.engines.Allocations.Allocate(f.ctx, f.companyID, refund.ID, []AllocationLine{{DocumentID: rev.ID, Amount: dec("250")}})
	require.NoError(t, err)

	assert.Equal(t, DocumentStatusSettled, f.reloadDocument(rev.ID).Status())
	assert.Equal(t, DocumentStatusReversed, f.reloadDocument(inv.ID).Status())
}

func TestReversal_OriginalStaysReversedWhenReversalIsDeallocated(t *testing.T) {
	f := newFixture(t)
	customer := f.party(PartyTypeCustomer)
	inv := f.document(customer.ID, DocumentTypeCustomerInvoice, "250", date(2024, 3, 1), date(2024, 3, 31))
	rev, err := f.engines.Documents.Reverse(f.ctx, f.companyID, inv.ID, date(2024, 3, 5))
	require.NoError(t, err)
	refund := f.payment(customer.ID, PaymentTypeCashOut, "250", date(2024, 3, 6))
	res, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, refund.ID, []AllocationLine{{DocumentID: rev.ID, Amount: dec("250")}})
	require.NoError(t, err)
	require.Equal(t, DocumentStatusReversed, f.reloadDocument(inv.ID).Status())

	_, err = f.engines.Allocations.Deallocate(f.ctx, f.companyID, res.Allocations[0].ID)
	require.NoError(t, err)

	assert.Equal(t, DocumentStatusPending, f.reloadDocument(rev.ID).Status())
	assert.Equal(t, DocumentStatusReversed, f.reloadDocument(inv.ID).Status())
	assert.True(t, f.reloadPayment(refund.ID).UnallocatedAmount().Equal(dec("250")))
}
