package settlement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentInput_Validate(t *testing.T) {
	party := uuid.New()
	cash := uuid.New()
	bank := uuid.New()
	tests := []struct {
		name  string
		in    CreatePaymentInput
		valid bool
	}{
		{
			name:  "cash out with party",
			in:    CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeCashOut, PartyID: &party, CashboxID: &cash, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
			valid: true,
		},
		{
			name: "both source accounts",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeCashOut, PartyID: &party, CashboxID: &cash, BankAccountID: &bank, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
		{
			name: "no source account",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeCashOut, PartyID: &party, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
		{
			name: "missing party",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeBankIn, BankAccountID: &bank, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
		{
			name: "fee above amount",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypePOSIn, PartyID: &party, BankAccountID: &bank, PaymentDate: date(2024, 3, 1), Amount: dec("10"), FeeAmount: dec("11")},
		},
		{
			name:  "transfer between own accounts",
			in:    CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeTransfer, CashboxID: &cash, DestBankAccountID: &bank, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
			valid: true,
		},
		{
			name: "transfer with party",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeTransfer, PartyID: &party, CashboxID: &cash, DestBankAccountID: &bank, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
		{
			name: "transfer to itself",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeTransfer, CashboxID: &cash, DestCashboxID: &cash, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
		{
			name: "destination on a non-transfer",
			in:   CreatePaymentInput{CompanyID: uuid.New(), Type: PaymentTypeBankOut, PartyID: &party, BankAccountID: &bank, DestCashboxID: &cash, PaymentDate: date(2024, 3, 1), Amount: dec("10")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}
}

func TestPaymentEngine_ConfirmCancel(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	pid := supplier.ID
	p, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID:   f.companyID,
		Type:        PaymentTypeCashOut,
		PartyID:     &pid,
		CashboxID:   &f.cashboxID,
		PaymentDate: date(2024, 3, 5),
		Amount:      dec("80"),
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusDraft, p.Status())
	assert.Equal(t, PaymentOut, p.Direction())
	assert.True(t, p.UnallocatedAmount().Equal(dec("80")))

	p, err = f.engines.Payments.Confirm(f.ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusConfirmed, p.Status())
	require.NotNil(t, p.ConfirmedBy)
	assert.Equal(t, f.actor, *p.ConfirmedBy)

	_, err = f.engines.Payments.Confirm(f.ctx, f.companyID, p.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "50", date(2024, 3, 1), date(2024, 3, 30))
	res, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, p.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("50")}})
	require.NoError(t, err)

	_, err = f.engines.Payments.Cancel(f.ctx, f.companyID, p.ID, "duplicate")
	assert.True(t, errors.Is(err, ErrHasActiveAllocations))

	_, err = f.engines.Allocations.Deallocate(f.ctx, f.companyID, res.Allocations[0].ID)
	require.NoError(t, err)
	p, err = f.engines.Payments.Cancel(f.ctx, f.companyID, p.ID, "duplicate")
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusCancelled, p.Status())
}

func TestPaymentEngine_AccountBalance(t *testing.T) {
	f := newFixture(t)
	customer := f.party(PartyTypeCustomer)
	supplier := f.party(PartyTypeSupplier)
	f.payment(customer.ID, PaymentTypePOSIn, "1000", date(2024, 3, 1))
	f.payment(supplier.ID, PaymentTypeBankOut, "300", date(2024, 3, 2))

	pid := customer.ID
	pos, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID: f.companyID, Type: PaymentTypePOSIn, PartyID: &pid, BankAccountID: &f.bankID,
		PaymentDate: date(2024, 3, 3), Amount: dec("200"), FeeAmount: dec("4"),
	})
	require.NoError(t, err)
	_, err = f.engines.Payments.Confirm(f.ctx, f.companyID, pos.ID)
	require.NoError(t, err)

	transfer, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID: f.companyID, Type: PaymentTypeTransfer, BankAccountID: &f.bankID, DestCashboxID: &f.cashboxID,
		PaymentDate: date(2024, 3, 4), Amount: dec("150"),
	})
	require.NoError(t, err)
	_, err = f.engines.Payments.Confirm(f.ctx, f.companyID, transfer.ID)
	require.NoError(t, err)

	// drafts never move money
	_, err = f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID: f.companyID, Type: PaymentTypeBankOut, PartyID: &pid, BankAccountID: &f.bankID,
		PaymentDate: date(2024, 3, 4), Amount: dec("999"),
	})
	require.NoError(t, err)

	bank, err := f.engines.Payments.AccountBalance(f.ctx, f.companyID, AccountRef{Kind: AccountKindBankAccount, ID: f.bankID}, date(2024, 3, 31))
	require.NoError(t, err)
	assert.True(t, bank.Inflows.Equal(dec("1196")), bank.Inflows.String())
	assert.True(t, bank.Outflows.Equal(dec("450")), bank.Outflows.String())
	assert.True(t, bank.Balance.Equal(dec("746")), bank.Balance.String())

	cash, err := f.engines.Payments.AccountBalance(f.ctx, f.companyID, AccountRef{Kind: AccountKindCashbox, ID: f.cashboxID}, date(2024, 3, 31))
	require.NoError(t, err)
	assert.True(t, cash.Balance.Equal(dec("150")))

	early, err := f.engines.Payments.AccountBalance(f.ctx, f.companyID, AccountRef{Kind: AccountKindBankAccount, ID: f.bankID}, date(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, early.Balance.Equal(dec("1000")))
}

func TestPaymentEngine_TransferIsNotAllocatable(t *testing.T) {
	f := newFixture(t)
	supplier := f.party(PartyTypeSupplier)
	doc := f.document(supplier.ID, DocumentTypeSupplierInvoice, "50", date(2024, 3, 1), date(2024, 3, 30))
	transfer, err := f.engines.Payments.Create(f.ctx, CreatePaymentInput{
		CompanyID: f.companyID, Type: PaymentTypeTransfer, CashboxID: &f.cashboxID, DestBankAccountID: &f.bankID,
		PaymentDate: date(2024, 3, 4), Amount: dec("50"),
	})
	require.NoError(t, err)
	_, err = f.engines.Payments.Confirm(f.ctx, f.companyID, transfer.ID)
	require.NoError(t, err)

	_, err = f.engines.Allocations.Allocate(f.ctx, f.companyID, transfer.ID, []AllocationLine{{DocumentID: doc.ID, Amount: dec("50")}})
	assert.True(t, errors.Is(err, ErrValidation))

	s, err := f.engines.Allocations.Suggest(f.ctx, f.companyID, transfer.ID)
	require.NoError(t, err)
	assert.Empty(t, s.Lines)
}
