package settlement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast(t *testing.T) {
	f := newFixture(t)
	customer := f.party(PartyTypeCustomer)
	supplier := f.party(PartyTypeSupplier)

	f.document(customer.ID, DocumentTypeCustomerInvoice, "500", date(2024, 3, 1), date(2024, 4, 10))
	f.document(supplier.ID, DocumentTypeSupplierInvoice, "200", date(2024, 3, 1), date(2024, 4, 10))
	f.document(supplier.ID, DocumentTypeSupplierInvoice, "80", date(2024, 3, 1), date(2024, 4, 20))
	f.document(customer.ID, DocumentTypeCustomerInvoice, "999", date(2024, 3, 1), date(2024, 6, 1))

	partial := f.document(customer.ID, DocumentTypeCustomerInvoice, "300", date(2024, 3, 1), date(2024, 4, 20))
	pay := f.payment(customer.ID, PaymentTypeCashIn, "100", date(2024, 3, 2))
	_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, pay.ID, []AllocationLine{{DocumentID: partial.ID, Amount: dec("100")}})
	require.NoError(t, err)

	cancelled := f.document(customer.ID, DocumentTypeCustomerInvoice, "40", date(2024, 3, 1), date(2024, 4, 10))
	_, err = f.engines.Documents.Cancel(f.ctx, f.companyID, cancelled.ID, "void")
	require.NoError(t, err)

	// counted while in the portfolio
	f.receiveCheque(customer.ID, "60")
	// endorsed cheques leave the forecast
	endorsed := f.receiveCheque(customer.ID, "70")
	_, err = f.engines.Cheques.Endorse(f.ctx, f.companyID, endorsed.Cheque.ID, supplier.ID, date(2024, 3, 5))
	require.NoError(t, err)

	fc, err := f.engines.Forecast.Forecast(f.ctx, f.companyID, date(2024, 4, 1), date(2024, 4, 30))
	require.NoError(t, err)
	require.Len(t, fc.Buckets, 3)

	assert.Equal(t, date(2024, 4, 1), fc.Buckets[0].Date)
	assert.True(t, fc.Buckets[0].Inflow.Equal(dec("60")))

	assert.Equal(t, date(2024, 4, 10), fc.Buckets[1].Date)
	assert.True(t, fc.Buckets[1].Inflow.Equal(dec("500")))
	assert.True(t, fc.Buckets[1].Outflow.Equal(dec("200")))
	assert.True(t, fc.Buckets[1].Net.Equal(dec("300")))

	assert.Equal(t, date(2024, 4, 20), fc.Buckets[2].Date)
	assert.True(t, fc.Buckets[2].Inflow.Equal(dec("200")))
	assert.True(t, fc.Buckets[2].Outflow.Equal(dec("80")))

	assert.True(t, fc.TotalInflow.Equal(dec("760")))
	assert.True(t, fc.TotalOutflow.Equal(dec("280")))
	assert.True(t, fc.Net.Equal(dec("480")))
}

func TestForecast_InvalidRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.engines.Forecast.Forecast(f.ctx, f.companyID, date(2024, 5, 1), date(2024, 4, 1))
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engines.Forecast.Forecast(f.ctx, f.companyID, date(2024, 1, 1), date(2025, 6, 1))
	assert.True(t, errors.Is(err, ErrValidation))
}
