package settlement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyLedger_EnsureForLinkable(t *testing.T) {
	f := newFixture(t)
	ref := LinkableRef{Type: "employee", ID: uuid.New()}

	first, err := f.engines.Parties.EnsureForLinkable(f.ctx, f.companyID, ref, "Ayse Yilmaz", PartyTypeEmployee)
	require.NoError(t, err)
	second, err := f.engines.Parties.EnsureForLinkable(f.ctx, f.companyID, ref, "renamed", PartyTypeEmployee)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ayse Yilmaz", second.Name)

	found, err := f.engines.Parties.FindByLinkable(f.ctx, f.companyID, ref)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = f.engines.Parties.Create(f.ctx, NewPartyInput{CompanyID: f.companyID, Name: "dup", Type: PartyTypeEmployee, Linkable: &ref})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.engines.Parties.FindByLinkable(f.ctx, f.companyID, LinkableRef{Type: "employee", ID: uuid.New()})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPartyLedger_Deactivate(t *testing.T) {
	f := newFixture(t)
	p := f.party(PartyTypeOther)

	p, err := f.engines.Parties.Deactivate(f.ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)

	p, err = f.engines.Parties.Deactivate(f.ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestPartyLedger_Balance(t *testing.T) {
	f := newFixture(t)
	p := f.party(PartyTypeCustomer)
	inv := f.document(p.ID, DocumentTypeCustomerInvoice, "1000", date(2024, 3, 1), date(2024, 3, 31))
	f.document(p.ID, DocumentTypeCustomerCreditNote, "100", date(2024, 3, 1), date(2024, 3, 31))
	in := f.payment(p.ID, PaymentTypeBankIn, "700", date(2024, 3, 5))
	_, err := f.engines.Allocations.Allocate(f.ctx, f.companyID, in.ID, []AllocationLine{{DocumentID: inv.ID, Amount: dec("600")}})
	require.NoError(t, err)

	b, err := f.engines.Parties.Balance(f.ctx, f.companyID, p.ID)
	require.NoError(t, err)
	assert.True(t, b.ReceivableOutstanding.Equal(dec("400")))
	assert.True(t, b.PayableOutstanding.Equal(dec("100")))
	assert.True(t, b.UnallocatedIn.Equal(dec("100")))
	assert.True(t, b.UnallocatedOut.IsZero())
	assert.True(t, b.Net.Equal(dec("200")), b.Net.String())
}
