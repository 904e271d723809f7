package handler

import (
	"net/http"
	"testing"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyHandler_CreateAndGet(t *testing.T) {
	f := newAPIFixture(t)
	p := f.party("supplier")
	assert.Equal(t, "supplier", p.Type)
	assert.Equal(t, f.company, p.CompanyID)
	assert.True(t, p.Active)

	w := f.do(http.MethodGet, "/parties/"+p.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got appsettlement.PartyResponse
	envelope(t, w, &got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Ege Tekstil", got.Name)

	w = f.do(http.MethodGet, "/parties/"+p.ID.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance appsettlement.PartyBalanceResponse
	envelope(t, w, &balance)
	assert.True(t, balance.Net.IsZero())
}

func TestPartyHandler_LinkIsIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	body := map[string]any{
		"linkable_type": "employee",
		"linkable_id":   uuid.New(),
		"name":          "Ayse Yilmaz",
		"type":          "employee",
	}

	w := f.do(http.MethodPost, "/parties/link", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first appsettlement.PartyResponse
	envelope(t, w, &first)

	w = f.do(http.MethodPost, "/parties/link", body)
	require.Equal(t, http.StatusOK, w.Code)
	var second appsettlement.PartyResponse
	envelope(t, w, &second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "employee", second.LinkableType)
}

func TestPartyHandler_Deactivate(t *testing.T) {
	f := newAPIFixture(t)
	p := f.party("customer")

	w := f.do(http.MethodPost, "/parties/"+p.ID.String()+"/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	envelope(t, w, &p)
	assert.False(t, p.Active)

	w = f.do(http.MethodPost, "/documents", map[string]any{
		"type":          "customer_invoice",
		"party_id":      p.ID,
		"document_date": "2026-03-02",
		"due_date":      "2026-03-31",
		"total_amount":  "10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "party_id", envelope(t, w, nil).Error.Details[0].Field)
}

func TestPartyHandler_Validation(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/parties", map[string]any{"name": "X", "type": "wizard"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := envelope(t, w, nil)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "type", resp.Error.Details[0].Field)

	w = f.do(http.MethodPost, "/parties", map[string]any{"type": "customer"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name", envelope(t, w, nil).Error.Details[0].Field)

	w = f.do(http.MethodGet, "/parties/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
