package handler

import (
	"net/http"
	"testing"

	appevent "github.com/erp/settlement/internal/application/event"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/persistence/models"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// killEntries marks every outbox row of the fixture company as dead
func (f *apiFixture) killEntries() []models.OutboxEntryModel {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.OutboxEntryModel{}).
		Where("company_id = ?", f.company).
		Updates(map[string]any{"status": shared.OutboxStatusDead, "retry_count": 5, "last_error": "broker unavailable"}).Error)
	var rows []models.OutboxEntryModel
	require.NoError(f.t, f.db.Where("company_id = ?", f.company).Order("created_at").Find(&rows).Error)
	return rows
}

func TestOutboxHandler_StatsFollowMutations(t *testing.T) {
	f := newAPIFixture(t)
	customer := f.party("customer")
	f.document(customer.ID, "customer_invoice", "100", "2026-03-31")

	w := f.do(http.MethodGet, "/outbox/stats", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats appevent.OutboxStatsDTO
	envelope(t, w, &stats)
	assert.Positive(t, stats.Pending)
	assert.Equal(t, stats.Pending, stats.Total)

	// Another company sees nothing
	f.company = uuid.New()
	w = f.do(http.MethodGet, "/outbox/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope(t, w, &stats)
	assert.Zero(t, stats.Total)
}

func TestOutboxHandler_DeadLetters(t *testing.T) {
	f := newAPIFixture(t)
	customer := f.party("customer")
	f.document(customer.ID, "customer_invoice", "100", "2026-03-31")
	rows := f.killEntries()
	require.NotEmpty(t, rows)

	w := f.do(http.MethodGet, "/outbox/dead?page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entries []appevent.OutboxEntryDTO
	resp := envelope(t, w, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEAD", entries[0].Status)
	assert.EqualValues(t, len(rows), resp.Meta.Total)

	w = f.do(http.MethodGet, "/outbox/entries/"+rows[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry appevent.OutboxEntryDTO
	envelope(t, w, &entry)
	assert.Equal(t, "broker unavailable", entry.LastError)

	w = f.do(http.MethodPost, "/outbox/entries/"+rows[0].ID.String()+"/retry", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Only dead entries can be retried
	w = f.do(http.MethodPost, "/outbox/entries/"+rows[0].ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, dto.ErrCodeInvalidTransition, envelope(t, w, nil).Error.Code)

	w = f.do(http.MethodPost, "/outbox/dead/retry", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var retried RetryAllResponse
	envelope(t, w, &retried)
	assert.EqualValues(t, len(rows)-1, retried.Count)

	w = f.do(http.MethodGet, "/outbox/stats", nil)
	var stats appevent.OutboxStatsDTO
	envelope(t, w, &stats)
	assert.Zero(t, stats.Dead)

	w = f.do(http.MethodGet, "/outbox/dead?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutboxHandler_EntryScoping(t *testing.T) {
	f := newAPIFixture(t)
	customer := f.party("customer")
	f.document(customer.ID, "customer_invoice", "100", "2026-03-31")
	rows := f.killEntries()
	require.NotEmpty(t, rows)

	w := f.do(http.MethodGet, "/outbox/entries/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.company = uuid.New()
	w = f.do(http.MethodGet, "/outbox/entries/"+rows[0].ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPost, "/outbox/entries/"+rows[0].ID.String()+"/retry", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
