package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(eventType string) shared.DomainEvent {
	base := shared.NewBaseDomainEvent(eventType, "Document", uuid.New(), TestCompanyID(), time.Now())
	return &base
}

func TestRecordingHandler_Records(t *testing.T) {
	h := NewRecordingHandler("DocumentCreated")
	assert.Equal(t, []string{"DocumentCreated"}, h.EventTypes())

	first := testEvent("DocumentCreated")
	require.NoError(t, h.Handle(context.Background(), first))
	require.NoError(t, h.Handle(context.Background(), testEvent("PaymentConfirmed")))

	assert.Equal(t, 2, h.Count())
	assert.Equal(t, first, h.Handled()[0])
	assert.Len(t, h.OfType("PaymentConfirmed"), 1)
	assert.Empty(t, h.OfType("ChequeStatusChanged"))
}

func TestRecordingHandler_SetError(t *testing.T) {
	h := NewRecordingHandler()
	h.SetError(assert.AnError)

	err := h.Handle(context.Background(), testEvent("DocumentCreated"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, h.Count(), "failed deliveries are still recorded")
}

func TestWaitForEventCount(t *testing.T) {
	h := NewRecordingHandler()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = h.Handle(context.Background(), testEvent("DocumentCreated"))
	}()

	WaitForEventCount(t, h, 1, time.Second)
	assert.Equal(t, 1, h.Count())
}
