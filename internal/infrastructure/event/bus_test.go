package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type panicHandler struct{}

func (panicHandler) EventTypes() []string { return nil }
func (panicHandler) Handle(context.Context, shared.DomainEvent) error {
	panic("boom")
}

func TestInMemoryEventBus_PublishRoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	docs := &recordingHandler{types: []string{settlement.EventTypeDocumentStatusChanged}}
	payments := &recordingHandler{types: []string{settlement.EventTypePaymentAllocated}}
	all := &recordingHandler{}
	bus.Subscribe(docs)
	bus.Subscribe(payments)
	bus.Subscribe(all)

	company := uuid.New()
	err := bus.Publish(context.Background(),
		statusChanged(company, settlement.DocumentStatusPending, settlement.DocumentStatusPartial),
		allocated(company, "10"),
		allocated(company, "5"),
	)

	require.NoError(t, err)
	assert.Equal(t, 1, docs.count())
	assert.Equal(t, 2, payments.count())
	assert.Equal(t, 3, all.count())
}

func TestInMemoryEventBus_PublishJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{err: errors.New("ledger projection unavailable")}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicHandler{})
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), allocated(uuid.New(), "1"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger projection unavailable")
	assert.Contains(t, err.Error(), "handler panicked on PaymentAllocated: boom")
	assert.Equal(t, 1, healthy.count(), "later handlers still run")
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := &recordingHandler{}
	bus.Subscribe(h, settlement.EventTypePaymentAllocated)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), allocated(uuid.New(), "1")))
	assert.Zero(t, h.count())
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))

	assert.ErrorIs(t, bus.Publish(ctx, allocated(uuid.New(), "1")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, allocated(uuid.New(), "1")))
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	typed := &recordingHandler{}
	wildcard := &recordingHandler{}
	r.Register(typed, settlement.EventTypePaymentAllocated, settlement.EventTypePaymentDeallocated)
	r.Register(wildcard)

	got := r.GetHandlers(settlement.EventTypePaymentAllocated)
	require.Len(t, got, 2)
	assert.Same(t, typed, got[0])
	assert.Same(t, wildcard, got[1])
	assert.Equal(t, []string{settlement.EventTypePaymentAllocated, settlement.EventTypePaymentDeallocated}, r.EventTypes())

	r.Unregister(typed)
	assert.Empty(t, r.EventTypes())
	assert.Len(t, r.GetHandlers(settlement.EventTypePaymentAllocated), 1)
}
