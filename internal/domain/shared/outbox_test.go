package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outboxNow = time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)

type stubEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	company := uuid.New()
	aggregate := uuid.New()
	e := &stubEvent{NewBaseDomainEvent("PaymentConfirmed", "Payment", aggregate, company, outboxNow)}

	entry := NewOutboxEntry(e, []byte(`{"amount":"10"}`))
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, company, entry.CompanyID)
	assert.Equal(t, aggregate, entry.AggregateID)
	assert.Equal(t, e.EventID(), entry.EventID)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.Equal(t, outboxNow, entry.CreatedAt)
	assert.NotEqual(t, uuid.Nil, entry.ID)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 3}

	entry.MarkFailed("bus unavailable", outboxNow)
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	require.NotNil(t, entry.NextRetryAt)
	assert.Equal(t, outboxNow.Add(time.Second), *entry.NextRetryAt)

	entry.MarkFailed("bus unavailable", outboxNow)
	assert.Equal(t, outboxNow.Add(2*time.Second), *entry.NextRetryAt)

	entry.MarkFailed("payload rejected", outboxNow)
	assert.True(t, entry.IsDead())
	assert.Nil(t, entry.NextRetryAt)
	assert.Equal(t, "payload rejected", entry.LastError)
	assert.Equal(t, 3, entry.RetryCount)
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, time.Second, RetryBackoff(0))
	assert.Equal(t, time.Second, RetryBackoff(1))
	assert.Equal(t, 8*time.Second, RetryBackoff(4))
	assert.Equal(t, MaxBackoff, RetryBackoff(20))
	assert.Equal(t, MaxBackoff, RetryBackoff(1000))
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	retryAt := outboxNow.Add(time.Minute)
	entry := &OutboxEntry{Status: OutboxStatusProcessing, NextRetryAt: &retryAt}

	entry.MarkSent(outboxNow)
	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
	assert.Equal(t, outboxNow, *entry.ProcessedAt)
	assert.Nil(t, entry.NextRetryAt)
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	t.Run("dead letter goes back to pending", func(t *testing.T) {
		entry := &OutboxEntry{Status: OutboxStatusDead, RetryCount: 5, MaxRetries: 5, LastError: "boom"}

		require.NoError(t, entry.ResetForRetry(outboxNow))
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Zero(t, entry.RetryCount)
		assert.Empty(t, entry.LastError)
		assert.Equal(t, outboxNow, entry.UpdatedAt)
	})

	for _, status := range []OutboxStatus{OutboxStatusPending, OutboxStatusProcessing, OutboxStatusSent, OutboxStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			entry := &OutboxEntry{Status: status, RetryCount: 2}
			assert.ErrorIs(t, entry.ResetForRetry(outboxNow), ErrNotDeadLetter)
			assert.Equal(t, status, entry.Status)
			assert.Equal(t, 2, entry.RetryCount)
		})
	}
}
