package event

import (
	"context"
	"sync/atomic"

	"github.com/erp/settlement/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts the outcomes of an IdempotentHandler
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler skips events whose id the store has already seen. An id
// is stored only once the inner handler succeeds, so the outbox retries a
// failed delivery.
type IdempotentHandler struct {
	inner shared.EventHandler
	store shared.IdempotencyStore
	cfg   shared.IdempotencyConfig
	log   *zap.Logger

	processed, duplicate, failed atomic.Int64
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.cfg = cfg }
}

func NewIdempotentHandler(inner shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{inner: inner, store: store, cfg: shared.DefaultIdempotencyConfig(), log: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string { return h.inner.EventTypes() }

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.cfg.Enabled {
		return h.inner.Handle(ctx, event)
	}

	id := event.EventID().String()
	log := h.log.With(zap.String("event_id", id), zap.String("event_type", event.EventType()))
	if h.seen(ctx, id, log) {
		h.duplicate.Add(1)
		log.Debug("Duplicate event skipped")
		return nil
	}

	if err := h.inner.Handle(ctx, event); err != nil {
		h.failed.Add(1)
		return err
	}
	h.processed.Add(1)
	if _, err := h.store.MarkProcessed(ctx, id, h.cfg.TTL); err != nil {
		log.Warn("Could not record handled event", zap.Error(err))
	}
	return nil
}

// seen reports a store failure as unseen; redelivery is preferred to a
// stalled relay
func (h *IdempotentHandler) seen(ctx context.Context, id string, log *zap.Logger) bool {
	ok, err := h.store.IsProcessed(ctx, id)
	if err != nil {
		log.Warn("Idempotency lookup failed, handling event", zap.Error(err))
		return false
	}
	return ok
}

func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
