package event

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OutboxProcessorConfig tunes the relay loop and the retention sweep
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		MaxRetries:       shared.DefaultMaxRetries,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessorConfigFrom overlays the non-zero event settings on the defaults
func OutboxProcessorConfigFrom(cfg config.EventConfig) OutboxProcessorConfig {
	out := DefaultOutboxProcessorConfig()
	out.BatchSize = positiveOr(cfg.BatchSize, out.BatchSize)
	out.MaxRetries = positiveOr(cfg.MaxRetries, out.MaxRetries)
	out.PollInterval = positiveOr(cfg.PollInterval, out.PollInterval)
	out.CleanupRetention = positiveOr(cfg.CleanupRetention, out.CleanupRetention)
	out.CleanupEnabled = cfg.CleanupEnabled
	return out
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// BatchResult tallies one relay pass
type BatchResult struct {
	Sent   int
	Failed int
	Dead   int
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSent
	outcomeFailed
	outcomeDead
)

func (r *BatchResult) add(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeFailed:
		r.Failed++
	case outcomeDead:
		r.Dead++
	}
}

// OutboxProcessor relays committed rows of the outbox table to the event
// bus. Delivery is at least once; subscribers dedupe through
// IdempotentHandler.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventBus
	serializer *EventSerializer
	cfg        OutboxProcessorConfig
	clock      shared.Clock
	log        *zap.Logger

	mu      sync.Mutex
	running *run
}

// run is one Start..Stop lifetime
type run struct {
	cancel context.CancelFunc
	done   chan error
}

type ProcessorOption func(*OutboxProcessor)

// WithProcessorClock replaces the clock behind retry scheduling and retention
func WithProcessorClock(c shared.Clock) ProcessorOption {
	return func(p *OutboxProcessor) { p.clock = c }
}

func NewOutboxProcessor(repo shared.OutboxRepository, bus shared.EventBus, serializer *EventSerializer,
	cfg OutboxProcessorConfig, logger *zap.Logger, opts ...ProcessorOption) *OutboxProcessor {
	p := &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		cfg:        cfg,
		clock:      shared.SystemClock(),
		log:        logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the relay loop, plus the retention sweep when enabled, until
// Stop or ctx ends
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running != nil {
		return errors.New("outbox processor already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tick(ctx, p.cfg.PollInterval, func() { p.ProcessBatch(ctx) }) })
	if p.cfg.CleanupEnabled {
		g.Go(func() error { return tick(ctx, p.cfg.CleanupInterval, func() { p.Cleanup(ctx) }) })
	}
	r := &run{cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- g.Wait() }()
	p.running = r

	p.log.Info("Relay started",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Bool("cleanup", p.cfg.CleanupEnabled),
	)
	return nil
}

// Stop ends the loops and waits for the pass in flight, or for ctx. Stopping
// a stopped processor does nothing.
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	r := p.running
	p.running = nil
	p.mu.Unlock()
	if r == nil {
		return nil
	}

	r.cancel()
	select {
	case err := <-r.done:
		p.log.Info("Relay stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick calls fn every interval until ctx is done
func tick(ctx context.Context, interval time.Duration, fn func()) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			fn()
		}
	}
}

// claim moves pending rows and failed rows whose retry is due to processing.
// Rows another relay claimed first are not returned.
func (p *OutboxProcessor) claim(ctx context.Context) ([]*shared.OutboxEntry, error) {
	pending, err := p.repo.FindPending(ctx, p.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("find pending: %w", err)
	}
	due, err := p.repo.FindRetryable(ctx, p.clock.Now(), p.cfg.BatchSize)
	if err != nil {
		p.log.Error("Retry lookup failed", zap.Error(err))
	}
	ids := make([]uuid.UUID, 0, len(pending)+len(due))
	for _, e := range slices.Concat(pending, due) {
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	return claimed, nil
}

// ProcessBatch relays one batch of claimed rows
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) BatchResult {
	var res BatchResult
	entries, err := p.claim(ctx)
	if err != nil {
		p.log.Error("Outbox batch skipped", zap.Error(err))
		return res
	}
	for _, entry := range entries {
		if p.cfg.MaxRetries > 0 {
			entry.MaxRetries = p.cfg.MaxRetries
		}
		res.add(p.deliver(ctx, entry))
	}
	return res
}

// deliver publishes entry and records the result on its row. A row whose
// result cannot be saved counts as nothing; it is retried once the claim
// is retried.
func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) outcome {
	log := p.log.With(zap.String("event_id", entry.EventID.String()), zap.String("event_type", entry.EventType))

	result := outcomeSent
	if err := p.publish(ctx, entry); err != nil {
		entry.MarkFailed(err.Error(), p.clock.Now())
		result = outcomeFailed
		if entry.IsDead() {
			result = outcomeDead
			log.Warn("Event dead-lettered",
				zap.String("aggregate_type", entry.AggregateType),
				zap.String("aggregate_id", entry.AggregateID.String()),
				zap.String("company_id", entry.CompanyID.String()),
				zap.Int("retry_count", entry.RetryCount),
				zap.Error(err),
			)
		} else {
			log.Error("Event delivery failed", zap.Int("retry_count", entry.RetryCount), zap.Error(err))
		}
	} else {
		entry.MarkSent(p.clock.Now())
	}

	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("Outbox row not updated", zap.String("status", string(entry.Status)), zap.Error(err))
		if result == outcomeSent {
			return outcomeNone
		}
	}
	return result
}

func (p *OutboxProcessor) publish(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return fmt.Errorf("deserialize: %w", err)
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Cleanup deletes sent rows older than the retention window and returns how
// many went
func (p *OutboxProcessor) Cleanup(ctx context.Context) int64 {
	cutoff := p.clock.Now().Add(-p.cfg.CleanupRetention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Outbox cleanup failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		p.log.Info("Outbox cleanup", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n
}
