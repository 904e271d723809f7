package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultCurrency is used when neither the caller nor the configuration names one
const DefaultCurrency = "TRY"

// Option configures the engines
type Option func(*engineCore)

// WithClock overrides the time source
func WithClock(c shared.Clock) Option {
	return func(e *engineCore) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithActorResolver overrides how the acting user is read from a context
func WithActorResolver(r shared.ActorResolver) Option {
	return func(e *engineCore) {
		if r != nil {
			e.actor = r
		}
	}
}

// WithDefaultCurrency sets the currency applied when a request omits one
func WithDefaultCurrency(code string) Option {
	return func(e *engineCore) {
		if len(code) == 3 {
			e.currency = strings.ToUpper(code)
		}
	}
}

// engineCore is the state every engine shares
type engineCore struct {
	store    Store
	clock    shared.Clock
	actor    shared.ActorResolver
	currency string
}

func newEngineCore(store Store, opts ...Option) *engineCore {
	c := &engineCore{
		store:    store,
		clock:    shared.SystemClock(),
		actor:    shared.ActorFromContext,
		currency: DefaultCurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *engineCore) actorOf(ctx context.Context) uuid.UUID {
	return c.actor(ctx)
}

func (c *engineCore) currencyOr(code string) string {
	if strings.TrimSpace(code) == "" {
		return c.currency
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// flush moves pending domain events of the aggregates into the outbox
func flush(ctx context.Context, tx Tx, aggs ...shared.AggregateRoot) error {
	var events []shared.DomainEvent
	for _, a := range aggs {
		if a == nil {
			continue
		}
		events = append(events, a.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if err := tx.Events().Record(ctx, events...); err != nil {
		return err
	}
	for _, a := range aggs {
		if a != nil {
			a.ClearDomainEvents()
		}
	}
	return nil
}

// Engines bundles the settlement domain services over one store
type Engines struct {
	Periods     *PeriodGuard
	Parties     *PartyLedger
	Documents   *DocumentEngine
	Payments    *PaymentEngine
	Allocations *AllocationEngine
	Cheques     *ChequeEngine
	Forecast    *ForecastService
}

// NewEngines wires every engine to the same store, clock and actor resolver
func NewEngines(store Store, opts ...Option) *Engines {
	core := newEngineCore(store, opts...)
	periods := &PeriodGuard{engineCore: core}
	allocations := &AllocationEngine{engineCore: core, periods: periods}
	documents := &DocumentEngine{engineCore: core, periods: periods}
	payments := &PaymentEngine{engineCore: core, periods: periods}
	return &Engines{
		Periods:     periods,
		Parties:     &PartyLedger{engineCore: core},
		Documents:   documents,
		Payments:    payments,
		Allocations: allocations,
		Cheques: &ChequeEngine{
			engineCore:  core,
			periods:     periods,
			documents:   documents,
			payments:    payments,
			allocations: allocations,
		},
		Forecast: &ForecastService{engineCore: core},
	}
}
