// Package runner drives a weighted mix of settlement operations and the
// concurrent allocation scenario.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/erp/settlement/tools/loadgen/internal/client"
	"github.com/erp/settlement/tools/loadgen/internal/config"
	"github.com/erp/settlement/tools/loadgen/internal/generator"
	"github.com/erp/settlement/tools/loadgen/internal/metrics"
	"github.com/erp/settlement/tools/loadgen/internal/pool"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// API is the part of the settlement API the runner drives.
type API interface {
	CreateParty(ctx context.Context, body generator.PartyBody) (client.Resource, error)
	CreateDocument(ctx context.Context, body generator.DocumentBody) (client.Resource, error)
	GetDocument(ctx context.Context, id uuid.UUID) (client.Resource, error)
	CreateConfirmedPayment(ctx context.Context, body generator.PaymentBody) (client.Resource, error)
	Allocate(ctx context.Context, paymentID uuid.UUID, lines []client.AllocationLine) error
	Get(ctx context.Context, path string) error
}

// ErrNoData is returned by an operation that found nothing to work on yet.
var ErrNoData = errors.New("runner: no data to operate on")

// ErrOverAllocated is returned when a document reports more allocated than
// its total.
var ErrOverAllocated = errors.New("runner: document over-allocated")

const poolCapacity = 1024

type invoice struct {
	ID      uuid.UUID
	PartyID uuid.UUID
}

type weighted struct {
	op  string
	cum int
}

// Runner executes the configured workload.
type Runner struct {
	cfg     *config.Config
	api     API
	gen     *generator.Generator
	rec     *metrics.Recorder
	limiter *rate.Limiter
	now     func() time.Time

	ops      []weighted
	total    int
	parties  *pool.Pool[uuid.UUID]
	invoices *pool.Pool[invoice]
	payments *pool.Pool[uuid.UUID]
}

// New creates a runner.
func New(cfg *config.Config, api API, gen *generator.Generator, rec *metrics.Recorder) *Runner {
	r := &Runner{
		cfg:      cfg,
		api:      api,
		gen:      gen,
		rec:      rec,
		now:      time.Now,
		parties:  pool.New[uuid.UUID](poolCapacity),
		invoices: pool.New[invoice](poolCapacity),
		payments: pool.New[uuid.UUID](poolCapacity),
	}
	if cfg.RateLimit.RPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}
	rec.SetTargetRPS(cfg.RateLimit.RPS)

	names := make([]string, 0, len(cfg.Mix))
	for op := range cfg.Mix {
		names = append(names, op)
	}
	sort.Strings(names)
	for _, op := range names {
		if w := cfg.Mix[op]; w > 0 {
			r.total += w
			r.ops = append(r.ops, weighted{op: op, cum: r.total})
		}
	}
	return r
}

// Run executes the mixed workload for the configured duration and then the
// race scenario when enabled. It returns ErrOverAllocated if any document
// was seen over-allocated.
func (r *Runner) Run(ctx context.Context) error {
	mixCtx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(mixCtx)
		}()
	}
	wg.Wait()

	violations := r.rec.Count("invariant", metrics.OutcomeError)
	if r.cfg.Race.Enabled && ctx.Err() == nil {
		if err := r.Race(ctx); err != nil {
			return err
		}
	}
	if violations > 0 {
		return fmt.Errorf("%w: %d documents", ErrOverAllocated, violations)
	}
	return nil
}

func (r *Runner) work(ctx context.Context) {
	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		op := r.pick()
		start := r.now()
		err := r.Execute(ctx, op)
		if ctx.Err() != nil && err != nil {
			return
		}
		r.rec.Observe(op, classify(err), r.now().Sub(start))
	}
}

func (r *Runner) pick() string {
	n := r.gen.Intn(r.total)
	for _, w := range r.ops {
		if n < w.cum {
			return w.op
		}
	}
	return r.ops[len(r.ops)-1].op
}

func classify(err error) metrics.Outcome {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case client.IsConflict(err):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrNoData), client.IsRejected(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// Execute runs one named operation.
func (r *Runner) Execute(ctx context.Context, op string) error {
	switch op {
	case config.OpCreateParty:
		_, err := r.createParty(ctx)
		return err
	case config.OpCreateInvoice:
		return r.createInvoice(ctx)
	case config.OpPayAndAllocate:
		return r.payAndAllocate(ctx)
	case config.OpPartyBalance:
		party, ok := r.parties.Pick(r.gen.Intn)
		if !ok {
			return ErrNoData
		}
		return r.api.Get(ctx, "/parties/"+party.String()+"/balance")
	case config.OpListDocuments:
		q := url.Values{"page_size": {"20"}, "sort_by": {"due_date"}}
		if party, ok := r.parties.Pick(r.gen.Intn); ok {
			q.Set("party_id", party.String())
		}
		return r.api.Get(ctx, "/documents?"+q.Encode())
	case config.OpDueForecast:
		today := r.now().UTC()
		q := url.Values{
			"from": {today.Format(time.DateOnly)},
			"to":   {today.AddDate(0, 0, 90).Format(time.DateOnly)},
		}
		return r.api.Get(ctx, "/forecast?"+q.Encode())
	case config.OpAccountBalance:
		return r.api.Get(ctx, "/accounts/balance?bank_account_id="+r.gen.BankAccount().String())
	case config.OpSuggestPayments:
		payment, ok := r.payments.Pick(r.gen.Intn)
		if !ok {
			return ErrNoData
		}
		return r.api.Get(ctx, "/payments/"+payment.String()+"/suggestions")
	default:
		return fmt.Errorf("runner: unknown operation %q", op)
	}
}

func (r *Runner) createParty(ctx context.Context) (uuid.UUID, error) {
	party, err := r.api.CreateParty(ctx, r.gen.Supplier())
	if err != nil {
		return uuid.Nil, err
	}
	r.parties.Add(party.ID)
	return party.ID, nil
}

func (r *Runner) createInvoice(ctx context.Context) error {
	party, ok := r.parties.Pick(r.gen.Intn)
	if !ok {
		var err error
		if party, err = r.createParty(ctx); err != nil {
			return err
		}
	}
	doc, err := r.api.CreateDocument(ctx, r.gen.SupplierInvoice(party))
	if err != nil {
		return err
	}
	r.invoices.Add(invoice{ID: doc.ID, PartyID: party})
	return nil
}

// payAndAllocate pays a party and lets the server apply the payment to its
// oldest open documents, then checks the touched invoice.
func (r *Runner) payAndAllocate(ctx context.Context) error {
	inv, ok := r.invoices.Pick(r.gen.Intn)
	if !ok {
		return ErrNoData
	}
	payment, err := r.api.CreateConfirmedPayment(ctx, r.gen.OutgoingPayment(inv.PartyID, decimal.Zero))
	if err != nil {
		return err
	}
	r.payments.Add(payment.ID)

	if err := r.allocateWithRetry(ctx, payment.ID, nil); err != nil {
		return err
	}
	doc, err := r.api.GetDocument(ctx, inv.ID)
	if err != nil {
		return err
	}
	if err := r.check(doc); err != nil {
		return err
	}
	if doc.Status == "paid" {
		r.invoices.Remove(func(i invoice) bool { return i.ID == inv.ID })
	}
	return nil
}

func (r *Runner) allocateWithRetry(ctx context.Context, paymentID uuid.UUID, lines []client.AllocationLine) error {
	var err error
	for attempt := 0; attempt <= r.cfg.Race.Retries; attempt++ {
		if err = r.api.Allocate(ctx, paymentID, lines); !client.IsConflict(err) {
			return err
		}
		wait := time.Duration(attempt+1) * 20 * time.Millisecond
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 && apiErr.RetryAfter < wait {
			wait = apiErr.RetryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func (r *Runner) check(doc client.Resource) error {
	if doc.AllocatedAmount.GreaterThan(doc.TotalAmount) {
		r.rec.OverAllocation()
		return fmt.Errorf("%w: %s allocated %s of %s", ErrOverAllocated, doc.ID, doc.AllocatedAmount, doc.TotalAmount)
	}
	return nil
}

// RaceResult summarises one race scenario.
type RaceResult struct {
	InvoiceID uuid.UUID
	Succeeded int
	Rejected  int
	Failed    int
	Allocated decimal.Decimal
	Total     decimal.Decimal
}

// Race allocates many payments against one invoice at once. It fails when
// the invoice ends up over-allocated or its allocated amount disagrees with
// the number of successful allocations.
func (r *Runner) Race(ctx context.Context) error {
	res, err := r.race(ctx)
	if err != nil {
		return err
	}
	want := decimal.RequireFromString(r.cfg.Race.PaymentAmount).Mul(decimal.NewFromInt(int64(res.Succeeded)))
	if !res.Allocated.Equal(want) {
		r.rec.OverAllocation()
		return fmt.Errorf("%w: invoice %s allocated %s, %d allocations of %s succeeded",
			ErrOverAllocated, res.InvoiceID, res.Allocated, res.Succeeded, r.cfg.Race.PaymentAmount)
	}
	return nil
}

func (r *Runner) race(ctx context.Context) (RaceResult, error) {
	total, err := decimal.NewFromString(r.cfg.Race.InvoiceAmount)
	if err != nil {
		return RaceResult{}, fmt.Errorf("race: invoice amount: %w", err)
	}
	each, err := decimal.NewFromString(r.cfg.Race.PaymentAmount)
	if err != nil {
		return RaceResult{}, fmt.Errorf("race: payment amount: %w", err)
	}

	party, err := r.createParty(ctx)
	if err != nil {
		return RaceResult{}, fmt.Errorf("race: party: %w", err)
	}
	doc, err := r.api.CreateDocument(ctx, r.gen.InvoiceOf(party, total))
	if err != nil {
		return RaceResult{}, fmt.Errorf("race: invoice: %w", err)
	}
	payments := make([]uuid.UUID, r.cfg.Race.Payments)
	for i := range payments {
		p, err := r.api.CreateConfirmedPayment(ctx, r.gen.OutgoingPayment(party, each))
		if err != nil {
			return RaceResult{}, fmt.Errorf("race: payment %d: %w", i, err)
		}
		payments[i] = p.ID
	}

	res := RaceResult{InvoiceID: doc.ID, Total: total}
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})
	lines := []client.AllocationLine{{DocumentID: doc.ID, Amount: each}}
	for _, id := range payments {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			began := r.now()
			err := r.allocateWithRetry(ctx, id, lines)
			outcome := classify(err)
			r.rec.Observe("race_allocate", outcome, r.now().Sub(began))

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case metrics.OutcomeOK:
				res.Succeeded++
			case metrics.OutcomeRejected:
				res.Rejected++
			default:
				res.Failed++
			}
		}(id)
	}
	close(start)
	wg.Wait()

	final, err := r.api.GetDocument(ctx, doc.ID)
	if err != nil {
		return res, fmt.Errorf("race: reload invoice: %w", err)
	}
	res.Allocated = final.AllocatedAmount
	return res, r.check(final)
}
