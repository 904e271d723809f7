package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is a map-backed Store for engine tests. Atomic serializes
// transactions and restores a snapshot on error.
type memStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	parties     map[uuid.UUID]Party
	documents   map[uuid.UUID]DocumentState
	payments    map[uuid.UUID]PaymentState
	allocations map[uuid.UUID]Allocation
	periods     map[PeriodKey]AccountingPeriod
	cheques     map[uuid.UUID]memCheque
	events      []shared.DomainEvent
}

type memCheque struct {
	cheque Cheque
	status ChequeStatus
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		parties:     map[uuid.UUID]Party{},
		documents:   map[uuid.UUID]DocumentState{},
		payments:    map[uuid.UUID]PaymentState{},
		allocations: map[uuid.UUID]Allocation{},
		periods:     map[PeriodKey]AccountingPeriod{},
		cheques:     map[uuid.UUID]memCheque{},
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		parties:     make(map[uuid.UUID]Party, len(d.parties)),
		documents:   make(map[uuid.UUID]DocumentState, len(d.documents)),
		payments:    make(map[uuid.UUID]PaymentState, len(d.payments)),
		allocations: make(map[uuid.UUID]Allocation, len(d.allocations)),
		periods:     make(map[PeriodKey]AccountingPeriod, len(d.periods)),
		cheques:     make(map[uuid.UUID]memCheque, len(d.cheques)),
		events:      append([]shared.DomainEvent(nil), d.events...),
	}
	for k, v := range d.parties {
		c.parties[k] = v
	}
	for k, v := range d.documents {
		c.documents[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.allocations {
		c.allocations[k] = v
	}
	for k, v := range d.periods {
		c.periods[k] = v
	}
	for k, v := range d.cheques {
		c.cheques[k] = v
	}
	return c
}

func (s *memStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(ctx, &memTx{d: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *memStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &memTx{d: s.data.clone()})
}

func (s *memStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.data.events))
	for _, e := range s.data.events {
		out = append(out, e.EventType())
	}
	return out
}

func (s *memStore) allocationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.allocations)
}

type memTx struct{ d *memData }

func (t *memTx) Parties() PartyRepository          { return memParties{t.d} }
func (t *memTx) Documents() DocumentRepository     { return memDocuments{t.d} }
func (t *memTx) Payments() PaymentRepository       { return memPayments{t.d} }
func (t *memTx) Allocations() AllocationRepository { return memAllocations{t.d} }
func (t *memTx) Periods() PeriodRepository         { return memPeriods{t.d} }
func (t *memTx) Cheques() ChequeRepository         { return memCheques{t.d} }
func (t *memTx) Events() EventRecorder             { return memEvents{t.d} }

type memEvents struct{ d *memData }

func (r memEvents) Record(_ context.Context, events ...shared.DomainEvent) error {
	r.d.events = append(r.d.events, events...)
	return nil
}

type memParties struct{ d *memData }

func (r memParties) Create(_ context.Context, p *Party) error {
	v := *p
	v.ClearDomainEvents()
	r.d.parties[p.ID] = v
	return nil
}

func (r memParties) Update(_ context.Context, p *Party) error {
	cur, ok := r.d.parties[p.ID]
	if !ok || cur.Version != p.Version {
		return &ConcurrencyConflictError{}
	}
	p.Version++
	v := *p
	v.ClearDomainEvents()
	r.d.parties[p.ID] = v
	return nil
}

func (r memParties) FindByID(_ context.Context, companyID, id uuid.UUID) (*Party, error) {
	v, ok := r.d.parties[id]
	if !ok || v.CompanyID != companyID {
		return nil, &NotFoundError{Entity: "party", ID: id.String()}
	}
	return &v, nil
}

func (r memParties) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Party, error) {
	return r.FindByID(ctx, companyID, id)
}

func (r memParties) FindByLinkable(_ context.Context, companyID uuid.UUID, ref LinkableRef) (*Party, error) {
	for _, v := range r.d.parties {
		if v.CompanyID == companyID && v.Linkable != nil && *v.Linkable == ref {
			p := v
			return &p, nil
		}
	}
	return nil, &NotFoundError{Entity: "party", ID: ref.Type + ":" + ref.ID.String()}
}

type memDocuments struct{ d *memData }

func (r memDocuments) Create(_ context.Context, doc *Document) error {
	r.d.documents[doc.ID] = doc.State()
	return nil
}

func (r memDocuments) Update(_ context.Context, doc *Document) error {
	cur, ok := r.d.documents[doc.ID]
	if !ok || cur.Version != doc.Version {
		return &ConcurrencyConflictError{}
	}
	doc.Version++
	r.d.documents[doc.ID] = doc.State()
	return nil
}

func (r memDocuments) FindByID(_ context.Context, companyID, id uuid.UUID) (*Document, error) {
	s, ok := r.d.documents[id]
	if !ok || s.CompanyID != companyID {
		return nil, &NotFoundError{Entity: "document", ID: id.String()}
	}
	return RestoreDocument(s), nil
}

func (r memDocuments) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Document, error) {
	return r.FindByID(ctx, companyID, id)
}

func (r memDocuments) FindByIDsForUpdate(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Document, error) {
	sorted := append([]uuid.UUID(nil), ids...)
	sortByID(sorted)
	out := make([]*Document, 0, len(sorted))
	for _, id := range sorted {
		d, err := r.FindByID(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r memDocuments) filter(keep func(DocumentState) bool) []*Document {
	var out []*Document
	for _, s := range r.d.documents {
		if keep(s) {
			out = append(out, RestoreDocument(s))
		}
	}
	sortOldestDueFirst(out)
	return out
}

func (r memDocuments) FindOpen(_ context.Context, companyID, partyID uuid.UUID, direction DocumentDirection) ([]*Document, error) {
	return r.filter(func(s DocumentState) bool {
		return s.CompanyID == companyID && s.PartyID == partyID && s.Direction == direction && s.Status.IsOpen()
	}), nil
}

func (r memDocuments) FindOpenDueBetween(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]*Document, error) {
	return r.filter(func(s DocumentState) bool {
		return s.CompanyID == companyID && s.Status.IsOpen() && !s.DueDate.Before(from) && !s.DueDate.After(to)
	}), nil
}

func (r memDocuments) HasActiveReversal(_ context.Context, companyID, originalID uuid.UUID) (bool, error) {
	for _, s := range r.d.documents {
		if s.CompanyID == companyID && s.ReversalOfID != nil && *s.ReversalOfID == originalID && s.Status != DocumentStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r memDocuments) List(_ context.Context, companyID uuid.UUID, filter DocumentFilter) (DocumentPage, error) {
	docs := r.filter(func(s DocumentState) bool {
		return s.CompanyID == companyID && (filter.Status == nil || s.Status == *filter.Status)
	})
	return shared.NewPaginated(docs, int64(len(docs)), 1, len(docs)+1), nil
}

type memPayments struct{ d *memData }

func (r memPayments) Create(_ context.Context, p *Payment) error {
	r.d.payments[p.ID] = p.State()
	return nil
}

func (r memPayments) Update(_ context.Context, p *Payment) error {
	cur, ok := r.d.payments[p.ID]
	if !ok || cur.Version != p.Version {
		return &ConcurrencyConflictError{}
	}
	p.Version++
	r.d.payments[p.ID] = p.State()
	return nil
}

func (r memPayments) FindByID(_ context.Context, companyID, id uuid.UUID) (*Payment, error) {
	s, ok := r.d.payments[id]
	if !ok || s.CompanyID != companyID {
		return nil, &NotFoundError{Entity: "payment", ID: id.String()}
	}
	return RestorePayment(s), nil
}

func (r memPayments) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Payment, error) {
	return r.FindByID(ctx, companyID, id)
}

func (r memPayments) FindConfirmedByAccount(_ context.Context, companyID uuid.UUID, account AccountRef, asOf time.Time) ([]*Payment, error) {
	var out []*Payment
	for _, s := range r.d.payments {
		p := RestorePayment(s)
		if p.CompanyID != companyID || p.Status() != PaymentStatusConfirmed || p.PaymentDate().After(asOf) {
			continue
		}
		if p.Source() == account || (p.Destination() != nil && *p.Destination() == account) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r memPayments) FindUnallocated(_ context.Context, companyID, partyID uuid.UUID) ([]*Payment, error) {
	var out []*Payment
	for _, s := range r.d.payments {
		p := RestorePayment(s)
		if p.CompanyID == companyID && p.PartyID() != nil && *p.PartyID() == partyID &&
			p.Status() == PaymentStatusConfirmed && p.UnallocatedAmount().IsPositive() {
			out = append(out, p)
		}
	}
	return out, nil
}

type memAllocations struct{ d *memData }

func (r memAllocations) Create(_ context.Context, allocs ...*Allocation) error {
	for _, a := range allocs {
		r.d.allocations[a.ID] = *a
	}
	return nil
}

func (r memAllocations) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.d.allocations, id)
	return nil
}

func (r memAllocations) FindByIDForUpdate(_ context.Context, companyID, id uuid.UUID) (*Allocation, error) {
	a, ok := r.d.allocations[id]
	if !ok || a.CompanyID != companyID {
		return nil, &NotFoundError{Entity: "allocation", ID: id.String()}
	}
	return &a, nil
}

func (r memAllocations) find(keep func(Allocation) bool) []*Allocation {
	var out []*Allocation
	for _, a := range r.d.allocations {
		if keep(a) {
			v := a
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memAllocations) FindByPayment(_ context.Context, paymentID uuid.UUID) ([]*Allocation, error) {
	return r.find(func(a Allocation) bool { return a.PaymentID == paymentID }), nil
}

func (r memAllocations) FindByDocument(_ context.Context, documentID uuid.UUID) ([]*Allocation, error) {
	return r.find(func(a Allocation) bool { return a.DocumentID == documentID }), nil
}

type memPeriods struct{ d *memData }

func (r memPeriods) Find(_ context.Context, key PeriodKey) (*AccountingPeriod, error) {
	p, ok := r.d.periods[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPeriods) Ensure(_ context.Context, key PeriodKey, now time.Time) (*AccountingPeriod, error) {
	p, ok := r.d.periods[key]
	if !ok {
		p = *NewAccountingPeriod(key, now)
		r.d.periods[key] = p
	}
	return &p, nil
}

func (r memPeriods) EnsureForUpdate(ctx context.Context, key PeriodKey, now time.Time) (*AccountingPeriod, error) {
	return r.Ensure(ctx, key, now)
}

func (r memPeriods) Update(_ context.Context, p *AccountingPeriod) error {
	p.Version++
	v := *p
	v.ClearDomainEvents()
	r.d.periods[p.Key()] = v
	return nil
}

func (r memPeriods) ListByYear(_ context.Context, companyID uuid.UUID, year int) ([]*AccountingPeriod, error) {
	var out []*AccountingPeriod
	for k, v := range r.d.periods {
		if k.CompanyID == companyID && k.Year == year {
			p := v
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

type memCheques struct{ d *memData }

func (r memCheques) Create(_ context.Context, c *Cheque) error {
	v := *c
	v.ClearDomainEvents()
	r.d.cheques[c.ID] = memCheque{cheque: v, status: c.Status()}
	return nil
}

func (r memCheques) Update(_ context.Context, c *Cheque) error {
	cur, ok := r.d.cheques[c.ID]
	if !ok || cur.cheque.Version != c.Version {
		return &ConcurrencyConflictError{}
	}
	c.Version++
	v := *c
	v.ClearDomainEvents()
	r.d.cheques[c.ID] = memCheque{cheque: v, status: c.Status()}
	return nil
}

func (r memCheques) FindByID(_ context.Context, companyID, id uuid.UUID) (*Cheque, error) {
	v, ok := r.d.cheques[id]
	if !ok || v.cheque.CompanyID != companyID {
		return nil, &NotFoundError{Entity: "cheque", ID: id.String()}
	}
	return RestoreCheque(v.cheque, v.status), nil
}

func (r memCheques) FindByIDForUpdate(ctx context.Context, companyID, id uuid.UUID) (*Cheque, error) {
	return r.FindByID(ctx, companyID, id)
}

func (r memCheques) FindByDocumentIDs(_ context.Context, documentIDs []uuid.UUID) (map[uuid.UUID]*Cheque, error) {
	want := make(map[uuid.UUID]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		want[id] = struct{}{}
	}
	out := make(map[uuid.UUID]*Cheque)
	for _, v := range r.d.cheques {
		if _, ok := want[v.cheque.DocumentID]; ok {
			out[v.cheque.DocumentID] = RestoreCheque(v.cheque, v.status)
		}
	}
	return out, nil
}
