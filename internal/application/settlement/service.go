// Package settlement exposes the ledger engines to transports: it converts
// requests into domain inputs, wraps every operation in a span, profiling
// labels and metrics, and returns response DTOs.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
)

// OperationRecorder receives the outcome and latency of every operation
type OperationRecorder interface {
	RecordOperation(ctx context.Context, companyID uuid.UUID, operation string, d time.Duration, err error)
}

// Service is the application facade over the settlement engines
type Service struct {
	engines *settlement.Engines
	metrics OperationRecorder
	logger  *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithMetrics records operation outcomes
func WithMetrics(m OperationRecorder) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the base logger; request fields are added from the context
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service
func NewService(engines *settlement.Engines, opts ...ServiceOption) *Service {
	s := &Service{engines: engines, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("settlement")
	return s
}

// operation describes one traced call
type operation struct {
	service  string
	method   string
	company  uuid.UUID
	mutating bool
	attrs    []any
}

func (o operation) name() string { return o.service + "." + o.method }

// call runs fn inside a span with profiling labels, then records metrics and
// logs the outcome: info for successful mutations, warn for rejections, error
// for infrastructure failures.
func call[T any](s *Service, ctx context.Context, op operation, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, op.service, op.method,
		append([]any{telemetry.SpanAttrCompanyID, op.company}, op.attrs...)...)
	defer span.End()

	var (
		out T
		err error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(op.name(), op.company.String()), func(c context.Context) {
		out, err = fn(c)
	})

	if s.metrics != nil {
		s.metrics.RecordOperation(ctx, op.company, op.name(), time.Since(start), err)
	}

	log := logger.WithLogger(ctx, s.logger).With(zap.String("operation", op.name()))
	if logger.GetCompanyID(ctx) == "" {
		log = log.With(zap.String("company_id", op.company.String()))
	}
	if err != nil {
		telemetry.SetStatus(span, err)
		switch outcome, code := telemetry.OutcomeOf(err); outcome {
		case telemetry.OutcomeError:
			log.Error("settlement operation failed", zap.Error(err))
		default:
			log.Warn("settlement operation rejected", zap.String("code", code), zap.Error(err))
		}
		var zero T
		return zero, err
	}

	telemetry.SetStatus(span, nil)
	if op.mutating {
		log.Info("settlement operation applied", zap.Duration("elapsed", time.Since(start)))
	}
	return out, nil
}

func mutate(service, method string, company uuid.UUID, attrs ...any) operation {
	return operation{service: service, method: method, company: company, mutating: true, attrs: attrs}
}

func read(service, method string, company uuid.UUID, attrs ...any) operation {
	return operation{service: service, method: method, company: company, attrs: attrs}
}

// =============================================================================
// Periods
// =============================================================================

// ListPeriods returns the periods of a year that have a row
func (s *Service) ListPeriods(ctx context.Context, companyID uuid.UUID, year int) ([]PeriodResponse, error) {
	return call(s, ctx, read("period", "list", companyID, "year", year), func(ctx context.Context) ([]PeriodResponse, error) {
		periods, err := s.engines.Periods.List(ctx, companyID, year)
		if err != nil {
			return nil, err
		}
		out := make([]PeriodResponse, len(periods))
		for i, p := range periods {
			out[i] = ToPeriodResponse(p)
		}
		return out, nil
	})
}

// LockPeriod closes a month to writes
func (s *Service) LockPeriod(ctx context.Context, companyID uuid.UUID, year, month int) (*PeriodResponse, error) {
	key := settlement.PeriodKey{CompanyID: companyID, Year: year, Month: month}
	return call(s, ctx, mutate("period", "lock", companyID, telemetry.SpanAttrPeriod, key.String()), func(ctx context.Context) (*PeriodResponse, error) {
		p, err := s.engines.Periods.Lock(ctx, key)
		if err != nil {
			return nil, err
		}
		resp := ToPeriodResponse(p)
		return &resp, nil
	})
}

// UnlockPeriod reopens a month
func (s *Service) UnlockPeriod(ctx context.Context, companyID uuid.UUID, year, month int) (*PeriodResponse, error) {
	key := settlement.PeriodKey{CompanyID: companyID, Year: year, Month: month}
	return call(s, ctx, mutate("period", "unlock", companyID, telemetry.SpanAttrPeriod, key.String()), func(ctx context.Context) (*PeriodResponse, error) {
		p, err := s.engines.Periods.Unlock(ctx, key)
		if err != nil {
			return nil, err
		}
		resp := ToPeriodResponse(p)
		return &resp, nil
	})
}

// =============================================================================
// Parties
// =============================================================================

// CreateParty registers a counterparty
func (s *Service) CreateParty(ctx context.Context, companyID uuid.UUID, req CreatePartyRequest) (*PartyResponse, error) {
	in := settlement.NewPartyInput{
		CompanyID: companyID,
		BranchID:  req.BranchID,
		Name:      req.Name,
		Type:      settlement.PartyType(req.Type),
	}
	if req.LinkableType != "" || req.LinkableID != nil {
		ref := settlement.LinkableRef{Type: req.LinkableType}
		if req.LinkableID != nil {
			ref.ID = *req.LinkableID
		}
		in.Linkable = &ref
	}
	return call(s, ctx, mutate("party", "create", companyID), func(ctx context.Context) (*PartyResponse, error) {
		p, err := s.engines.Parties.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		resp := ToPartyResponse(p)
		return &resp, nil
	})
}

// LinkParty returns the party linked to an internal entity, creating it on first use
func (s *Service) LinkParty(ctx context.Context, companyID uuid.UUID, req LinkPartyRequest) (*PartyResponse, error) {
	ref := settlement.LinkableRef{Type: req.LinkableType, ID: req.LinkableID}
	return call(s, ctx, mutate("party", "link", companyID), func(ctx context.Context) (*PartyResponse, error) {
		p, err := s.engines.Parties.EnsureForLinkable(ctx, companyID, ref, req.Name, settlement.PartyType(req.Type))
		if err != nil {
			return nil, err
		}
		resp := ToPartyResponse(p)
		return &resp, nil
	})
}

// GetParty returns one party
func (s *Service) GetParty(ctx context.Context, companyID, id uuid.UUID) (*PartyResponse, error) {
	return call(s, ctx, read("party", "get", companyID, telemetry.SpanAttrPartyID, id.String()), func(ctx context.Context) (*PartyResponse, error) {
		p, err := s.engines.Parties.Get(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		resp := ToPartyResponse(p)
		return &resp, nil
	})
}

// DeactivateParty stops new documents for a party
func (s *Service) DeactivateParty(ctx context.Context, companyID, id uuid.UUID) (*PartyResponse, error) {
	return call(s, ctx, mutate("party", "deactivate", companyID, telemetry.SpanAttrPartyID, id.String()), func(ctx context.Context) (*PartyResponse, error) {
		p, err := s.engines.Parties.Deactivate(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		resp := ToPartyResponse(p)
		return &resp, nil
	})
}

// PartyBalance returns the outstanding position with a party
func (s *Service) PartyBalance(ctx context.Context, companyID, id uuid.UUID) (*PartyBalanceResponse, error) {
	return call(s, ctx, read("party", "balance", companyID, telemetry.SpanAttrPartyID, id.String()), func(ctx context.Context) (*PartyBalanceResponse, error) {
		b, err := s.engines.Parties.Balance(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		resp := ToPartyBalanceResponse(b)
		return &resp, nil
	})
}

// =============================================================================
// Documents
// =============================================================================

// CreateDocument records an obligation
func (s *Service) CreateDocument(ctx context.Context, companyID uuid.UUID, req CreateDocumentRequest) (*DocumentResponse, error) {
	in := settlement.CreateDocumentInput{
		CompanyID:    companyID,
		BranchID:     req.BranchID,
		Type:         settlement.DocumentType(req.Type),
		Direction:    settlement.DocumentDirection(req.Direction),
		PartyID:      req.PartyID,
		Number:       req.Number,
		DocumentDate: req.DocumentDate.Time,
		DueDate:      req.DueDate.Time,
		TotalAmount:  req.TotalAmount,
		Currency:     req.Currency,
		Notes:        req.Notes,
		Draft:        req.Draft,
	}
	op := mutate("document", "create", companyID,
		telemetry.SpanAttrDocumentType, req.Type,
		telemetry.SpanAttrAmount, req.TotalAmount.String(),
	)
	return call(s, ctx, op, func(ctx context.Context) (*DocumentResponse, error) {
		d, err := s.engines.Documents.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		resp := ToDocumentResponse(d)
		return &resp, nil
	})
}

// GetDocument returns one document
func (s *Service) GetDocument(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	return s.documentOp(ctx, read("document", "get", companyID, telemetry.SpanAttrDocumentID, id.String()),
		func(ctx context.Context) (*settlement.Document, error) {
			return s.engines.Documents.Get(ctx, companyID, id)
		})
}

// PostDocument moves a draft to pending
func (s *Service) PostDocument(ctx context.Context, companyID, id uuid.UUID) (*DocumentResponse, error) {
	return s.documentOp(ctx, mutate("document", "post", companyID, telemetry.SpanAttrDocumentID, id.String()),
		func(ctx context.Context) (*settlement.Document, error) {
			return s.engines.Documents.Post(ctx, companyID, id)
		})
}

// CancelDocument cancels an unallocated document
func (s *Service) CancelDocument(ctx context.Context, companyID, id uuid.UUID, req CancelRequest) (*DocumentResponse, error) {
	return s.documentOp(ctx, mutate("document", "cancel", companyID, telemetry.SpanAttrDocumentID, id.String()),
		func(ctx context.Context) (*settlement.Document, error) {
			return s.engines.Documents.Cancel(ctx, companyID, id, req.Reason)
		})
}

// ReverseDocument creates the counter-document of id. The response is the
// reversal document.
func (s *Service) ReverseDocument(ctx context.Context, companyID, id uuid.UUID, req ReverseDocumentRequest) (*DocumentResponse, error) {
	return s.documentOp(ctx, mutate("document", "reverse", companyID, telemetry.SpanAttrDocumentID, id.String()),
		func(ctx context.Context) (*settlement.Document, error) {
			return s.engines.Documents.Reverse(ctx, companyID, id, req.ReversalDate.Time)
		})
}

func (s *Service) documentOp(ctx context.Context, op operation, fn func(context.Context) (*settlement.Document, error)) (*DocumentResponse, error) {
	return call(s, ctx, op, func(ctx context.Context) (*DocumentResponse, error) {
		d, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		resp := ToDocumentResponse(d)
		return &resp, nil
	})
}

// ListDocuments returns one page of documents
func (s *Service) ListDocuments(ctx context.Context, companyID uuid.UUID, f DocumentListFilter) (*DocumentListResponse, error) {
	filter, err := toDocumentFilter(f)
	if err != nil {
		return nil, err
	}
	return call(s, ctx, read("document", "list", companyID), func(ctx context.Context) (*DocumentListResponse, error) {
		page, err := s.engines.Documents.List(ctx, companyID, filter)
		if err != nil {
			return nil, err
		}
		return &DocumentListResponse{
			Items:      ToDocumentResponses(page.Items),
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
		}, nil
	})
}

func toDocumentFilter(f DocumentListFilter) (settlement.DocumentFilter, error) {
	filter := settlement.DocumentFilter{
		Filter: shared.Filter{
			Page:     f.Page,
			PageSize: f.PageSize,
			OrderBy:  f.SortBy,
			OrderDir: "asc",
			Search:   f.Search,
		},
	}
	if f.SortDesc {
		filter.OrderDir = "desc"
	}
	v := &settlement.ValidationError{}
	if f.PartyID != "" {
		id, err := uuid.Parse(f.PartyID)
		if err != nil {
			v.Add("party_id", "is not a valid uuid")
		}
		filter.PartyID = &id
	}
	if f.Type != "" {
		t := settlement.DocumentType(f.Type)
		if !t.IsValid() {
			v.Add("type", "is not a valid document type")
		}
		filter.Type = &t
	}
	if f.Direction != "" {
		d := settlement.DocumentDirection(f.Direction)
		filter.Direction = &d
	}
	if f.Status != "" {
		st := settlement.DocumentStatus(f.Status)
		if !st.IsValid() {
			v.Add("status", "is not a valid document status")
		}
		filter.Status = &st
	}
	for _, r := range []struct {
		field string
		raw   string
		dst   **time.Time
	}{{"due_from", f.DueFrom, &filter.DueFrom}, {"due_to", f.DueTo, &filter.DueTo}} {
		if r.raw == "" {
			continue
		}
		d, err := ParseDate(r.raw)
		if err != nil {
			v.Add(r.field, err.Error())
			continue
		}
		t := d.Time
		*r.dst = &t
	}
	return filter, v.OrNil()
}

// =============================================================================
// Payments and allocations
// =============================================================================

// CreatePayment records a draft payment
func (s *Service) CreatePayment(ctx context.Context, companyID uuid.UUID, req CreatePaymentRequest) (*PaymentResponse, error) {
	in := settlement.CreatePaymentInput{
		CompanyID:         companyID,
		BranchID:          req.BranchID,
		Type:              settlement.PaymentType(req.Type),
		PartyID:           req.PartyID,
		CashboxID:         req.CashboxID,
		BankAccountID:     req.BankAccountID,
		DestCashboxID:     req.DestCashboxID,
		DestBankAccountID: req.DestBankAccountID,
		PaymentDate:       req.PaymentDate.Time,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Reference:         req.Reference,
		Notes:             req.Notes,
	}
	if req.FeeAmount != nil {
		in.FeeAmount = *req.FeeAmount
	}
	op := mutate("payment", "create", companyID, telemetry.SpanAttrAmount, req.Amount.String())
	return s.paymentOp(ctx, op, func(ctx context.Context) (*settlement.Payment, error) {
		return s.engines.Payments.Create(ctx, in)
	})
}

// GetPayment returns a payment with its allocations
func (s *Service) GetPayment(ctx context.Context, companyID, id uuid.UUID) (*PaymentResponse, error) {
	op := read("payment", "get", companyID, telemetry.SpanAttrPaymentID, id.String())
	return call(s, ctx, op, func(ctx context.Context) (*PaymentResponse, error) {
		p, err := s.engines.Payments.Get(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		allocs, err := s.engines.Allocations.ForPayment(ctx, companyID, id)
		if err != nil {
			return nil, err
		}
		resp := ToPaymentResponse(p)
		resp.Allocations = ToAllocationResponses(allocs)
		return &resp, nil
	})
}

// ConfirmPayment makes a draft payment allocatable
func (s *Service) ConfirmPayment(ctx context.Context, companyID, id uuid.UUID) (*PaymentResponse, error) {
	return s.paymentOp(ctx, mutate("payment", "confirm", companyID, telemetry.SpanAttrPaymentID, id.String()),
		func(ctx context.Context) (*settlement.Payment, error) {
			return s.engines.Payments.Confirm(ctx, companyID, id)
		})
}

// CancelPayment cancels an unallocated payment
func (s *Service) CancelPayment(ctx context.Context, companyID, id uuid.UUID, req CancelRequest) (*PaymentResponse, error) {
	return s.paymentOp(ctx, mutate("payment", "cancel", companyID, telemetry.SpanAttrPaymentID, id.String()),
		func(ctx context.Context) (*settlement.Payment, error) {
			return s.engines.Payments.Cancel(ctx, companyID, id, req.Reason)
		})
}

func (s *Service) paymentOp(ctx context.Context, op operation, fn func(context.Context) (*settlement.Payment, error)) (*PaymentResponse, error) {
	return call(s, ctx, op, func(ctx context.Context) (*PaymentResponse, error) {
		p, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		resp := ToPaymentResponse(p)
		return &resp, nil
	})
}

// SuggestAllocations proposes an oldest-due-first fill without writing
func (s *Service) SuggestAllocations(ctx context.Context, companyID, paymentID uuid.UUID) (*SuggestionResponse, error) {
	op := read("allocation", "suggest", companyID, telemetry.SpanAttrPaymentID, paymentID.String())
	return call(s, ctx, op, func(ctx context.Context) (*SuggestionResponse, error) {
		sug, err := s.engines.Allocations.Suggest(ctx, companyID, paymentID)
		if err != nil {
			return nil, err
		}
		resp := ToSuggestionResponse(sug)
		return &resp, nil
	})
}

// Allocate applies a payment to documents atomically
func (s *Service) Allocate(ctx context.Context, companyID, paymentID uuid.UUID, req AllocateRequest) (*AllocationResultResponse, error) {
	lines := make([]settlement.AllocationLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = settlement.AllocationLine{DocumentID: l.DocumentID, Amount: l.Amount, Notes: l.Notes}
	}
	op := mutate("allocation", "allocate", companyID,
		telemetry.SpanAttrPaymentID, paymentID.String(),
		telemetry.SpanAttrLines, len(lines),
	)
	return call(s, ctx, op, func(ctx context.Context) (*AllocationResultResponse, error) {
		if len(lines) == 0 && req.UseSuggestion {
			sug, err := s.engines.Allocations.Suggest(ctx, companyID, paymentID)
			if err != nil {
				return nil, err
			}
			lines = sug.Allocations()
		}
		res, err := s.engines.Allocations.Allocate(ctx, companyID, paymentID, lines)
		if err != nil {
			return nil, err
		}
		resp := ToAllocationResultResponse(res)
		return &resp, nil
	})
}

// Deallocate removes one allocation and recomputes both sides
func (s *Service) Deallocate(ctx context.Context, companyID, allocationID uuid.UUID) (*AllocationResultResponse, error) {
	op := mutate("allocation", "deallocate", companyID, telemetry.SpanAttrAllocationID, allocationID.String())
	return call(s, ctx, op, func(ctx context.Context) (*AllocationResultResponse, error) {
		res, err := s.engines.Allocations.Deallocate(ctx, companyID, allocationID)
		if err != nil {
			return nil, err
		}
		resp := ToAllocationResultResponse(res)
		return &resp, nil
	})
}

// AccountBalance sums confirmed movement on a cash box or bank account
func (s *Service) AccountBalance(ctx context.Context, companyID uuid.UUID, cashboxID, bankAccountID *uuid.UUID, asOf time.Time) (*AccountBalanceResponse, error) {
	account, ok := settlement.AccountFromIDs(cashboxID, bankAccountID)
	if !ok {
		return nil, settlement.NewValidationError("account", "exactly one of cashbox_id or bank_account_id is required")
	}
	op := read("payment", "account_balance", companyID)
	return call(s, ctx, op, func(ctx context.Context) (*AccountBalanceResponse, error) {
		b, err := s.engines.Payments.AccountBalance(ctx, companyID, account, asOf)
		if err != nil {
			return nil, err
		}
		resp := ToAccountBalanceResponse(b)
		return &resp, nil
	})
}

// =============================================================================
// Cheques
// =============================================================================

func (r ChequeRequest) input(companyID uuid.UUID) settlement.ChequeInput {
	return settlement.ChequeInput{
		CompanyID:    companyID,
		BranchID:     r.BranchID,
		PartyID:      r.PartyID,
		ChequeNumber: r.ChequeNumber,
		BankName:     r.BankName,
		IssueDate:    r.IssueDate.Time,
		DueDate:      r.DueDate.Time,
		Amount:       r.Amount,
		Currency:     r.Currency,
		Notes:        r.Notes,
		PendingIssue: r.PendingIssue,
	}
}

// ReceiveCheque takes a customer cheque into the portfolio
func (s *Service) ReceiveCheque(ctx context.Context, companyID uuid.UUID, req ChequeRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "receive", companyID, telemetry.SpanAttrAmount, req.Amount.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Receive(ctx, req.input(companyID))
		})
}

// IssueCheque writes a cheque to a supplier
func (s *Service) IssueCheque(ctx context.Context, companyID uuid.UUID, req ChequeRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "issue", companyID, telemetry.SpanAttrAmount, req.Amount.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Issue(ctx, req.input(companyID))
		})
}

// GetCheque returns a cheque with its document
func (s *Service) GetCheque(ctx context.Context, companyID, id uuid.UUID) (*ChequeResponse, error) {
	return s.chequeOp(ctx, read("cheque", "get", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Get(ctx, companyID, id)
		})
}

// ReleaseCheque hands a pending issued cheque over
func (s *Service) ReleaseCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "release", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Release(ctx, companyID, id, req.Date.Time)
		})
}

// DepositCheque sends a portfolio cheque to a bank account
func (s *Service) DepositCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	if req.BankAccountID == nil || *req.BankAccountID == uuid.Nil {
		return nil, settlement.NewValidationError("bank_account_id", "is required")
	}
	return s.chequeOp(ctx, mutate("cheque", "deposit", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Deposit(ctx, companyID, id, req.Date.Time, *req.BankAccountID)
		})
}

// CollectCheque records the cleared funds and settles the cheque document
func (s *Service) CollectCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "collect", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Collect(ctx, companyID, id, req.Date.Time)
		})
}

// BounceCheque records a dishonoured deposit
func (s *Service) BounceCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "bounce", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Bounce(ctx, companyID, id, req.Date.Time)
		})
}

// EndorseCheque passes a portfolio cheque to another party
func (s *Service) EndorseCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	if req.ToPartyID == nil || *req.ToPartyID == uuid.Nil {
		return nil, settlement.NewValidationError("to_party_id", "is required")
	}
	return s.chequeOp(ctx, mutate("cheque", "endorse", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Endorse(ctx, companyID, id, *req.ToPartyID, req.Date.Time)
		})
}

// CancelCheque voids a cheque that never left the company
func (s *Service) CancelCheque(ctx context.Context, companyID, id uuid.UUID, req ChequeMoveRequest) (*ChequeResponse, error) {
	return s.chequeOp(ctx, mutate("cheque", "cancel", companyID, telemetry.SpanAttrChequeID, id.String()),
		func(ctx context.Context) (*settlement.ChequeResult, error) {
			return s.engines.Cheques.Cancel(ctx, companyID, id, req.Date.Time)
		})
}

func (s *Service) chequeOp(ctx context.Context, op operation, fn func(context.Context) (*settlement.ChequeResult, error)) (*ChequeResponse, error) {
	return call(s, ctx, op, func(ctx context.Context) (*ChequeResponse, error) {
		r, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		resp := ToChequeResponse(r)
		return &resp, nil
	})
}

// =============================================================================
// Forecast
// =============================================================================

// Forecast projects expected cash movement for [from, to]
func (s *Service) Forecast(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*ForecastResponse, error) {
	return call(s, ctx, read("forecast", "build", companyID), func(ctx context.Context) (*ForecastResponse, error) {
		f, err := s.engines.Forecast.Forecast(ctx, companyID, from, to)
		if err != nil {
			return nil, err
		}
		resp := ToForecastResponse(f)
		return &resp, nil
	})
}
