package settlement

import (
	"github.com/erp/settlement/internal/domain/settlement"
)

// ToPartyResponse converts a party to its API shape
func ToPartyResponse(p *settlement.Party) PartyResponse {
	resp := PartyResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		BranchID:  p.BranchID,
		Name:      p.Name,
		Type:      string(p.Type),
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version,
	}
	if p.Linkable != nil && !p.Linkable.IsZero() {
		id := p.Linkable.ID
		resp.LinkableType = p.Linkable.Type
		resp.LinkableID = &id
	}
	return resp
}

// ToPartyBalanceResponse converts a party balance
func ToPartyBalanceResponse(b *settlement.PartyBalance) PartyBalanceResponse {
	return PartyBalanceResponse{
		PartyID:               b.PartyID,
		ReceivableOutstanding: b.ReceivableOutstanding,
		PayableOutstanding:    b.PayableOutstanding,
		UnallocatedIn:         b.UnallocatedIn,
		UnallocatedOut:        b.UnallocatedOut,
		Net:                   b.Net,
	}
}

// ToDocumentResponse converts a document
func ToDocumentResponse(d *settlement.Document) DocumentResponse {
	return DocumentResponse{
		ID:              d.ID,
		CompanyID:       d.CompanyID,
		BranchID:        d.BranchID,
		Type:            string(d.Type()),
		Direction:       string(d.Direction()),
		PartyID:         d.PartyID(),
		Number:          d.Number,
		DocumentDate:    NewDate(d.DocumentDate()),
		DueDate:         NewDate(d.DueDate()),
		TotalAmount:     d.TotalAmount(),
		AllocatedAmount: d.AllocatedAmount(),
		UnpaidBalance:   d.UnpaidBalance(),
		Currency:        d.Currency(),
		Status:          string(d.Status()),
		Period:          d.Period().String(),
		ReversalOfID:    d.ReversalOfID(),
		Notes:           d.Notes,
		CancelReason:    d.CancelReason,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Version:         d.Version,
	}
}

// ToDocumentResponses converts a slice of documents
func ToDocumentResponses(docs []*settlement.Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = ToDocumentResponse(d)
	}
	return out
}

// ToPaymentResponse converts a payment
func ToPaymentResponse(p *settlement.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                p.ID,
		CompanyID:         p.CompanyID,
		BranchID:          p.BranchID,
		Type:              string(p.Type()),
		Direction:         string(p.Direction()),
		PartyID:           p.PartyID(),
		PaymentDate:       NewDate(p.PaymentDate()),
		Amount:            p.Amount(),
		FeeAmount:         p.FeeAmount(),
		NetAmount:         p.NetAmount(),
		AllocatedAmount:   p.AllocatedAmount(),
		UnallocatedAmount: p.UnallocatedAmount(),
		Currency:          p.Currency(),
		Status:            string(p.Status()),
		Period:            p.Period().String(),
		Reference:         p.Reference,
		Notes:             p.Notes,
		CancelReason:      p.CancelReason,
		ConfirmedAt:       p.ConfirmedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		Version:           p.Version,
	}
	resp.CashboxID, resp.BankAccountID = p.Source().IDs()
	if dest := p.Destination(); dest != nil {
		resp.DestCashboxID, resp.DestBankAccountID = dest.IDs()
	}
	return resp
}

// ToAllocationResponses converts allocation rows
func ToAllocationResponses(allocs []*settlement.Allocation) []AllocationResponse {
	out := make([]AllocationResponse, len(allocs))
	for i, a := range allocs {
		out[i] = AllocationResponse{
			ID:         a.ID,
			PaymentID:  a.PaymentID,
			DocumentID: a.DocumentID,
			Amount:     a.Amount,
			Notes:      a.Notes,
			CreatedBy:  a.CreatedBy,
			CreatedAt:  a.CreatedAt,
		}
	}
	return out
}

// ToAllocationResultResponse converts the outcome of an allocate or deallocate
func ToAllocationResultResponse(r *settlement.AllocationResult) AllocationResultResponse {
	return AllocationResultResponse{
		Payment:     ToPaymentResponse(r.Payment),
		Documents:   ToDocumentResponses(r.Documents),
		Allocations: ToAllocationResponses(r.Allocations),
	}
}

// ToSuggestionResponse converts an allocation suggestion
func ToSuggestionResponse(s *settlement.Suggestion) SuggestionResponse {
	lines := make([]SuggestionLineResponse, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = SuggestionLineResponse{
			DocumentID:    l.DocumentID,
			Number:        l.Number,
			Type:          string(l.Type),
			DueDate:       NewDate(l.DueDate),
			UnpaidBalance: l.UnpaidBalance,
			Suggested:     l.Suggested,
		}
	}
	return SuggestionResponse{
		PaymentID:      s.PaymentID,
		Unallocated:    s.Unallocated,
		TotalSuggested: s.TotalSuggested,
		Remaining:      s.Remaining,
		Lines:          lines,
	}
}

// ToAccountBalanceResponse converts an account balance
func ToAccountBalanceResponse(b *settlement.AccountBalance) AccountBalanceResponse {
	return AccountBalanceResponse{
		AccountKind: string(b.Account.Kind),
		AccountID:   b.Account.ID,
		AsOf:        NewDate(b.AsOf),
		Inflows:     b.Inflows,
		Outflows:    b.Outflows,
		Balance:     b.Balance,
		Payments:    b.Count,
	}
}

// ToChequeResponse converts a cheque with its document and payment
func ToChequeResponse(r *settlement.ChequeResult) ChequeResponse {
	c := r.Cheque
	resp := ChequeResponse{
		ID:                   c.ID,
		CompanyID:            c.CompanyID,
		ChequeNumber:         c.ChequeNumber,
		BankName:             c.BankName,
		Status:               string(c.Status()),
		IssueDate:            NewDate(c.IssueDate),
		DepositDate:          datePtr(c.DepositDate),
		DepositBankAccountID: c.DepositBankAccountID,
		CollectedDate:        datePtr(c.CollectedDate),
		CollectedPaymentID:   c.CollectedPaymentID,
		BouncedDate:          datePtr(c.BouncedDate),
		EndorsedToPartyID:    c.EndorsedToPartyID,
		EndorsedDate:         datePtr(c.EndorsedDate),
		CancelledDate:        datePtr(c.CancelledDate),
		Version:              c.Version,
	}
	if r.Document != nil {
		resp.Document = ToDocumentResponse(r.Document)
	}
	if r.Payment != nil {
		p := ToPaymentResponse(r.Payment)
		resp.Payment = &p
	}
	return resp
}

// ToPeriodResponse converts an accounting period
func ToPeriodResponse(p *settlement.AccountingPeriod) PeriodResponse {
	return PeriodResponse{
		Year:       p.Year,
		Month:      p.Month,
		Status:     string(p.Status),
		LockedAt:   p.LockedAt,
		LockedBy:   p.LockedBy,
		UnlockedAt: p.UnlockedAt,
		UnlockedBy: p.UnlockedBy,
	}
}

// ToForecastResponse converts a cash flow forecast
func ToForecastResponse(f *settlement.Forecast) ForecastResponse {
	buckets := make([]ForecastBucketResponse, len(f.Buckets))
	for i, b := range f.Buckets {
		buckets[i] = ForecastBucketResponse{
			Date:      NewDate(b.Date),
			Inflow:    b.Inflow,
			Outflow:   b.Outflow,
			Net:       b.Net,
			Documents: b.Documents,
		}
	}
	return ForecastResponse{
		From:         NewDate(f.From),
		To:           NewDate(f.To),
		Buckets:      buckets,
		TotalInflow:  f.TotalInflow,
		TotalOutflow: f.TotalOutflow,
		Net:          f.Net,
	}
}
