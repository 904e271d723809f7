package settlement

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SuggestionLine proposes an amount for one open document
type SuggestionLine struct {
	DocumentID    uuid.UUID
	Number        string
	Type          DocumentType
	DueDate       time.Time
	UnpaidBalance decimal.Decimal
	Suggested     decimal.Decimal
}

// Suggestion is a read-only oldest-due-first fill of a payment's unallocated amount
type Suggestion struct {
	PaymentID      uuid.UUID
	Unallocated    decimal.Decimal
	TotalSuggested decimal.Decimal
	Remaining      decimal.Decimal
	Lines          []SuggestionLine
}

// Allocations returns the lines with a positive suggested amount, ready for Allocate
func (s *Suggestion) Allocations() []AllocationLine {
	out := make([]AllocationLine, 0, len(s.Lines))
	for _, l := range s.Lines {
		if l.Suggested.IsPositive() {
			out = append(out, AllocationLine{DocumentID: l.DocumentID, Amount: l.Suggested})
		}
	}
	return out
}

// sortOldestDueFirst orders documents by due date, then id
func sortOldestDueFirst(docs []*Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].DueDate().Equal(docs[j].DueDate()) {
			return docs[i].DueDate().Before(docs[j].DueDate())
		}
		return bytes.Compare(docs[i].ID[:], docs[j].ID[:]) < 0
	})
}

// suggestOldestDueFirst fills amount greedily across docs. Every candidate is
// listed; those past the amount get zero.
func suggestOldestDueFirst(paymentID uuid.UUID, amount decimal.Decimal, docs []*Document) *Suggestion {
	candidates := make([]*Document, len(docs))
	copy(candidates, docs)
	sortOldestDueFirst(candidates)

	s := &Suggestion{
		PaymentID:      paymentID,
		Unallocated:    amount,
		TotalSuggested: decimal.Zero,
		Lines:          make([]SuggestionLine, 0, len(candidates)),
	}
	remaining := amount
	for _, d := range candidates {
		unpaid := d.UnpaidBalance()
		if !unpaid.IsPositive() {
			continue
		}
		take := decimal.Zero
		if remaining.IsPositive() {
			take = decimal.Min(remaining, unpaid)
			remaining = remaining.Sub(take)
			s.TotalSuggested = s.TotalSuggested.Add(take)
		}
		s.Lines = append(s.Lines, SuggestionLine{
			DocumentID:    d.ID,
			Number:        d.Number,
			Type:          d.Type(),
			DueDate:       d.DueDate(),
			UnpaidBalance: unpaid,
			Suggested:     take,
		})
	}
	s.Remaining = remaining
	return s
}

// sortByID orders ids ascending, the lock order for documents
func sortByID(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
