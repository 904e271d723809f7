package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation links part of a payment to a document.
// Rows are immutable; deallocation deletes them.
type Allocation struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	PaymentID  uuid.UUID
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Notes      string
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

// AllocationLine is one requested {document, amount} pair
type AllocationLine struct {
	DocumentID uuid.UUID
	Amount     decimal.Decimal
	Notes      string
}

func newAllocation(p *Payment, line AllocationLine, actor uuid.UUID, now time.Time) *Allocation {
	return &Allocation{
		ID:         uuid.New(),
		CompanyID:  p.CompanyID,
		PaymentID:  p.ID,
		DocumentID: line.DocumentID,
		Amount:     line.Amount,
		Notes:      line.Notes,
		CreatedBy:  actor,
		CreatedAt:  now,
	}
}

func validateLines(lines []AllocationLine) error {
	v := &ValidationError{}
	if len(lines) == 0 {
		v.Add("lines", "at least one allocation line is required")
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, l := range lines {
		if l.DocumentID == uuid.Nil {
			v.Add("document_id", "is required")
			continue
		}
		if _, dup := seen[l.DocumentID]; dup {
			v.Add("document_id", "document "+l.DocumentID.String()+" appears more than once")
		}
		seen[l.DocumentID] = struct{}{}
		if !l.Amount.IsPositive() {
			v.Add("amount", "must be greater than zero for document "+l.DocumentID.String())
		}
	}
	return v.OrNil()
}

// SumAllocations totals the amounts of the given allocations
func SumAllocations(allocs []*Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}
