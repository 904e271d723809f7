package settlement

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastService projects expected cash movement from open documents
type ForecastService struct {
	*engineCore
}

// ForecastBucket is the expected movement on one due date
type ForecastBucket struct {
	Date      time.Time
	Inflow    decimal.Decimal
	Outflow   decimal.Decimal
	Net       decimal.Decimal
	Documents int
}

// Forecast is the bucketed projection for a date range
type Forecast struct {
	CompanyID    uuid.UUID
	From         time.Time
	To           time.Time
	Buckets      []ForecastBucket
	TotalInflow  decimal.Decimal
	TotalOutflow decimal.Decimal
	Net          decimal.Decimal
}

// maxForecastDays bounds the requested range
const maxForecastDays = 366

// Forecast buckets the unpaid balance of open documents due in [from, to]
// by due date. Cheque documents count only while the cheque can still move
// cash.
func (s *ForecastService) Forecast(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*Forecast, error) {
	from, to = dateOnly(from), dateOnly(to)
	v := &ValidationError{}
	if from.IsZero() || to.IsZero() {
		v.Add("range", "from and to are required")
	} else if to.Before(from) {
		v.Add("to", "must not be before from")
	} else if to.Sub(from) > maxForecastDays*24*time.Hour {
		v.Add("range", "must not exceed one year")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var docs []*Document
	var cheques map[uuid.UUID]*Cheque
	err := s.store.View(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		docs, err = tx.Documents().FindOpenDueBetween(ctx, companyID, from, to)
		if err != nil {
			return err
		}
		var chequeDocs []uuid.UUID
		for _, d := range docs {
			if d.Type().IsCheque() {
				chequeDocs = append(chequeDocs, d.ID)
			}
		}
		if len(chequeDocs) == 0 {
			return nil
		}
		cheques, err = tx.Cheques().FindByDocumentIDs(ctx, chequeDocs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buildForecast(companyID, from, to, docs, cheques), nil
}

func buildForecast(companyID uuid.UUID, from, to time.Time, docs []*Document, cheques map[uuid.UUID]*Cheque) *Forecast {
	f := &Forecast{
		CompanyID:    companyID,
		From:         from,
		To:           to,
		TotalInflow:  decimal.Zero,
		TotalOutflow: decimal.Zero,
	}
	buckets := make(map[time.Time]*ForecastBucket)
	for _, d := range docs {
		if !d.IsOpen() {
			continue
		}
		if d.Type().IsCheque() {
			c, ok := cheques[d.ID]
			if !ok || !c.Status().CountsInForecast() {
				continue
			}
		}
		due := d.DueDate()
		if due.Before(from) || due.After(to) {
			continue
		}
		b, ok := buckets[due]
		if !ok {
			b = &ForecastBucket{Date: due, Inflow: decimal.Zero, Outflow: decimal.Zero}
			buckets[due] = b
		}
		amount := d.UnpaidBalance()
		if d.Direction() == DirectionReceivable {
			b.Inflow = b.Inflow.Add(amount)
			f.TotalInflow = f.TotalInflow.Add(amount)
		} else {
			b.Outflow = b.Outflow.Add(amount)
			f.TotalOutflow = f.TotalOutflow.Add(amount)
		}
		b.Documents++
	}
	f.Buckets = make([]ForecastBucket, 0, len(buckets))
	for _, b := range buckets {
		b.Net = b.Inflow.Sub(b.Outflow)
		f.Buckets = append(f.Buckets, *b)
	}
	sort.Slice(f.Buckets, func(i, j int) bool { return f.Buckets[i].Date.Before(f.Buckets[j].Date) })
	f.Net = f.TotalInflow.Sub(f.TotalOutflow)
	return f
}
