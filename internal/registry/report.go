package registry

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"registro/internal/core"
	"registro/internal/log"
)

type (
	// Entry is a record of either collection together with its position in
	// that collection, which is what DeleteAt and ReplaceAt expect.
	Entry struct {
		Record     core.Record     `json:"record"`
		Collection core.Collection `json:"collection"`
		Index      int             `json:"index"`
	}

	MonthReport struct {
		Month   core.YearMonth  `json:"month"`
		Label   string          `json:"label"`
		Income  decimal.Decimal `json:"income"`
		Outcome decimal.Decimal `json:"outcome"`
		Net     decimal.Decimal `json:"net"`
	}

	// YearReport lists the twelve months of a year with their totals.
	YearReport struct {
		Year    int             `json:"year"`
		Months  []MonthReport   `json:"months"`
		Income  decimal.Decimal `json:"income"`
		Outcome decimal.Decimal `json:"outcome"`
		Net     decimal.Decimal `json:"net"`
	}
)

// TotalAll sums every amount of a collection.
func (r *Registry) TotalAll(ctx context.Context, name core.Collection) decimal.Decimal {
	return core.TotalAll(r.Load(ctx, name))
}

// TotalForMonth sums the records dated in yearMonth. An unparsable yearMonth
// yields zero.
func (r *Registry) TotalForMonth(ctx context.Context, name core.Collection, yearMonth string) decimal.Decimal {
	ym, err := core.ParseYearMonth(yearMonth)
	if err != nil {
		r.logger.WarnContext(ctx, "Invalid month, total is zero",
			log.FieldOperation, log.OpTotal,
			log.FieldCollection, name,
			log.FieldYearMonth, yearMonth,
			log.FieldError, err)
		return decimal.Zero
	}
	return r.MonthTotal(ctx, name, ym).Total
}

// MonthTotal is TotalForMonth with match and skip counters.
func (r *Registry) MonthTotal(ctx context.Context, name core.Collection, ym core.YearMonth) core.MonthTotal {
	res := core.SumMonth(r.Load(ctx, name), ym)
	if res.Skipped > 0 {
		r.logger.DebugContext(ctx, "Records without a valid date left out of month total",
			log.FieldCollection, name,
			log.FieldYearMonth, ym.String(),
			log.FieldSkipped, res.Skipped)
	}
	return res
}

// Summary charts a collection over a period ending at now.
func (r *Registry) Summary(ctx context.Context, name core.Collection, p core.Period, now time.Time) core.Summary {
	return core.Summarize(r.Load(ctx, name), p, now)
}

// Organize loads both collections and windows them around current.
func (r *Registry) Organize(ctx context.Context, current core.YearMonth, size int) core.Window {
	w := core.OrganizeByMonth(r.Load(ctx, core.In), r.Load(ctx, core.Out), current, size)
	if w.Skipped > 0 {
		r.logger.WarnContext(ctx, "Records without a valid date left out of window",
			log.FieldOperation, log.OpOrganize,
			log.FieldYearMonth, current.String(),
			log.FieldSkipped, w.Skipped)
	}
	return w
}

// MonthEntries returns the records of both collections dated in ym, sorted by
// date with in-records first on equal dates.
func (r *Registry) MonthEntries(ctx context.Context, ym core.YearMonth) []Entry {
	entries := []Entry{}
	for _, name := range []core.Collection{core.In, core.Out} {
		for i, rec := range r.Load(ctx, name) {
			t, ok := rec.Date.Local()
			if !ok || !ym.Contains(t) {
				continue
			}
			entries = append(entries, Entry{Record: rec, Collection: name, Index: i})
		}
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return core.CompareDates(a.Record.Date, b.Record.Date)
	})
	return entries
}

// YearReport totals income and outcome for each month of year.
func (r *Registry) YearReport(ctx context.Context, year int) (YearReport, error) {
	var in, out []core.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		in = r.Load(gctx, core.In)
		return gctx.Err()
	})
	g.Go(func() error {
		out = r.Load(gctx, core.Out)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return YearReport{}, err
	}

	rep := YearReport{
		Year:    year,
		Months:  make([]MonthReport, 0, 12),
		Income:  decimal.Zero,
		Outcome: decimal.Zero,
	}
	for m := time.January; m <= time.December; m++ {
		ym := core.YearMonth{Year: year, Month: m}
		income := core.TotalForMonth(in, ym)
		outcome := core.TotalForMonth(out, ym)
		rep.Months = append(rep.Months, MonthReport{
			Month:   ym,
			Label:   core.MonthLabels[m-1],
			Income:  income,
			Outcome: outcome,
			Net:     income.Sub(outcome),
		})
		rep.Income = rep.Income.Add(income)
		rep.Outcome = rep.Outcome.Add(outcome)
	}
	rep.Net = rep.Income.Sub(rep.Outcome)
	return rep, nil
}
