package core

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopLimit is the number of categories returned by TopCategories when
// no positive limit is given.
const DefaultTopLimit = 5

const (
	DayOfWeek BucketKind = iota
	DayOfMonth
	MonthOfYear
)

const (
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

type (
	// BucketKind selects the calendar key used by GroupByBucket.
	BucketKind int

	// Period is a chart range relative to "now".
	Period string

	BucketValue struct {
		Label string          `json:"label"`
		Value decimal.Decimal `json:"value"`
	}

	CategoryShare struct {
		Type       string          `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		Percentage float64         `json:"percentage"`
	}

	// MonthTotal is a month sum together with how many records matched the
	// month and how many were skipped for an unparsable date.
	MonthTotal struct {
		Total   decimal.Decimal
		Matched int
		Skipped int
	}

	// Summary is the chart view of a record set over a period.
	Summary struct {
		Period  Period          `json:"period"`
		Total   decimal.Decimal `json:"total"`
		Average decimal.Decimal `json:"average"`
		Chart   []BucketValue   `json:"chart"`
		Top     []CategoryShare `json:"top"`
	}
)

// Labels used for chart buckets.
var (
	WeekdayLabels = [7]string{"Dom", "Lun", "Mar", "Mer", "Gio", "Ven", "Sab"}
	MonthLabels   = [12]string{"Gen", "Feb", "Mar", "Apr", "Mag", "Giu", "Lug", "Ago", "Set", "Ott", "Nov", "Dic"}
)

func (k BucketKind) String() string {
	switch k {
	case DayOfWeek:
		return "day-of-week"
	case DayOfMonth:
		return "day-of-month"
	case MonthOfYear:
		return "month-of-year"
	}
	return "unknown"
}

// ParsePeriod accepts week, month or year.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case Week, Month, Year:
		return p, nil
	}
	return "", fmt.Errorf("invalid period %q", s)
}

// Bucket returns the grouping used to chart the period.
func (p Period) Bucket() BucketKind {
	switch p {
	case Week:
		return DayOfWeek
	case Year:
		return MonthOfYear
	}
	return DayOfMonth
}

// TotalAll sums every amount; non-numeric amounts count as zero.
func TotalAll(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount.Value())
	}
	return total
}

// SumMonth sums the records whose local date falls in ym.
func SumMonth(records []Record, ym YearMonth) MonthTotal {
	res := MonthTotal{Total: decimal.Zero}
	for _, r := range records {
		t, ok := r.Date.Local()
		if !ok {
			res.Skipped++
			continue
		}
		if !ym.Contains(t) {
			continue
		}
		res.Matched++
		res.Total = res.Total.Add(r.Amount.Value())
	}
	return res
}

// TotalForMonth is SumMonth without the counters.
func TotalForMonth(records []Record, ym YearMonth) decimal.Decimal {
	return SumMonth(records, ym).Total
}

func bucketLabel(t time.Time, kind BucketKind) string {
	switch kind {
	case DayOfWeek:
		return WeekdayLabels[t.Weekday()]
	case MonthOfYear:
		return MonthLabels[t.Month()-1]
	}
	return strconv.Itoa(t.Day())
}

// GroupByBucket emits one entry per bucket present in records, in the order
// each bucket is first seen. Records with an invalid date are left out.
func GroupByBucket(records []Record, kind BucketKind) []BucketValue {
	out := []BucketValue{}
	pos := map[string]int{}
	for _, r := range records {
		t, ok := r.Date.Local()
		if !ok {
			continue
		}
		label := bucketLabel(t, kind)
		i, seen := pos[label]
		if !seen {
			pos[label] = len(out)
			out = append(out, BucketValue{Label: label, Value: r.Amount.Value()})
			continue
		}
		out[i].Value = out[i].Value.Add(r.Amount.Value())
	}
	return out
}

// TopCategories groups by Type, sorts by descending sum and keeps the first
// limit entries. Equal sums keep the order in which the type was first seen.
// Percentages are relative to the total of all groups, not just the kept
// ones, and are 0 when that total is 0.
func TopCategories(records []Record, limit int) []CategoryShare {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	groups := []CategoryShare{}
	pos := map[string]int{}
	total := decimal.Zero
	for _, r := range records {
		v := r.Amount.Value()
		total = total.Add(v)
		i, seen := pos[r.Type]
		if !seen {
			pos[r.Type] = len(groups)
			groups = append(groups, CategoryShare{Type: r.Type, Amount: v})
			continue
		}
		groups[i].Amount = groups[i].Amount.Add(v)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Amount.GreaterThan(groups[j].Amount)
	})
	if len(groups) > limit {
		groups = groups[:limit]
	}

	hundred := decimal.NewFromInt(100)
	for i := range groups {
		if total.IsZero() {
			groups[i].Percentage = 0
			continue
		}
		groups[i].Percentage = groups[i].Amount.Div(total).Mul(hundred).InexactFloat64()
	}
	return groups
}

// Average divides the total of records by the number of buckets that have
// data, not by the number of calendar slots in the period.
func Average(records []Record, kind BucketKind) decimal.Decimal {
	buckets := GroupByBucket(records, kind)
	if len(buckets) == 0 {
		return decimal.Zero
	}
	return TotalAll(records).Div(decimal.NewFromInt(int64(len(buckets))))
}

// FilterPeriod keeps records dated in the period ending at now: the last
// seven days for Week, the calendar month or year of now otherwise.
func FilterPeriod(records []Record, p Period, now time.Time) []Record {
	now = now.In(time.Local)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	out := make([]Record, 0, len(records))
	for _, r := range records {
		t, ok := r.Date.Local()
		if !ok {
			continue
		}
		var keep bool
		switch p {
		case Week:
			keep = !t.Before(weekAgo)
		case Year:
			keep = t.Year() == now.Year()
		default:
			keep = t.Year() == now.Year() && t.Month() == now.Month()
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// Summarize filters records to the period and computes the chart, average and
// top five categories.
func Summarize(records []Record, p Period, now time.Time) Summary {
	filtered := FilterPeriod(records, p, now)
	return Summary{
		Period:  p,
		Total:   TotalAll(filtered),
		Average: Average(filtered, p.Bucket()),
		Chart:   GroupByBucket(filtered, p.Bucket()),
		Top:     TopCategories(filtered, DefaultTopLimit),
	}
}
