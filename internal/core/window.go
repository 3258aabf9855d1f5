package core

import "slices"

// DefaultWindowSize is the number of months spanned by OrganizeByMonth.
const DefaultWindowSize = 12

// Window partitions in and out records into the months around a reference
// month. Past and Future are ordered oldest to newest; each month lists its
// in-records before its out-records.
type Window struct {
	Month   YearMonth  `json:"month"`
	Current []Record   `json:"current"`
	Past    [][]Record `json:"past"`
	Future  [][]Record `json:"future"`
	Skipped int        `json:"skipped"`
}

// WindowRange returns the first and last month of a window of size months
// around current: size/2 months before through ceil(size/2)-1 months after.
func WindowRange(current YearMonth, size int) (YearMonth, YearMonth) {
	if size <= 0 {
		size = DefaultWindowSize
	}
	half := size / 2
	return current.Add(-half), current.Add((size+1)/2 - 1)
}

// CompareDates orders valid dates chronologically and invalid dates last.
func CompareDates(a, b Date) int {
	ta, okA := a.Local()
	tb, okB := b.Local()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return ta.Compare(tb)
}

// SortByDate returns a copy sorted by date, stable for equal dates. Records
// with an invalid date sort last.
func SortByDate(records []Record) []Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		return CompareDates(a.Date, b.Date)
	})
	return out
}

func groupByMonth(records []Record) (map[YearMonth][]Record, int) {
	grouped := map[YearMonth][]Record{}
	skipped := 0
	for _, r := range SortByDate(records) {
		t, ok := r.Date.Local()
		if !ok {
			skipped++
			continue
		}
		ym := YearMonthOf(t)
		grouped[ym] = append(grouped[ym], r)
	}
	return grouped, skipped
}

// OrganizeByMonth builds the month window used for scroll navigation.
func OrganizeByMonth(in, out []Record, current YearMonth, size int) Window {
	inGrouped, inSkipped := groupByMonth(in)
	outGrouped, outSkipped := groupByMonth(out)

	merged := func(ym YearMonth) []Record {
		recs := make([]Record, 0, len(inGrouped[ym])+len(outGrouped[ym]))
		recs = append(recs, inGrouped[ym]...)
		return append(recs, outGrouped[ym]...)
	}

	w := Window{
		Month:   current,
		Current: merged(current),
		Past:    [][]Record{},
		Future:  [][]Record{},
		Skipped: inSkipped + outSkipped,
	}

	first, last := WindowRange(current, size)
	for ym := first; ym.Compare(last) <= 0; ym = ym.Add(1) {
		switch ym.Compare(current) {
		case -1:
			w.Past = append(w.Past, merged(ym))
		case 1:
			w.Future = append(w.Future, merged(ym))
		}
	}
	return w
}
