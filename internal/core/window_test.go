package core

import (
	"testing"
	"time"
)

func TestWindowRange(t *testing.T) {
	cur := YearMonth{2024, time.March}
	cases := []struct {
		size        int
		first, last YearMonth
	}{
		{12, YearMonth{2023, time.September}, YearMonth{2024, time.August}},
		{0, YearMonth{2023, time.September}, YearMonth{2024, time.August}},
		{3, YearMonth{2024, time.February}, YearMonth{2024, time.April}},
		{1, cur, cur},
	}
	for _, tc := range cases {
		first, last := WindowRange(cur, tc.size)
		if first != tc.first || last != tc.last {
			t.Fatalf("size %d: got %v..%v, want %v..%v", tc.size, first, last, tc.first, tc.last)
		}
	}
}

func TestOrganizeByMonthCoverage(t *testing.T) {
	cur := YearMonth{2024, time.January}
	w := OrganizeByMonth(nil, nil, cur, 12)
	if len(w.Past)+len(w.Future) != 11 {
		t.Fatalf("past+future = %d, want 11", len(w.Past)+len(w.Future))
	}
	if len(w.Past) != 6 || len(w.Future) != 5 {
		t.Fatalf("past=%d future=%d, want 6 and 5", len(w.Past), len(w.Future))
	}
	if w.Current == nil || len(w.Current) != 0 {
		t.Fatalf("expected empty current month, got %v", w.Current)
	}
}

func TestOrganizeByMonthPartition(t *testing.T) {
	in := []Record{
		rec("Salary", 2000, "2024-03-27"),
		rec("Refund", 20, "2024-03-02"),
		rec("Salary", 2000, "2024-02-27"),
		rec("Bonus", 500, "2025-06-01"), // outside the window
	}
	out := []Record{
		rec("Food", 10, "2024-03-05"),
		rec("Rent", 700, "2024-04-01"),
		rec("Bad", 1, "nope"),
	}
	w := OrganizeByMonth(in, out, YearMonth{2024, time.March}, 12)

	if len(w.Current) != 3 {
		t.Fatalf("current has %d records, want 3", len(w.Current))
	}
	// In-records first, each collection sorted by date.
	wantTypes := []string{"Refund", "Salary", "Food"}
	for i, typ := range wantTypes {
		if w.Current[i].Type != typ {
			t.Fatalf("current[%d] = %s, want %s", i, w.Current[i].Type, typ)
		}
	}

	// Past is oldest to newest: Sep 2023 .. Feb 2024, so February is last.
	if len(w.Past) != 6 || len(w.Past[5]) != 1 || w.Past[5][0].Type != "Salary" {
		t.Fatalf("unexpected past months %+v", w.Past)
	}
	// Future starts with April.
	if len(w.Future) != 5 || len(w.Future[0]) != 1 || w.Future[0][0].Type != "Rent" {
		t.Fatalf("unexpected future months %+v", w.Future)
	}
	if w.Skipped != 1 {
		t.Fatalf("skipped = %d, want 1", w.Skipped)
	}
}

func TestSortByDateIsStableAndKeepsInput(t *testing.T) {
	recs := []Record{
		rec("b", 1, "2024-03-02"),
		rec("bad", 1, "x"),
		rec("a", 1, "2024-03-01"),
		rec("c", 1, "2024-03-02"),
	}
	sorted := SortByDate(recs)
	got := ""
	for _, r := range sorted {
		got += r.Type + ","
	}
	if got != "a,b,c,bad," {
		t.Fatalf("sorted order = %s", got)
	}
	if recs[0].Type != "b" {
		t.Fatalf("input was modified")
	}
}
