package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a calendar month. Comparisons are done on whole months so
// that two values built from different timestamps in the same month are equal.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the local calendar month of t.
func YearMonthOf(t time.Time) YearMonth {
	t = t.In(time.Local)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// ParseYearMonth accepts "2024-3", "2024-03", "2024-03-05" and full ISO
// timestamps.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if y, m, ok := strings.Cut(s, "-"); ok && len(y) == 4 && len(m) >= 1 && len(m) <= 2 {
		year, errY := strconv.Atoi(y)
		month, errM := strconv.Atoi(m)
		if errY == nil && errM == nil {
			if month < 1 || month > 12 {
				return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
			}
			return YearMonth{Year: year, Month: time.Month(month)}, nil
		}
	}
	if t, ok := ParseDate(s).Local(); ok {
		return YearMonthOf(t), nil
	}
	return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidYearMonth, s)
}

// index counts months from year 0.
func (ym YearMonth) index() int {
	return ym.Year*12 + int(ym.Month) - 1
}

func fromIndex(i int) YearMonth {
	year := i / 12
	month := i % 12
	if month < 0 {
		month += 12
		year--
	}
	return YearMonth{Year: year, Month: time.Month(month + 1)}
}

// Add shifts by n months (n may be negative).
func (ym YearMonth) Add(n int) YearMonth {
	return fromIndex(ym.index() + n)
}

// Compare returns -1, 0 or +1.
func (ym YearMonth) Compare(o YearMonth) int {
	a, b := ym.index(), o.index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Contains reports whether the local calendar month of t is ym.
func (ym YearMonth) Contains(t time.Time) bool {
	return YearMonthOf(t) == ym
}

// First returns local midnight of the first day of the month.
func (ym YearMonth) First() time.Time {
	return time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.Local)
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(b []byte) error {
	v, err := ParseYearMonth(string(b))
	if err != nil {
		return err
	}
	*ym = v
	return nil
}
