package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	In  Collection = "in"
	Out Collection = "out"
)

type (
	// Collection names one of the two append-only transaction lists.
	Collection string

	// Date is a record timestamp. A date that failed to parse is kept verbatim
	// so that it survives a save, but it never matches a calendar bucket.
	Date struct {
		t     time.Time
		raw   json.RawMessage
		valid bool
	}

	// Amount is a non-negative decimal. Anything that was not a JSON number
	// when decoded is invalid and counts as zero.
	Amount struct {
		value decimal.Decimal
		raw   json.RawMessage
		valid bool
	}

	Record struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Date        Date   `json:"date"`
		Amount      Amount `json:"amount"`
	}
)

var (
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidYearMonth  = errors.New("invalid year-month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnknownCurrency   = errors.New("unknown currency")
)

// ParseCollection accepts "in" or "out" (case-insensitive).
func ParseCollection(s string) (Collection, error) {
	switch Collection(strings.ToLower(strings.TrimSpace(s))) {
	case In:
		return In, nil
	case Out:
		return Out, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCollection, s)
}

// Key returns the storage key holding the collection.
func (c Collection) Key() string {
	return "registry_" + string(c)
}

func (c Collection) String() string {
	return string(c)
}

// Layouts tried in order when decoding a date string. Layouts without a zone
// are read in the local time zone.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewDate wraps t as a valid Date.
func NewDate(t time.Time) Date {
	return Date{t: t, valid: true}
}

// DateOf builds a valid local-midnight Date.
func DateOf(year int, month time.Month, day int) Date {
	return NewDate(time.Date(year, month, day, 0, 0, 0, 0, time.Local))
}

// ParseDate never fails; an unparsable string yields an invalid Date that
// remembers the input.
func ParseDate(s string) Date {
	raw, _ := json.Marshal(s)
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, trimmed)
		} else {
			t, err = time.ParseInLocation(layout, trimmed, time.Local)
		}
		if err == nil {
			return Date{t: t, raw: raw, valid: true}
		}
	}
	return Date{raw: raw}
}

// Valid reports whether the date parsed.
func (d Date) Valid() bool {
	return d.valid
}

// Local returns the timestamp in the local time zone.
func (d Date) Local() (time.Time, bool) {
	if !d.valid {
		return time.Time{}, false
	}
	return d.t.In(time.Local), true
}

func (d Date) String() string {
	if d.valid && len(d.raw) == 0 {
		return d.t.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	var s string
	if err := json.Unmarshal(d.raw, &s); err == nil {
		return s
	}
	return string(d.raw)
}

// Equal compares instants for valid dates and the stored input otherwise.
func (d Date) Equal(o Date) bool {
	if d.valid != o.valid {
		return false
	}
	if d.valid {
		return d.t.Equal(o.t)
	}
	return bytes.Equal(d.raw, o.raw)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	if !d.valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.t.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*d = Date{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		d.raw = append(json.RawMessage(nil), b...)
		return nil
	}
	*d = ParseDate(s)
	d.raw = append(json.RawMessage(nil), b...)
	return nil
}

// NewAmount wraps v as a valid Amount.
func NewAmount(v decimal.Decimal) Amount {
	return Amount{value: v, valid: true}
}

// AmountFromFloat is a convenience for literals.
func AmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

// Value returns the amount, or zero when it is not numeric.
func (a Amount) Value() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.value
}

// Valid reports whether the amount was numeric.
func (a Amount) Valid() bool {
	return a.valid
}

func (a Amount) Equal(o Amount) bool {
	if a.valid != o.valid {
		return false
	}
	if a.valid {
		return a.value.Equal(o.value)
	}
	return bytes.Equal(a.raw, o.raw)
}

func (a Amount) String() string {
	return a.Value().String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.valid {
		return []byte(a.value.String()), nil
	}
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return []byte("null"), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*a = Amount{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		if v, err := decimal.NewFromString(string(b)); err == nil {
			a.value = v
			a.valid = true
			return nil
		}
	}
	a.raw = append(json.RawMessage(nil), b...)
	return nil
}

// Equal compares records field by field.
func (r Record) Equal(o Record) bool {
	return r.Type == o.Type &&
		r.Description == o.Description &&
		r.Date.Equal(o.Date) &&
		r.Amount.Equal(o.Amount)
}
