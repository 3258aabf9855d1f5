package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"registro/internal/core"
)

func newParser(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser_JSON(t *testing.T) {
	parser := newParser(t, "application/json", `{"type": "Cibo", "amount": 42.5, "precise": 12.345678901234567890, "flag": true}`)

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if typ := parser.Get("type"); typ != "Cibo" {
		t.Errorf("Get('type') = %q, want 'Cibo'", typ)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if precise := parser.Get("precise"); precise != "12.345678901234567890" {
		t.Errorf("Get('precise') = %q, numbers must keep their digits", precise)
	}
	if flag := parser.Get("flag"); flag != "true" {
		t.Errorf("Get('flag') = %q, want 'true'", flag)
	}
	if !parser.Has("type") || parser.Has("missing") {
		t.Error("Has() does not reflect the sent keys")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	parser := newParser(t, "application/x-www-form-urlencoded", "type=Casa&description=affitto+marzo&amount=100")

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if desc := parser.Get("description"); desc != "affitto marzo" {
		t.Errorf("Get('description') = %q, want 'affitto marzo'", desc)
	}
	if !parser.Has("amount") {
		t.Error("Has('amount') = false")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	parser := newParser(t, "", "")
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"type": `},
		{"json array", `[1, 2]`},
		{"too large", `{"description": "` + strings.Repeat("a", maxBodyBytes) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if err := NewRequestBodyParser(req).Parse(); err == nil {
				t.Error("Parse() error = nil, want error")
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  ca\x00sa\x07\t "); got != "casa" {
		t.Errorf("sanitizeInput() = %q, want %q", got, "casa")
	}
	if got := sanitizeInput("riga1\nriga2"); got != "riga1\nriga2" {
		t.Errorf("sanitizeInput() must keep newlines, got %q", got)
	}
}

func TestParseRecord(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 30, 0, 0, time.Local)

	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantAmount string
		wantDate   time.Time
	}{
		{
			name:       "full json",
			body:       `{"type": "Cibo", "description": "spesa", "amount": "12,345", "date": "2024-03-05"}`,
			wantAmount: "12.35",
			wantDate:   time.Date(2024, time.March, 5, 0, 0, 0, 0, time.Local),
		},
		{
			name:       "missing date means now",
			body:       `{"type": "Cibo", "amount": 3}`,
			wantAmount: "3",
			wantDate:   now,
		},
		{
			name:     "iso timestamp",
			body:     `{"type": "Cibo", "amount": 1, "date": "2024-03-05T10:00:00.000Z"}`,
			wantDate: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC),
		},
		{name: "missing type", body: `{"amount": 3}`, wantErr: errMissingType},
		{name: "type too long", body: `{"type": "` + strings.Repeat("x", maxTypeLength+1) + `", "amount": 3}`, wantErr: errTypeTooLong},
		{name: "description too long", body: `{"type": "x", "description": "` + strings.Repeat("x", maxDescriptionLength+1) + `", "amount": 3}`, wantErr: errDescTooLong},
		{name: "negative amount", body: `{"type": "Cibo", "amount": -3}`, wantErr: errInvalidAmount},
		{name: "text amount", body: `{"type": "Cibo", "amount": "tre"}`, wantErr: errInvalidAmount},
		{name: "zero amount", body: `{"type": "Cibo", "amount": 0}`, wantErr: errAmountNotPos},
		{name: "bad date", body: `{"type": "Cibo", "amount": 3, "date": "ieri"}`, wantErr: errInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseRecord(newParser(t, "application/json", tt.body), now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRecord() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord() error = %v", err)
			}
			if tt.wantAmount != "" && rec.Amount.String() != tt.wantAmount {
				t.Errorf("Amount = %s, want %s", rec.Amount, tt.wantAmount)
			}
			got, ok := rec.Date.Local()
			if !ok || !got.Equal(tt.wantDate) {
				t.Errorf("Date = %v (valid %v), want %v", got, ok, tt.wantDate)
			}
		})
	}
}

func TestParseMonthParam(t *testing.T) {
	now := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name    string
		query   url.Values
		want    core.YearMonth
		wantErr bool
	}{
		{"default is current month", url.Values{}, core.YearMonth{Year: 2024, Month: time.March}, false},
		{"short month", url.Values{"month": {"2023-7"}}, core.YearMonth{Year: 2023, Month: time.July}, false},
		{"padded month", url.Values{"month": {"2025-01"}}, core.YearMonth{Year: 2025, Month: time.January}, false},
		{"month 13", url.Values{"month": {"2024-13"}}, core.YearMonth{}, true},
		{"garbage", url.Values{"month": {"marzo"}}, core.YearMonth{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParam(tt.query, "month", now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParam() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParam() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSizeParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 12, false},
		{"6", 6, false},
		{"0", 0, true},
		{"121", 0, true},
		{"dodici", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSizeParam(url.Values{"size": {tt.raw}}, 12)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSizeParam(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseSizeParam(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
