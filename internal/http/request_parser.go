// Package http exposes the ledger, budgets, preferences and theme as a JSON
// API.
//
// This file implements utilities for parsing and validating request data.
// Bodies may be JSON objects or form-encoded; both are read through the same
// accessor so handlers do not care which one the client sent.
package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"registro/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// Input limits for record fields.
const (
	maxTypeLength        = 50
	maxDescriptionLength = 200
)

var (
	errMissingType     = errors.New("categoria obbligatoria")
	errTypeTooLong     = fmt.Errorf("categoria troppo lunga (max %d caratteri)", maxTypeLength)
	errDescTooLong     = fmt.Errorf("descrizione troppo lunga (max %d caratteri)", maxDescriptionLength)
	errInvalidAmount   = errors.New("importo non valido")
	errAmountNotPos    = errors.New("l'importo deve essere maggiore di zero")
	errInvalidDate     = errors.New("data non valida")
	errInvalidIndex    = errors.New("indice non valido")
	errInvalidMonth    = errors.New("mese non valido")
	errInvalidYear     = errors.New("anno non valido")
	errInvalidSize     = errors.New("dimensione finestra non valida")
	errInvalidBodyForm = errors.New("formato richiesta non valido")
)

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = fmt.Errorf("request body larger than %d bytes", maxBodyBytes)
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(string(body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	return p.formData != nil && p.formData.Has(key)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseRecord validates a record submitted by a client. A missing date
// means now; a given date must parse.
func ParseRecord(p *RequestBodyParser, now time.Time) (core.Record, error) {
	typ := p.Get("type")
	desc := p.Get("description")
	switch {
	case typ == "":
		return core.Record{}, errMissingType
	case len([]rune(typ)) > maxTypeLength:
		return core.Record{}, errTypeTooLong
	case len([]rune(desc)) > maxDescriptionLength:
		return core.Record{}, errDescTooLong
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.Record{}, errInvalidAmount
	}
	if !amount.IsPositive() {
		return core.Record{}, errAmountNotPos
	}

	date := core.NewDate(now)
	if s := p.Get("date"); s != "" {
		t, ok := core.ParseDate(s).Local()
		if !ok {
			return core.Record{}, errInvalidDate
		}
		date = core.NewDate(t)
	}

	return core.Record{
		Type:        typ,
		Description: desc,
		Date:        date,
		Amount:      core.NewAmount(amount),
	}, nil
}

// parseCollection reads the {collection} URL parameter.
func parseCollection(r *http.Request) (core.Collection, error) {
	return core.ParseCollection(chi.URLParam(r, "collection"))
}

// parseIndex reads the {index} URL parameter.
func parseIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		return 0, errInvalidIndex
	}
	return i, nil
}

// ParseMonthParam reads a year-month from the query, defaulting to the month
// of now when the parameter is absent.
func ParseMonthParam(query url.Values, key string, now time.Time) (core.YearMonth, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.YearMonthOf(now), nil
	}
	ym, err := core.ParseYearMonth(v)
	if err != nil {
		return core.YearMonth{}, errInvalidMonth
	}
	return ym, nil
}

// ParseSizeParam reads the window size, defaulting to def.
func ParseSizeParam(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("size"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 120 {
		return 0, errInvalidSize
	}
	return n, nil
}

// parseYear accepts four-digit years.
func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1000 || y > 9999 {
		return 0, errInvalidYear
	}
	return y, nil
}
