// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user-entered amounts and the
// currency table used for conversions.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to a non-negative amount rounded to
// cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return decimal.Zero, ErrInvalidAmount
	}
	if intPart == "" && fracPart == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Signs are rejected here as well: only digits are allowed.
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	num := intPart
	if fracPart != "" {
		num += "." + fracPart
	}
	v, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return v.Round(2), nil
}

// Currency is a conversion rate relative to the euro.
type Currency struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Rate   decimal.Decimal `json:"rate"`
}

// Currencies is the static rate table offered by the converter.
var Currencies = []Currency{
	{Code: "EUR", Name: "Euro", Symbol: "€", Rate: decimal.NewFromInt(1)},
	{Code: "USD", Name: "US Dollar", Symbol: "$", Rate: decimal.RequireFromString("1.09")},
	{Code: "GBP", Name: "British Pound", Symbol: "£", Rate: decimal.RequireFromString("0.86")},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Rate: decimal.RequireFromString("161.45")},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "Fr", Rate: decimal.RequireFromString("0.97")},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", Rate: decimal.RequireFromString("1.53")},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Rate: decimal.RequireFromString("1.68")},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Rate: decimal.RequireFromString("7.89")},
}

// LookupCurrency finds a currency by ISO code (case-insensitive).
func LookupCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Currencies {
		if c.Code == code {
			return c, nil
		}
	}
	return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// Convert goes through the euro: amount / from.Rate * to.Rate.
func Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	src, err := LookupCurrency(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := LookupCurrency(to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(src.Rate).Mul(dst.Rate), nil
}
