// Package settings stores spending budgets and user preferences next to the
// ledger collections.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"registro/internal/core"
	"registro/internal/kv"
	"registro/internal/log"
)

const (
	BudgetMonthly BudgetKind = "monthly"
	BudgetYearly  BudgetKind = "yearly"
)

// Preference keys.
const (
	Username      = "username"
	Currency      = "currency"
	Notifications = "notifications"
	Biometric     = "biometric"
	DarkMode      = "darkMode"
)

type (
	// BudgetKind selects the monthly or the yearly budget.
	BudgetKind string

	// Ledger is the part of the registry budgets are checked against. Clear
	// wipes the shared store under the collection locks.
	Ledger interface {
		MonthTotal(ctx context.Context, name core.Collection, ym core.YearMonth) core.MonthTotal
		Clear(ctx context.Context) error
	}

	// Service is safe for concurrent use as long as the store is.
	Service struct {
		store  kv.Store
		ledger Ledger
		logger *log.Logger
	}
)

var (
	ErrUnknownBudget     = errors.New("unknown budget")
	ErrUnknownPreference = errors.New("unknown preference")
	ErrInvalidPreference = errors.New("invalid preference value")
)

var defaults = map[string]string{
	Username:      "",
	Currency:      "EUR",
	Notifications: "true",
	Biometric:     "false",
	DarkMode:      "false",
}

// ParseBudgetKind accepts monthly or yearly.
func ParseBudgetKind(s string) (BudgetKind, error) {
	switch k := BudgetKind(strings.ToLower(s)); k {
	case BudgetMonthly, BudgetYearly:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBudget, s)
}

func (k BudgetKind) key() string {
	return "budget_" + string(k)
}

func New(store kv.Store, ledger Ledger, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default(log.ComponentSettings)
	}
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentSettings),
	}
}

// Budget returns the stored budget, or zero when it is unset or unreadable.
func (s *Service) Budget(ctx context.Context, kind BudgetKind) decimal.Decimal {
	raw, err := s.store.Get(ctx, kind.key())
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to read budget", log.FieldKey, kind.key(), log.FieldError, err)
		}
		return decimal.Zero
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		s.logger.WarnContext(ctx, "Stored budget is not a number", log.FieldKey, kind.key(), log.FieldError, err)
		return decimal.Zero
	}
	return v
}

// SetBudget stores amount, which must not be negative.
func (s *Service) SetBudget(ctx context.Context, kind BudgetKind, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative budget", core.ErrInvalidAmount)
	}
	if err := s.store.Set(ctx, kind.key(), amount.String()); err != nil {
		return fmt.Errorf("save %s: %w", kind.key(), err)
	}
	s.logger.InfoContext(ctx, "Budget updated", log.FieldKey, kind.key(), log.FieldAmount, amount.String())
	return nil
}

// ResetBudget sets the budget back to zero.
func (s *Service) ResetBudget(ctx context.Context, kind BudgetKind) error {
	return s.SetBudget(ctx, kind, decimal.Zero)
}

// BudgetStatus compares the budget with the outgoing total of now's month,
// or of now's year for the yearly budget.
func (s *Service) BudgetStatus(ctx context.Context, kind BudgetKind, now time.Time) core.BudgetStatus {
	current := core.YearMonthOf(now)
	spent := decimal.Zero
	switch kind {
	case BudgetYearly:
		for m := time.January; m <= time.December; m++ {
			ym := core.YearMonth{Year: current.Year, Month: m}
			spent = spent.Add(s.ledger.MonthTotal(ctx, core.Out, ym).Total)
		}
	default:
		spent = s.ledger.MonthTotal(ctx, core.Out, current).Total
	}
	return core.NewBudgetStatus(s.Budget(ctx, kind), spent)
}

// Preference returns the stored value of key or its default.
func (s *Service) Preference(ctx context.Context, key string) (string, error) {
	def, ok := defaults[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreference, key)
	}
	v, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return def, nil
	case err != nil:
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

// Preferences returns every preference, falling back to defaults.
func (s *Service) Preferences(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(defaults))
	for key := range defaults {
		v, err := s.Preference(ctx, key)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// SetPreference validates and stores value. Switches take "true" or "false"
// and currency must be a known code.
func (s *Service) SetPreference(ctx context.Context, key, value string) error {
	if _, ok := defaults[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPreference, key)
	}
	value = strings.TrimSpace(value)
	switch key {
	case Notifications, Biometric, DarkMode:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidPreference, key)
		}
		value = strconv.FormatBool(b)
	case Currency:
		c, err := core.LookupCurrency(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPreference, err)
		}
		value = c.Code
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Reset wipes every stored key, collections included.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.ledger.Clear(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.WarnContext(ctx, "All data cleared")
	return nil
}
