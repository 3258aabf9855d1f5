package core

import "github.com/shopspring/decimal"

// BudgetStatus compares a spending budget against what was spent.
type BudgetStatus struct {
	Budget       decimal.Decimal `json:"budget"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	RemainingPct float64         `json:"remaining_pct"`
	UsedPct      float64         `json:"used_pct"`
}

// NewBudgetStatus computes remaining amount and percentages. Both
// percentages are 0 when the budget is not positive.
func NewBudgetStatus(budget, spent decimal.Decimal) BudgetStatus {
	st := BudgetStatus{
		Budget:    budget,
		Spent:     spent,
		Remaining: budget.Sub(spent),
	}
	if budget.IsPositive() {
		hundred := decimal.NewFromInt(100)
		st.RemainingPct = st.Remaining.Div(budget).Mul(hundred).InexactFloat64()
		st.UsedPct = spent.Div(budget).Mul(hundred).InexactFloat64()
	}
	return st
}

// ProgressPct clamps the remaining percentage to [0, 100] for a progress bar.
func (s BudgetStatus) ProgressPct() float64 {
	return min(max(s.RemainingPct, 0), 100)
}
