// Package balance computes account balances and period totals.
//
// Two metrics are deliberately kept apart. Total balance is all-time: every
// account's starting balance plus every account-linked transaction, whatever
// its date. Savings is period-scoped: income minus expenses of the
// transactions the caller passes in, linked to an account or not. A
// transaction without an account therefore shows up in savings but never in
// any balance.
package balance

import (
	"github.com/shopspring/decimal"

	"financy/internal/core"
)

// Deltas maps an account ID to the net movement of its linked transactions.
type Deltas map[string]core.Money

// MonthlyTotals is the income/expense summary of one period.
type MonthlyTotals struct {
	Income      core.Money `json:"income"`
	Expenses    core.Money `json:"expenses"`
	Savings     core.Money `json:"savings"`
	SavingsRate int        `json:"savings_rate"` // percent of income
}

// BuildAccountBalanceMap sums the signed amount of every transaction linked to
// an account. Transactions with an empty AccountID are skipped.
func BuildAccountBalanceMap(txs []core.Transaction) Deltas {
	deltas := make(Deltas)
	for _, tx := range txs {
		if tx.AccountID == "" {
			continue
		}
		cur := deltas[tx.AccountID]
		if tx.Type == core.Income {
			deltas[tx.AccountID] = cur.Add(tx.Amount)
		} else {
			deltas[tx.AccountID] = cur.Sub(tx.Amount)
		}
	}
	return deltas
}

// AccountCurrentBalance returns the starting balance plus the account's delta.
func AccountCurrentBalance(a core.Account, deltas Deltas) core.Money {
	return a.Balance.Add(deltas[a.ID])
}

// TotalBalance sums AccountCurrentBalance over accounts.
func TotalBalance(accounts []core.Account, deltas Deltas) core.Money {
	var total core.Money
	for _, a := range accounts {
		total = total.Add(AccountCurrentBalance(a, deltas))
	}
	return total
}

// ComputeMonthlyTotals aggregates already-filtered period transactions.
// It does no date or status filtering of its own.
func ComputeMonthlyTotals(txs []core.Transaction) MonthlyTotals {
	var t MonthlyTotals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expenses = t.Expenses.Add(tx.Amount)
		}
	}
	t.Savings = t.Income.Sub(t.Expenses)
	t.SavingsRate = SavingsRate(t.Savings, t.Income)
	return t
}

// SavingsRate returns savings as a whole percentage of income, rounded half
// away from zero. It is 0 when income is not positive.
func SavingsRate(savings, income core.Money) int {
	if income.Cents <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(savings.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(income.Cents)).
		Round(0)
	return int(rate.IntPart())
}

// ProjectedBalance is the total balance after paying pending bills. It may be
// negative.
func ProjectedBalance(total, pendingBills core.Money) core.Money {
	return total.Sub(pendingBills)
}

// AccountBalance pairs an account with its current balance.
type AccountBalance struct {
	Account core.Account `json:"account"`
	Current core.Money   `json:"current"`
}

// AccountBalances returns the current balance of every account, in input order.
func AccountBalances(accounts []core.Account, deltas Deltas) []AccountBalance {
	out := make([]AccountBalance, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, AccountBalance{Account: a, Current: AccountCurrentBalance(a, deltas)})
	}
	return out
}
