package ledger

import (
	"sort"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Aggregate reduces a transaction sequence to its StatementSummary. It is a
// pure function with no state carried between calls: totals, counts and the
// date span depend only on the transaction multiset. Starting and ending
// balances are read from the chronological endpoints (the input is sorted
// into a copy first, so callers may pass transactions in any order).
//
// StartingBalance backs out the first transaction's own movement from its
// stated closing balance.
func Aggregate(txs []*domain.Transaction) domain.StatementSummary {
	var summary domain.StatementSummary
	if len(txs) == 0 {
		return summary
	}

	ordered := make([]*domain.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	for _, tx := range ordered {
		summary.TotalCredit += tx.CreditAmount
		summary.TotalDebit += tx.DebitAmount
		if tx.Type == domain.TransactionTypeCredit {
			summary.CreditCount++
		} else {
			summary.DebitCount++
		}
	}

	first := ordered[0]
	last := ordered[len(ordered)-1]

	summary.TransactionCount = len(ordered)
	summary.NetCashflow = summary.TotalCredit - summary.TotalDebit
	summary.StartDate = first.Date
	summary.EndDate = last.Date
	summary.StartingBalance = first.ClosingBalance - first.CreditAmount + first.DebitAmount
	summary.EndingBalance = last.ClosingBalance

	return summary
}
