package ledger

import (
	"math"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// balanceEpsilon is the tolerance, in currency units, within which a stated
// closing balance is accepted as matching the computed running balance.
const balanceEpsilon = 0.01

// BalanceWarning records one balance-continuity violation that was repaired.
// Repairs are never fatal; the caller decides whether to surface them.
type BalanceWarning struct {
	Index         int     `json:"index"`          // position in the date-sorted sequence
	TransactionID string  `json:"transaction_id"`
	Stated        float64 `json:"stated"`   // closing balance as uploaded
	Expected      float64 `json:"expected"` // prior balance +credit -debit
}

// Delta returns the magnitude of the discrepancy that was corrected.
func (w BalanceWarning) Delta() float64 {
	return math.Abs(w.Stated - w.Expected)
}

// repairBalances walks the merged, date-sorted sequence and enforces the
// continuity invariant: each closing balance equals the previous one
// adjusted by this transaction's credit/debit. The first transaction's
// stated balance is trusted as given. Violations beyond the epsilon are
// overwritten with the computed value and reported; this is a corrective
// pass, not a validator, and it never aborts a merge.
func repairBalances(txs []*domain.Transaction) []BalanceWarning {
	var warnings []BalanceWarning
	for i := 1; i < len(txs); i++ {
		prev := txs[i-1]
		cur := txs[i]
		expected := prev.ClosingBalance + cur.CreditAmount - cur.DebitAmount
		if math.Abs(expected-cur.ClosingBalance) > balanceEpsilon {
			warnings = append(warnings, BalanceWarning{
				Index:         i,
				TransactionID: cur.TransactionID,
				Stated:        cur.ClosingBalance,
				Expected:      expected,
			})
			cur.ClosingBalance = expected
		}
	}
	return warnings
}
