package domain

import (
	"time"
)

// StatementSummary is the aggregate view of a transaction sequence. It is
// always derived by the aggregator from the transactions themselves and is
// never mutated independently of them.
type StatementSummary struct {
	TotalDebit       float64   `json:"total_debit"`
	TotalCredit      float64   `json:"total_credit"`
	NetCashflow      float64   `json:"net_cashflow"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	StartingBalance  float64   `json:"starting_balance"`
	EndingBalance    float64   `json:"ending_balance"`
	TransactionCount int       `json:"transaction_count"`
	CreditCount      int       `json:"credit_count"`
	DebitCount       int       `json:"debit_count"`
}

// StatementBatch is one parsed upload. It is immutable and consumed exactly
// once by the merge engine; the parser that produces it is outside this
// module.
type StatementBatch struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Transactions []*Transaction   `json:"transactions"`
	Summary      StatementSummary `json:"summary"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Ledger is the per-user canonical transaction history (the "super
// statement"): unique by TransactionID, sorted ascending by date. One row
// per user in the backing store; Revision is the optimistic-concurrency
// token the store uses to detect concurrent merges.
type Ledger struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Transactions []*Transaction   `json:"transactions"`
	Summary      StatementSummary `json:"summary"`
	FirstDate    time.Time        `json:"first_date"`
	LastDate     time.Time        `json:"last_date"`
	Revision     int64            `json:"revision"`
}

// HasTransaction reports whether the ledger already contains a transaction
// with the given content fingerprint.
func (l *Ledger) HasTransaction(transactionID string) bool {
	for _, tx := range l.Transactions {
		if tx.TransactionID == transactionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the ledger. The merge engine works on copies
// so callers never observe a half-merged ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Transactions = make([]*Transaction, len(l.Transactions))
	for i, tx := range l.Transactions {
		txCopy := *tx
		cp.Transactions[i] = &txCopy
	}
	return &cp
}
