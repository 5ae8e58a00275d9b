package domain

import (
	"time"
)

// TransactionType classifies a transaction by the direction of money flow.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// Transaction represents one normalized bank-statement line as produced by
// the external parser and consolidated into the ledger. Once a TransactionID
// has been assigned the identifying fields (Date, Narration, Amount, Type)
// must never change; ClosingBalance is the only field the engine may rewrite,
// during balance-continuity repair.
type Transaction struct {
	Date         time.Time `json:"date"`                     // posting date (YYYY-MM-DD granularity)
	Narration    string    `json:"narration"`                // free-text description from the statement
	ValueDate    time.Time `json:"value_date,omitempty"`     // value date, if the bank distinguishes it
	DebitAmount  float64   `json:"debit_amount"`             // positive when money left the account
	CreditAmount float64   `json:"credit_amount"`            // positive when money entered the account
	ChqRefNumber string    `json:"chq_ref_number,omitempty"` // bank reference; NOT unique across statements

	ClosingBalance float64 `json:"closing_balance"` // stated balance after this transaction

	Amount float64         `json:"amount"` // derived: whichever of debit/credit is set
	Type   TransactionType `json:"type"`   // derived from debit/credit

	Category string `json:"category,omitempty"`
	UPIID    string `json:"upi_id,omitempty"`
	Merchant string `json:"merchant,omitempty"`

	TransactionID string `json:"transaction_id"` // content fingerprint, see internal/identity
	StatementID   string `json:"statement_id"`   // batch that first contributed this transaction
}

// Derive fills Amount and Type from the debit/credit columns. It returns
// false when the row is ambiguous: both columns set, or neither.
func (t *Transaction) Derive() bool {
	switch {
	case t.CreditAmount > 0 && t.DebitAmount == 0:
		t.Amount = t.CreditAmount
		t.Type = TransactionTypeCredit
	case t.DebitAmount > 0 && t.CreditAmount == 0:
		t.Amount = t.DebitAmount
		t.Type = TransactionTypeDebit
	default:
		return false
	}
	return true
}
