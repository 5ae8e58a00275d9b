// Package identity computes content fingerprints for transactions. The
// fingerprint is the deduplication key for the whole engine: the same
// transaction appearing in two different statement exports must hash to the
// same value, and any byte-level difference in the narration is a different
// transaction. There is deliberately no fuzzy or normalized matching.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

const dateFormat = "2006-01-02"

// Fingerprint hashes the canonical form of a transaction's identifying
// fields: ISO-8601 date, exact narration bytes, amount with two decimal
// places, and the credit/debit tag, joined with "|".
func Fingerprint(date time.Time, narration string, amount float64, txType domain.TransactionType) (string, error) {
	if date.IsZero() {
		return "", &domain.InvalidTransactionFieldsError{Index: -1, Reason: "date is missing"}
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", &domain.InvalidTransactionFieldsError{Index: -1, Reason: fmt.Sprintf("amount %v is not a number", amount)}
	}
	if amount <= 0 {
		return "", &domain.InvalidTransactionFieldsError{Index: -1, Reason: fmt.Sprintf("amount %v must be positive", amount)}
	}
	if txType != domain.TransactionTypeCredit && txType != domain.TransactionTypeDebit {
		return "", &domain.InvalidTransactionFieldsError{Index: -1, Reason: fmt.Sprintf("unknown transaction type %q", txType)}
	}

	input := fmt.Sprintf("%s|%s|%.2f|%s", date.Format(dateFormat), narration, amount, txType)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:]), nil
}

// ForTransaction derives amount/type from the debit and credit columns,
// validates the row, and returns its fingerprint. The transaction is not
// modified.
func ForTransaction(tx *domain.Transaction) (string, error) {
	derived := *tx
	if !derived.Derive() {
		return "", &domain.InvalidTransactionFieldsError{
			Index:  -1,
			Reason: fmt.Sprintf("exactly one of debit (%v) and credit (%v) must be positive", tx.DebitAmount, tx.CreditAmount),
		}
	}
	return Fingerprint(derived.Date, derived.Narration, derived.Amount, derived.Type)
}
