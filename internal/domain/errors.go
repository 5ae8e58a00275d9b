package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyLedger is returned when a merge is requested with no existing
	// ledger and no transactions in the batch - there is nothing to create.
	ErrEmptyLedger = errors.New("no existing ledger and empty batch")

	// ErrPersistenceConflict is returned by a ledger store when an upsert
	// lost a revision race. Merge is idempotent, so the caller can reload
	// and retry the same merge safely.
	ErrPersistenceConflict = errors.New("ledger row was modified concurrently")

	// ErrInvalidTransactionFields is the sentinel matched by errors.Is for
	// malformed identity input. The typed error below carries detail.
	ErrInvalidTransactionFields = errors.New("invalid transaction fields")
)

// InvalidTransactionFieldsError reports a transaction whose date or amount
// is missing or unparseable. A single bad row aborts the whole batch so a
// partially-applied, inconsistent ledger can never be persisted.
type InvalidTransactionFieldsError struct {
	Index  int    // position in the batch, -1 when unknown
	Reason string
}

func (e *InvalidTransactionFieldsError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("transaction %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("transaction: %s", e.Reason)
}

func (e *InvalidTransactionFieldsError) Unwrap() error {
	return ErrInvalidTransactionFields
}
