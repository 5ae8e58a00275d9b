package bigquery

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// LedgerRepository is the persistence boundary for per-user ledgers. The
// contract is fetch-existing -> merge -> upsert-same-row; implementations
// must return domain.ErrPersistenceConflict from UpsertLedger when the row's
// revision no longer matches the ledger passed in, so the caller can reload
// and retry (safe because merge is idempotent).
type LedgerRepository interface {
	// GetLedgerByUser returns the user's ledger, or (nil, nil) when the
	// user has never merged a batch.
	GetLedgerByUser(ctx context.Context, userID string) (*domain.Ledger, error)

	// UpsertLedger writes the ledger back, bumping its revision. The
	// returned ledger carries the new revision.
	UpsertLedger(ctx context.Context, l *domain.Ledger) (*domain.Ledger, error)

	// Close releases the underlying client.
	Close() error
}
