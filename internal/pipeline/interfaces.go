package pipeline

import (
	"context"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// StorageService is the subset of storage operations the pipeline needs.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	ExtractFilenameFromGCSURI(uri string) string
}

// LedgerRepository is a minimal interface for ledger persistence used by the
// pipeline. It avoids a dependency on the concrete BigQuery repository so the
// pipeline can run against the in-memory store; for the full contract see
// bigquery.LedgerRepository.
type LedgerRepository interface {
	GetLedgerByUser(ctx context.Context, userID string) (*domain.Ledger, error)
	UpsertLedger(ctx context.Context, l *domain.Ledger) (*domain.Ledger, error)
}
