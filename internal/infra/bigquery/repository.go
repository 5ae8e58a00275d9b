package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	bq "github.com/dvloznov/statement-ledger/internal/bigquery"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// LedgerRepository is re-exported from the shared package so callers can
// depend on the interface without importing both packages.
type LedgerRepository = bq.LedgerRepository

// BigQueryLedgerRepository is the concrete implementation of
// LedgerRepository that interacts with BigQuery. It holds a shared client
// to avoid creating a new connection for each operation.
type BigQueryLedgerRepository struct {
	client *bigquery.Client
}

// NewBigQueryLedgerRepository creates a new instance of
// BigQueryLedgerRepository with a shared BigQuery client.
func NewBigQueryLedgerRepository(ctx context.Context) (*BigQueryLedgerRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID())
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryLedgerRepository: creating client: %w", err)
	}
	return &BigQueryLedgerRepository{
		client: client,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryLedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// GetLedgerByUser delegates to GetLedgerByUserWithClient with the shared client.
func (r *BigQueryLedgerRepository) GetLedgerByUser(ctx context.Context, userID string) (*domain.Ledger, error) {
	return GetLedgerByUserWithClient(ctx, r.client, userID)
}

// UpsertLedger delegates to UpsertLedgerWithClient with the shared client.
func (r *BigQueryLedgerRepository) UpsertLedger(ctx context.Context, l *domain.Ledger) (*domain.Ledger, error) {
	return UpsertLedgerWithClient(ctx, r.client, l)
}

var _ bq.LedgerRepository = (*BigQueryLedgerRepository)(nil)
