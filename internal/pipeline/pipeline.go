// Package pipeline wires the consolidation engine to its infrastructure:
// fetch a parsed batch document from GCS, decode it, load the user's ledger,
// merge, persist. Each step is injectable so tests run against mocks and the
// CLI runs against the in-memory store.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infra "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// ConsolidateBatchFromGCS folds a single parsed batch stored in GCS into its
// user's ledger, using the production BigQuery repository and GCS client.
// gcsURI should look like: "gs://bucket/batches/batch.json".
func ConsolidateBatchFromGCS(ctx context.Context, gcsURI string) (*PipelineState, error) {
	repo, err := infra.NewBigQueryLedgerRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("ConsolidateBatchFromGCS: %w", err)
	}
	defer repo.Close()

	return ConsolidateBatchFromGCSWithDeps(ctx, gcsURI, repo, &gcsuploader.GCSStorageService{})
}

// ConsolidateBatchFromGCSWithDeps runs the consolidation pipeline with
// injected dependencies. The returned state carries the merge result and the
// persisted ledger.
func ConsolidateBatchFromGCSWithDeps(
	ctx context.Context,
	gcsURI string,
	repo LedgerRepository,
	storage StorageService,
) (*PipelineState, error) {
	log := logger.FromContext(ctx)

	state := &PipelineState{GCSURI: gcsURI}
	p := NewConsolidationPipeline(repo, storage, log)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}

	log.Info().
		Str("gcs_uri", gcsURI).
		Str("user_id", state.Batch.UserID).
		Int("added", state.Result.Added).
		Int("duplicates", state.Result.Duplicates).
		Int64("revision", state.Ledger.Revision).
		Msg("Consolidated batch")

	return state, nil
}
