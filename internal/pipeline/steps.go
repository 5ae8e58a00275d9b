package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// maxConflictRetries bounds how often PersistStep re-merges after losing a
// revision race. Re-merging is safe because the merge is idempotent.
const maxConflictRetries = 3

// PipelineStep represents a single step in the consolidation pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	GCSURI   string
	RawBatch []byte
	Batch    *domain.StatementBatch

	Existing *domain.Ledger // ledger as loaded, nil for first merge
	Result   *ledger.MergeResult
	Ledger   *domain.Ledger // persisted ledger with its new revision
}

// Step 1: FetchBatchStep downloads the parsed batch JSON from GCS.
type FetchBatchStep struct {
	Storage StorageService
}

func (s *FetchBatchStep) Execute(ctx context.Context, state *PipelineState) error {
	raw, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return fmt.Errorf("FetchBatchStep: %w", err)
	}
	state.RawBatch = raw
	return nil
}

// Step 2: DecodeBatchStep parses and validates the batch document.
type DecodeBatchStep struct{}

func (s *DecodeBatchStep) Execute(ctx context.Context, state *PipelineState) error {
	batch, err := DecodeBatch(state.RawBatch)
	if err != nil {
		return err
	}
	state.Batch = batch
	return nil
}

// Step 3: LoadLedgerStep fetches the user's current ledger, if any.
type LoadLedgerStep struct {
	Repo LedgerRepository
}

func (s *LoadLedgerStep) Execute(ctx context.Context, state *PipelineState) error {
	existing, err := s.Repo.GetLedgerByUser(ctx, state.Batch.UserID)
	if err != nil {
		return fmt.Errorf("LoadLedgerStep: %w", err)
	}
	state.Existing = existing
	return nil
}

// Step 4: MergeStep folds the batch into the ledger.
type MergeStep struct {
	Service *ledger.Service
}

func (s *MergeStep) Execute(ctx context.Context, state *PipelineState) error {
	result, err := s.Service.Merge(state.Existing, state.Batch)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// Step 5: PersistStep writes the merged ledger back. When the upsert loses
// the revision race to a concurrent merge it reloads the ledger, re-merges
// the same batch and tries again, up to maxConflictRetries.
type PersistStep struct {
	Repo    LedgerRepository
	Service *ledger.Service
}

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Result.Unchanged && state.Existing != nil {
		// Nothing new: skip the write, keep the loaded revision.
		state.Ledger = state.Existing
		return nil
	}

	result := state.Result
	for attempt := 0; ; attempt++ {
		persisted, err := s.Repo.UpsertLedger(ctx, result.Ledger)
		if err == nil {
			state.Result = result
			state.Ledger = persisted
			return nil
		}
		if !ledger.IsRetryable(err) || attempt >= maxConflictRetries {
			return fmt.Errorf("PersistStep: %w", err)
		}

		log := logger.FromContext(ctx)
		log.Warn().
			Str("user_id", state.Batch.UserID).
			Int("attempt", attempt+1).
			Msg("Ledger revision conflict, reloading and re-merging")

		current, err := s.Repo.GetLedgerByUser(ctx, state.Batch.UserID)
		if err != nil {
			return fmt.Errorf("PersistStep: reload after conflict: %w", err)
		}
		result, err = s.Service.Merge(current, state.Batch)
		if err != nil {
			return err
		}
		if result.Unchanged && current != nil {
			state.Result = result
			state.Ledger = current
			return nil
		}
	}
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewConsolidationPipeline creates the standard 5-step pipeline for folding a
// GCS-stored batch into the user's ledger.
func NewConsolidationPipeline(repo LedgerRepository, storage StorageService, log zerolog.Logger) *Pipeline {
	svc := ledger.NewService(log)
	return NewPipeline(
		&FetchBatchStep{Storage: storage},
		&DecodeBatchStep{},
		&LoadLedgerStep{Repo: repo},
		&MergeStep{Service: svc},
		&PersistStep{Repo: repo, Service: svc},
	)
}
