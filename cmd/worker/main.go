package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	// Initialize logger
	log := logger.New()

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	log.Info().Msg("Starting worker service")

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	ledgerRepo, err := infraBQ.NewBigQueryLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer ledgerRepo.Close()

	storage := gcsuploader.NewGCSStorageService()

	// Create job handler that processes merge jobs
	handler := func(ctx context.Context, job jobs.Job) error {
		mergeJob, ok := job.(*jobs.MergeStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", mergeJob.JobID).
			Str("user_id", mergeJob.UserID).
			Str("gcs_uri", mergeJob.BatchGCSURI).
			Msg("Processing merge job")

		state, err := pipeline.ConsolidateBatchFromGCSWithDeps(ctx, mergeJob.BatchGCSURI, ledgerRepo, storage)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", mergeJob.JobID).
				Str("user_id", mergeJob.UserID).
				Msg("Merge pipeline failed")
			return err
		}

		mergeJob.StatementID = state.Batch.ID
		mergeJob.Added = state.Result.Added
		mergeJob.Duplicates = state.Result.Duplicates

		log.Info().
			Str("job_id", mergeJob.JobID).
			Str("user_id", mergeJob.UserID).
			Int("added", state.Result.Added).
			Int("duplicates", state.Result.Duplicates).
			Msg("Merge job completed")

		return nil
	}

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
