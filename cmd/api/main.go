package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/statement-ledger/internal/api/handlers"
	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	// Parse command-line flags
	var (
		port   = flag.String("port", "8080", "HTTP server port")
		bucket = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name for batch uploads (or set GCS_BUCKET env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - batch uploads will be disabled")
	}

	// Initialize repositories
	ctx := context.Background()

	ledgerRepo, err := infraBQ.NewBigQueryLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer ledgerRepo.Close()

	storage := gcsuploader.NewGCSStorageService()
	mergeService := ledger.NewService(log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	// Start worker in background to process merge jobs
	workerCtx, cancelWorker := context.WithCancel(logger.WithContext(ctx, log))
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
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

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting merge worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Merge worker stopped with error")
		}
	}()

	// Initialize handlers
	batchesHandler := handlers.NewBatchesHandler(ledgerRepo, storage, jobQueue, mergeService, *bucket, log)
	ledgersHandler := handlers.NewLedgersHandler(ledgerRepo, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Batches endpoints
	mux.HandleFunc("/api/batches", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			batchesHandler.UploadBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/batches/merge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			batchesHandler.MergeBatch(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Ledgers endpoints
	mux.HandleFunc("/api/ledgers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		rest := strings.TrimPrefix(r.URL.Path, "/api/ledgers/")
		if rest == "" {
			middleware.WriteError(w, http.StatusBadRequest, "User ID is required")
			return
		}

		if userID, ok := strings.CutSuffix(rest, "/summary"); ok {
			ledgersHandler.GetSummary(w, r, userID)
			return
		}
		ledgersHandler.GetLedger(w, r, rest)
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", handlers.Health)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
