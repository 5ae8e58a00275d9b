package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/gcs"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// maxBatchBytes caps the accepted batch document size.
const maxBatchBytes = 16 << 20 // 16 MiB

// BatchesHandler handles statement-batch endpoints.
type BatchesHandler struct {
	repo      pipeline.LedgerRepository
	storage   gcs.StorageService
	publisher jobs.Publisher
	service   *ledger.Service
	bucket    string
	log       zerolog.Logger
}

// NewBatchesHandler creates a new batches handler.
func NewBatchesHandler(
	repo pipeline.LedgerRepository,
	storage gcs.StorageService,
	publisher jobs.Publisher,
	service *ledger.Service,
	bucket string,
	log zerolog.Logger,
) *BatchesHandler {
	return &BatchesHandler{
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		service:   service,
		bucket:    bucket,
		log:       log,
	}
}

// UploadBatch handles POST /api/batches.
// It validates the batch document, stores it in GCS and enqueues an
// asynchronous merge job.
func (h *BatchesHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	batch, err := pipeline.DecodeBatch(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	objectName := fmt.Sprintf("batches/%s/%s.json", time.Now().Format("2006/01/02"), uuid.NewString())
	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)

	if err := h.storage.UploadObject(ctx, h.bucket, objectName, raw); err != nil {
		h.log.Error().Err(err).Str("gcs_uri", gcsURI).Msg("Failed to store batch")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store batch")
		return
	}

	job := &jobs.MergeStatementJob{
		UserID:      batch.UserID,
		BatchGCSURI: gcsURI,
		StatementID: batch.ID,
	}
	if err := h.publisher.PublishMergeStatement(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue merge job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue merge job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", batch.UserID).
		Str("statement_id", batch.ID).
		Str("gcs_uri", gcsURI).
		Int("transactions", len(batch.Transactions)).
		Msg("Merge job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":       job.JobID,
		"statement_id": batch.ID,
		"gcs_uri":      gcsURI,
		"status":       string(job.Status),
	})
}

// MergeBatch handles POST /api/batches/merge.
// It merges the posted batch synchronously and returns the outcome. Intended
// for small batches and interactive use; large uploads should go through
// UploadBatch and the worker.
func (h *BatchesHandler) MergeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	batch, err := pipeline.DecodeBatch(raw)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := &pipeline.PipelineState{Batch: batch}
	p := pipeline.NewPipeline(
		&pipeline.LoadLedgerStep{Repo: h.repo},
		&pipeline.MergeStep{Service: h.service},
		&pipeline.PersistStep{Repo: h.repo, Service: h.service},
	)
	if err := p.Execute(ctx, state); err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyLedger):
			middleware.WriteError(w, http.StatusBadRequest, "Batch is empty and the user has no ledger")
		case errors.Is(err, domain.ErrInvalidTransactionFields):
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrPersistenceConflict):
			middleware.WriteError(w, http.StatusConflict, "Concurrent merge in progress, retry")
		default:
			h.log.Error().Err(err).Str("user_id", batch.UserID).Msg("Synchronous merge failed")
			middleware.WriteError(w, http.StatusInternalServerError, "Merge failed")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":            batch.UserID,
		"statement_id":       batch.ID,
		"added":              state.Result.Added,
		"duplicates":         state.Result.Duplicates,
		"unchanged":          state.Result.Unchanged,
		"repairs":            len(state.Result.Warnings),
		"overlap_statements": state.Result.OverlapStatements,
		"revision":           state.Ledger.Revision,
		"summary":            state.Ledger.Summary,
	})
}

// LedgersHandler handles ledger read endpoints.
type LedgersHandler struct {
	repo pipeline.LedgerRepository
	log  zerolog.Logger
}

// NewLedgersHandler creates a new ledgers handler.
func NewLedgersHandler(repo pipeline.LedgerRepository, log zerolog.Logger) *LedgersHandler {
	return &LedgersHandler{
		repo: repo,
		log:  log,
	}
}

// GetLedger handles GET /api/ledgers/{userID}.
func (h *LedgersHandler) GetLedger(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	l, err := h.repo.GetLedgerByUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load ledger")
		return
	}
	if l == nil {
		middleware.WriteError(w, http.StatusNotFound, "Ledger not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, l)
}

// GetSummary handles GET /api/ledgers/{userID}/summary.
func (h *LedgersHandler) GetSummary(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()

	l, err := h.repo.GetLedgerByUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load ledger")
		return
	}
	if l == nil {
		middleware.WriteError(w, http.StatusNotFound, "Ledger not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    l.UserID,
		"summary":    l.Summary,
		"first_date": l.FirstDate,
		"last_date":  l.LastDate,
		"revision":   l.Revision,
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
