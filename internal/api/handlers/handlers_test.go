package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/api/handlers"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	jobsmem "github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store/inmemory"
	"github.com/rs/zerolog"
)

const validBatchJSON = `{
	"user_id": "user-1",
	"transactions": [
		{"date": "2024-03-01", "narration": "SALARY CREDIT", "credit_amount": 20000, "closing_balance": 20000},
		{"date": "2024-03-02", "narration": "RENT PAYMENT", "debit_amount": 2000, "closing_balance": 18000}
	]
}`

// MockStorageService records uploads in memory.
type MockStorageService struct {
	Uploads map[string][]byte
	Err     error
}

func NewMockStorageService() *MockStorageService {
	return &MockStorageService{Uploads: make(map[string][]byte)}
}

func (m *MockStorageService) UploadObject(ctx context.Context, bucketName, objectName string, data []byte) error {
	if m.Err != nil {
		return m.Err
	}
	m.Uploads[bucketName+"/"+objectName] = data
	return nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	key := strings.TrimPrefix(gcsURI, "gs://")
	data, ok := m.Uploads[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", gcsURI)
	}
	return data, nil
}

func (m *MockStorageService) ExtractFilenameFromGCSURI(uri string) string {
	parts := strings.Split(uri, "/")
	return parts[len(parts)-1]
}

// MockPublisher records published jobs and fills in queue defaults.
type MockPublisher struct {
	Published []*jobs.MergeStatementJob
	Err       error
}

func (m *MockPublisher) PublishMergeStatement(ctx context.Context, job *jobs.MergeStatementJob) error {
	if m.Err != nil {
		return m.Err
	}
	if job.JobID == "" {
		job.JobID = "job-test-1"
	}
	job.Status = jobs.JobStatusPending
	job.CreatedAt = time.Now()
	m.Published = append(m.Published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func newBatchesHandler(t *testing.T) (*handlers.BatchesHandler, *inmemory.Store, *MockStorageService, *MockPublisher) {
	t.Helper()
	repo := inmemory.NewStore()
	storage := NewMockStorageService()
	publisher := &MockPublisher{}
	log := zerolog.Nop()
	h := handlers.NewBatchesHandler(repo, storage, publisher, ledger.NewService(log), "test-bucket", log)
	return h, repo, storage, publisher
}

func postBatch(t *testing.T, handle func(http.ResponseWriter, *http.Request), body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/batches", strings.NewReader(body))
	req = req.WithContext(logger.WithContext(req.Context(), zerolog.Nop()))
	rec := httptest.NewRecorder()
	handle(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestUploadBatch(t *testing.T) {
	h, _, storage, publisher := newBatchesHandler(t)

	rec := postBatch(t, h.UploadBatch, validBatchJSON)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(storage.Uploads) != 1 {
		t.Errorf("expected 1 upload, got %d", len(storage.Uploads))
	}
	if len(publisher.Published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(publisher.Published))
	}

	job := publisher.Published[0]
	if job.UserID != "user-1" {
		t.Errorf("expected job for user-1, got %s", job.UserID)
	}
	if !strings.HasPrefix(job.BatchGCSURI, "gs://test-bucket/batches/") {
		t.Errorf("unexpected GCS URI: %s", job.BatchGCSURI)
	}

	body := decodeBody(t, rec)
	if body["job_id"] != "job-test-1" {
		t.Errorf("expected job_id in response, got %v", body["job_id"])
	}
	if body["status"] != string(jobs.JobStatusPending) {
		t.Errorf("expected pending status, got %v", body["status"])
	}
}

func TestUploadBatchInvalidDocument(t *testing.T) {
	h, _, storage, publisher := newBatchesHandler(t)

	rec := postBatch(t, h.UploadBatch, `{"transactions": []}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(storage.Uploads) != 0 {
		t.Error("invalid batch should not reach storage")
	}
	if len(publisher.Published) != 0 {
		t.Error("invalid batch should not be enqueued")
	}
}

func TestMergeBatch(t *testing.T) {
	h, repo, _, _ := newBatchesHandler(t)

	rec := postBatch(t, h.MergeBatch, validBatchJSON)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["added"] != float64(2) {
		t.Errorf("expected 2 added, got %v", body["added"])
	}
	if body["revision"] != float64(1) {
		t.Errorf("expected revision 1, got %v", body["revision"])
	}

	l, err := repo.GetLedgerByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if l == nil || l.Summary.TransactionCount != 2 {
		t.Fatalf("expected persisted ledger with 2 transactions, got %+v", l)
	}
}

func TestMergeBatchIsIdempotent(t *testing.T) {
	h, _, _, _ := newBatchesHandler(t)

	if rec := postBatch(t, h.MergeBatch, validBatchJSON); rec.Code != http.StatusOK {
		t.Fatalf("first merge: expected 200, got %d", rec.Code)
	}

	rec := postBatch(t, h.MergeBatch, validBatchJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("second merge: expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["unchanged"] != true {
		t.Errorf("expected unchanged merge, got %v", body["unchanged"])
	}
	if body["duplicates"] != float64(2) {
		t.Errorf("expected 2 duplicates, got %v", body["duplicates"])
	}
	if body["revision"] != float64(1) {
		t.Errorf("no-op merge must not advance revision, got %v", body["revision"])
	}
}

func TestMergeBatchRejectsInvalidTransaction(t *testing.T) {
	h, repo, _, _ := newBatchesHandler(t)

	badBatch := `{
		"user_id": "user-1",
		"transactions": [
			{"date": "2024-03-01", "narration": "BOTH SIDES", "debit_amount": 100, "credit_amount": 100, "closing_balance": 500}
		]
	}`

	rec := postBatch(t, h.MergeBatch, badBatch)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	l, err := repo.GetLedgerByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if l != nil {
		t.Error("rejected batch must not create a ledger")
	}
}

func TestGetLedger(t *testing.T) {
	repo := inmemory.NewStore()
	h := handlers.NewLedgersHandler(repo, zerolog.Nop())

	seed := &domain.Ledger{
		ID:        "ledger-1",
		UserID:    "user-1",
		FirstDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		LastDate:  time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Summary:   domain.StatementSummary{TransactionCount: 2, EndingBalance: 18000},
	}
	if _, err := repo.UpsertLedger(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	t.Run("existing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ledgers/user-1", nil)
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req, "user-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var got domain.Ledger
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.UserID != "user-1" || got.Revision != 1 {
			t.Errorf("unexpected ledger: %+v", got)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ledgers/nobody", nil)
		rec := httptest.NewRecorder()
		h.GetLedger(rec, req, "nobody")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("summary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ledgers/user-1/summary", nil)
		rec := httptest.NewRecorder()
		h.GetSummary(rec, req, "user-1")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["user_id"] != "user-1" {
			t.Errorf("expected user_id user-1, got %v", body["user_id"])
		}
		if body["revision"] != float64(1) {
			t.Errorf("expected revision 1, got %v", body["revision"])
		}
	})
}

func TestListJobs(t *testing.T) {
	store := jobsmem.NewStore()
	h := handlers.NewJobsHandler(store, zerolog.Nop())

	ctx := context.Background()
	for i, j := range []*jobs.MergeStatementJob{
		{JobID: "j1", UserID: "user-1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", UserID: "user-2", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Errorf("expected 1 job for user-1, got %v", body["count"])
	}
}

func TestGetJob(t *testing.T) {
	store := jobsmem.NewStore()
	h := handlers.NewJobsHandler(store, zerolog.Nop())

	if err := store.SaveJob(context.Background(), &jobs.MergeStatementJob{
		JobID: "j1", UserID: "user-1", Status: jobs.JobStatusCompleted, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil)
	rec := httptest.NewRecorder()
	h.GetJob(rec, req, "j1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil), "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing job, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}
