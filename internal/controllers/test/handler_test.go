package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yovideo/services-ingest/internal/controllers"
	"github.com/yovideo/services-ingest/internal/models/po"
	"github.com/yovideo/services-ingest/internal/repositories"
	"github.com/yovideo/services-ingest/internal/services"
	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type noopTxManager struct{}

func (noopTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, nil)
}

func (noopTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, nil)
}

type signerStub struct {
	url   string
	err   error
	calls int
}

func (s *signerStub) SignedUploadURL(_ context.Context, _, _, _ string, ttl time.Duration) (string, time.Time, error) {
	s.calls++
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return s.url, time.Now().Add(ttl), nil
}

// storeStub 以内存 map 同时充当 SourceRepo 与 JobRepo，驱动完整的 HTTP 流程。
type storeStub struct {
	sources map[uuid.UUID]*po.Source
	jobs    map[uuid.UUID]*po.ProcessingJob
}

func newStoreStub() *storeStub {
	return &storeStub{
		sources: make(map[uuid.UUID]*po.Source),
		jobs:    make(map[uuid.UUID]*po.ProcessingJob),
	}
}

func (s *storeStub) Insert(_ context.Context, _ txmanager.Session, input repositories.InsertSourceInput) (*po.Source, error) {
	now := time.Now()
	source := &po.Source{
		ID:               input.ID,
		Status:           po.SourceStatusPending,
		SourceType:       input.SourceType,
		FileURL:          input.FileURL,
		FileKey:          input.FileKey,
		OriginalFilename: input.OriginalFilename,
		ContentType:      input.ContentType,
		SizeBytes:        input.SizeBytes,
		DurationSeconds:  input.DurationSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.sources[source.ID] = source
	return source, nil
}

func (s *storeStub) GetByID(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.Source, error) {
	source, ok := s.sources[id]
	if !ok {
		return nil, repositories.ErrSourceNotFound
	}
	return source, nil
}

func (s *storeStub) Delete(_ context.Context, _ txmanager.Session, id uuid.UUID) error {
	if _, ok := s.sources[id]; !ok {
		return repositories.ErrSourceNotFound
	}
	delete(s.sources, id)
	return nil
}

func (s *storeStub) UpdateStatus(_ context.Context, _ txmanager.Session, id uuid.UUID, status po.SourceStatus, errorMessage *string) error {
	source, ok := s.sources[id]
	if !ok {
		return repositories.ErrSourceNotFound
	}
	source.Status = status
	source.ErrorMessage = errorMessage
	return nil
}

type jobStoreStub struct {
	store *storeStub
}

func (s jobStoreStub) Insert(_ context.Context, _ txmanager.Session, id, sourceID uuid.UUID, jobType po.JobType) (*po.ProcessingJob, error) {
	now := time.Now()
	job := &po.ProcessingJob{
		ID:        id,
		SourceID:  sourceID,
		JobType:   jobType,
		Status:    po.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.jobs[id] = job
	return job, nil
}

func (s jobStoreStub) GetByID(_ context.Context, _ txmanager.Session, id uuid.UUID) (*po.ProcessingJob, error) {
	job, ok := s.store.jobs[id]
	if !ok {
		return nil, repositories.ErrJobNotFound
	}
	return job, nil
}

func (s jobStoreStub) Update(_ context.Context, _ txmanager.Session, input repositories.UpdateJobInput) (*po.ProcessingJob, error) {
	job, ok := s.store.jobs[input.ID]
	if !ok {
		return nil, repositories.ErrJobNotFound
	}
	job.Status = input.Status
	if input.ProgressPercent > job.ProgressPercent {
		job.ProgressPercent = input.ProgressPercent
	}
	job.ErrorMessage = input.ErrorMessage
	job.UpdatedAt = time.Now()
	return job, nil
}

func (s jobStoreStub) ListBySource(_ context.Context, _ txmanager.Session, sourceID uuid.UUID) ([]*po.ProcessingJob, error) {
	var jobs []*po.ProcessingJob
	for _, job := range s.store.jobs {
		if job.SourceID == sourceID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

type testEnv struct {
	srv    *khttp.Server
	signer *signerStub
	store  *storeStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.NewStdLogger(io.Discard)
	rules := validation.NewRules(nil, 0)
	signer := &signerStub{url: "https://storage.example.com/signed-put"}
	store := newStoreStub()
	jobs := jobStoreStub{store: store}

	credentials, err := services.NewCredentialService(signer, rules, "test-bucket", "https://cdn.example.com", time.Minute, logger)
	require.NoError(t, err)
	ingest := services.NewIngestService(store, jobs, rules, noopTxManager{}, logger)
	progress := services.NewJobProgressService(jobs, store, noopTxManager{}, logger)

	base := controllers.NewBaseHandler(controllers.HandlerTimeouts{})
	srv := khttp.NewServer()
	root := srv.Route("/")
	controllers.NewSourceHandler(base, credentials, ingest).RegisterRoutes(root)
	controllers.NewJobHandler(base, progress).RegisterRoutes(root)

	return &testEnv{srv: srv, signer: signer, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type errEnvelope struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *testEnv) registerSource(t *testing.T) (sourceID, jobID uuid.UUID) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/sources", map[string]any{
		"file_url":          "https://cdn.example.com/videos/abc/test-video.mp4",
		"file_key":          "videos/abc/test-video.mp4",
		"source_type":       "upload",
		"original_filename": "test-video.mp4",
		"content_type":      "video/mp4",
		"size_bytes":        1024,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Source struct {
			ID uuid.UUID `json:"id"`
		} `json:"source"`
		Job struct {
			ID uuid.UUID `json:"id"`
		} `json:"job"`
	}
	decodeJSON(t, rec, &created)
	return created.Source.ID, created.Job.ID
}

func TestIssueUploadURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sources/upload-url", map[string]any{
		"filename":    "My Holiday Video.mp4",
		"contentType": "video/mp4",
		"sizeBytes":   1024,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		UploadURL string `json:"uploadUrl"`
		FileKey   string `json:"fileKey"`
		FileURL   string `json:"fileUrl"`
		ExpiresAt string `json:"expiresAt"`
	}
	decodeJSON(t, rec, &resp)
	require.Equal(t, "https://storage.example.com/signed-put", resp.UploadURL)
	require.Regexp(t, `^videos/[0-9a-f-]{36}/My_Holiday_Video\.mp4$`, resp.FileKey)
	require.Equal(t, "https://cdn.example.com/"+resp.FileKey, resp.FileURL)
	require.NotEmpty(t, resp.ExpiresAt)
	require.Equal(t, 1, env.signer.calls)
}

func TestIssueUploadURL_UnsupportedType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sources/upload-url", map[string]any{
		"filename":    "document.txt",
		"contentType": "text/plain",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonInvalidInput, envelope.Reason)
	require.Zero(t, env.signer.calls)
}

func TestIssueUploadURL_SignerUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.signer.err = errors.New("iam: backend timeout")

	rec := env.do(t, http.MethodPost, "/sources/upload-url", map[string]any{
		"filename":    "test-video.mp4",
		"contentType": "video/mp4",
	})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonStorageUnavailable, envelope.Reason)
}

func TestRegisterSource(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sources", map[string]any{
		"file_url":          "https://cdn.example.com/videos/abc/test-video.mp4",
		"file_key":          "videos/abc/test-video.mp4",
		"source_type":       "upload",
		"original_filename": "test-video.mp4",
		"content_type":      "video/mp4",
		"size_bytes":        2048,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Source struct {
			Status     string `json:"status"`
			SourceType string `json:"source_type"`
			FileKey    string `json:"file_key"`
		} `json:"source"`
		Job struct {
			JobType         string `json:"job_type"`
			Status          string `json:"status"`
			ProgressPercent int32  `json:"progress_percent"`
		} `json:"job"`
	}
	decodeJSON(t, rec, &created)
	require.Equal(t, "pending", created.Source.Status)
	require.Equal(t, "upload", created.Source.SourceType)
	require.Equal(t, "videos/abc/test-video.mp4", created.Source.FileKey)
	require.Equal(t, "transcription", created.Job.JobType)
	require.Equal(t, "pending", created.Job.Status)
	require.Zero(t, created.Job.ProgressPercent)
}

func TestRegisterSource_InvalidSourceType(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/sources", map[string]any{
		"file_url":          "https://cdn.example.com/videos/abc/test-video.mp4",
		"file_key":          "videos/abc/test-video.mp4",
		"source_type":       "carrier-pigeon",
		"original_filename": "test-video.mp4",
		"content_type":      "video/mp4",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonInvalidInput, envelope.Reason)
}

func TestGetSource(t *testing.T) {
	env := newTestEnv(t)
	sourceID, jobID := env.registerSource(t)

	rec := env.do(t, http.MethodGet, "/sources/"+sourceID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Source struct {
			ID uuid.UUID `json:"id"`
		} `json:"source"`
		Jobs []struct {
			ID uuid.UUID `json:"id"`
		} `json:"jobs"`
	}
	decodeJSON(t, rec, &detail)
	require.Equal(t, sourceID, detail.Source.ID)
	require.Len(t, detail.Jobs, 1)
	require.Equal(t, jobID, detail.Jobs[0].ID)
}

func TestGetSource_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/sources/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonSourceNotFound, envelope.Reason)
}

func TestGetSource_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/sources/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonInvalidInput, envelope.Reason)
}

func TestDeleteSource(t *testing.T) {
	env := newTestEnv(t)
	sourceID, _ := env.registerSource(t)

	rec := env.do(t, http.MethodDelete, "/sources/"+sourceID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/sources/"+sourceID.String(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateJob(t *testing.T) {
	env := newTestEnv(t)
	sourceID, jobID := env.registerSource(t)

	rec := env.do(t, http.MethodPatch, "/jobs/"+jobID.String(), map[string]any{
		"status":           "processing",
		"progress_percent": 40,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Status          string `json:"status"`
		ProgressPercent int32  `json:"progress_percent"`
	}
	decodeJSON(t, rec, &view)
	require.Equal(t, "processing", view.Status)
	require.Equal(t, int32(40), view.ProgressPercent)
	require.Equal(t, po.SourceStatusProcessing, env.store.sources[sourceID].Status)
}

func TestUpdateJob_TerminalConflict(t *testing.T) {
	env := newTestEnv(t)
	sourceID, jobID := env.registerSource(t)

	rec := env.do(t, http.MethodPatch, "/jobs/"+jobID.String(), map[string]any{"status": "processing"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPatch, "/jobs/"+jobID.String(), map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, po.SourceStatusCompleted, env.store.sources[sourceID].Status)

	rec = env.do(t, http.MethodPatch, "/jobs/"+jobID.String(), map[string]any{"status": "processing"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonJobStateConflict, envelope.Reason)
}

func TestUpdateJob_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/jobs/"+uuid.NewString(), map[string]any{"status": "processing"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var envelope errEnvelope
	decodeJSON(t, rec, &envelope)
	require.Equal(t, services.ReasonJobNotFound, envelope.Reason)
}
