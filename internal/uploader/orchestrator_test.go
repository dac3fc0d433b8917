package uploader_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yovideo/services-ingest/internal/uploader"
	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

type fakeIssuer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeIssuer) IssueUploadCredential(_ context.Context, filename, _ string, _ int64) (*uploader.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	key := "videos/" + uuid.NewString() + "/" + filename
	return &uploader.Credential{
		UploadURL: "https://storage.example.com/" + key + "?sig=abc",
		FileKey:   key,
		FileURL:   "https://media.example.com/" + key,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, nil
}

func (f *fakeIssuer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTransfer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTransfer) Upload(_ context.Context, _ *uploader.Credential, file uploader.File, onProgress uploader.ProgressFunc) error {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(file.SizeBytes/2, file.SizeBytes)
		onProgress(file.SizeBytes, file.SizeBytes)
	}
	return nil
}

func (f *fakeTransfer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistrar struct {
	mu      sync.Mutex
	calls   int
	err     error
	inputs  []uploader.RegisterInput
	blockCh chan struct{} // 非 nil 时在返回前阻塞
}

func (f *fakeRegistrar) RegisterSource(_ context.Context, input uploader.RegisterInput) (*uploader.CreatedSource, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, input)
	err := f.err
	block := f.blockCh
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	sourceID := uuid.New()
	return &uploader.CreatedSource{
		Source: uploader.SourceInfo{ID: sourceID, Status: "pending", SourceType: input.SourceType, FileKey: input.FileKey, FileURL: input.FileURL},
		Job:    uploader.JobInfo{ID: uuid.New(), SourceID: sourceID, JobType: "transcription", Status: "pending"},
	}, nil
}

func (f *fakeRegistrar) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu          sync.Mutex
	transitions []uploader.State
	progress    []int64
	failures    []uploader.Failure
	completed   chan *uploader.CreatedSource
	failed      chan uploader.Failure
}

func newRecorder() *recorder {
	return &recorder{
		completed: make(chan *uploader.CreatedSource, 1),
		failed:    make(chan uploader.Failure, 1),
	}
}

func (r *recorder) hooks() uploader.Hooks {
	return uploader.Hooks{
		OnStateChange: func(_, to uploader.State) {
			r.mu.Lock()
			r.transitions = append(r.transitions, to)
			r.mu.Unlock()
		},
		OnProgress: func(transferred, _ int64) {
			r.mu.Lock()
			r.progress = append(r.progress, transferred)
			r.mu.Unlock()
		},
		OnError: func(failure uploader.Failure) {
			r.mu.Lock()
			r.failures = append(r.failures, failure)
			r.mu.Unlock()
			r.failed <- failure
		},
		OnComplete: func(result *uploader.CreatedSource) {
			r.completed <- result
		},
	}
}

func (r *recorder) states() []uploader.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uploader.State(nil), r.transitions...)
}

func (r *recorder) progressSnapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.progress...)
}

func (r *recorder) waitComplete(t *testing.T) *uploader.CreatedSource {
	t.Helper()
	select {
	case result := <-r.completed:
		return result
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

func (r *recorder) waitFailure(t *testing.T) uploader.Failure {
	t.Helper()
	select {
	case failure := <-r.failed:
		return failure
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for failure")
		return uploader.Failure{}
	}
}

func testFile() uploader.File {
	content := "fake video bytes"
	return uploader.File{
		Name:        "test-video.mp4",
		ContentType: "video/mp4",
		SizeBytes:   int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func newOrchestrator(issuer *fakeIssuer, transfer *fakeTransfer, registrar *fakeRegistrar, rec *recorder) *uploader.Orchestrator {
	return uploader.NewOrchestrator(
		validation.NewRules(nil, 0),
		issuer, transfer, registrar,
		rec.hooks(),
		log.NewStdLogger(io.Discard),
	)
}

func TestOrchestratorHappyPath(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	result := rec.waitComplete(t)

	require.Equal(t, uploader.StateSucceeded, orc.State())
	require.Equal(t, "pending", result.Source.Status)
	require.Equal(t, "transcription", result.Job.JobType)
	require.Equal(t, "pending", result.Job.Status)

	// 每阶段恰好一次调用
	require.Equal(t, 1, issuer.callCount())
	require.Equal(t, 1, transfer.callCount())
	require.Equal(t, 1, registrar.callCount())

	require.Equal(t, []uploader.State{
		uploader.StateValidating,
		uploader.StateRequestingCredential,
		uploader.StateTransferring,
		uploader.StateRegistering,
		uploader.StateSucceeded,
	}, rec.states())
}

func TestOrchestratorValidationRejection(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	file := testFile()
	file.ContentType = "text/plain"
	require.NoError(t, orc.Start(context.Background(), file))
	failure := rec.waitFailure(t)

	require.Equal(t, uploader.StageValidation, failure.Stage)
	require.Contains(t, failure.Reason, validation.ReasonUnsupportedType)
	// 校验拒绝不得发起任何网络调用
	require.Equal(t, 0, issuer.callCount())
	require.Equal(t, 0, transfer.callCount())
	require.Equal(t, 0, registrar.callCount())
}

func TestOrchestratorRegistrationRetryReusesCredential(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{err: errors.New("persistence failed")}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	failure := rec.waitFailure(t)
	require.Equal(t, uploader.StageRegistration, failure.Stage)

	registrar.mu.Lock()
	registrar.err = nil
	registrar.mu.Unlock()

	require.NoError(t, orc.Retry(context.Background()))
	rec.waitComplete(t)

	// 注册重试不得重新取凭证或重新传输
	require.Equal(t, 1, issuer.callCount())
	require.Equal(t, 1, transfer.callCount())
	require.Equal(t, 2, registrar.callCount())

	registrar.mu.Lock()
	defer registrar.mu.Unlock()
	require.Len(t, registrar.inputs, 2)
	require.Equal(t, registrar.inputs[0].FileKey, registrar.inputs[1].FileKey)
	require.Equal(t, registrar.inputs[0].FileURL, registrar.inputs[1].FileURL)
}

func TestOrchestratorCredentialRetryRestartsCleanly(t *testing.T) {
	issuer := &fakeIssuer{err: errors.New("iam unavailable")}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	failure := rec.waitFailure(t)
	require.Equal(t, uploader.StageCredential, failure.Stage)
	require.Equal(t, 0, transfer.callCount())

	issuer.mu.Lock()
	issuer.err = nil
	issuer.mu.Unlock()

	require.NoError(t, orc.Retry(context.Background()))
	rec.waitComplete(t)

	// credential 失败后的重试从头执行
	require.Equal(t, 2, issuer.callCount())
	require.Equal(t, 1, transfer.callCount())
	require.Equal(t, 1, registrar.callCount())
}

func TestOrchestratorTransferFailure(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{err: errors.New("connection reset")}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	failure := rec.waitFailure(t)

	require.Equal(t, uploader.StageTransfer, failure.Stage)
	// 传输失败后不得注册
	require.Equal(t, 0, registrar.callCount())
}

func TestOrchestratorProgressReported(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	file := testFile()
	require.NoError(t, orc.Start(context.Background(), file))
	rec.waitComplete(t)

	progress := rec.progressSnapshot()
	require.NotEmpty(t, progress)
	require.Equal(t, file.SizeBytes, progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i], progress[i-1])
	}
}

func TestOrchestratorClearDiscardsStaleResponse(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	block := make(chan struct{})
	registrar := &fakeRegistrar{blockCh: block}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))

	// 等待进入 Registering（注册调用已在途且被阻塞）
	require.Eventually(t, func() bool {
		return orc.State() == uploader.StateRegistering
	}, waitTimeout, 5*time.Millisecond)

	orc.Clear()
	require.Equal(t, uploader.StateIdle, orc.State())

	// 放行迟到的注册响应：不得复活已清除的流程
	close(block)
	select {
	case <-rec.completed:
		t.Fatal("stale registration response must be discarded after Clear")
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, uploader.StateIdle, orc.State())
	require.Nil(t, orc.Result())
}

func TestOrchestratorStartRejectedWhileBusy(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	block := make(chan struct{})
	registrar := &fakeRegistrar{blockCh: block}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	require.Eventually(t, func() bool {
		return orc.State() == uploader.StateRegistering
	}, waitTimeout, 5*time.Millisecond)

	// 单实例单文件在途
	require.Error(t, orc.Start(context.Background(), testFile()))

	close(block)
	rec.waitComplete(t)
}

func TestOrchestratorClearAfterSuccessAllowsNewUpload(t *testing.T) {
	issuer := &fakeIssuer{}
	transfer := &fakeTransfer{}
	registrar := &fakeRegistrar{}
	rec := newRecorder()
	orc := newOrchestrator(issuer, transfer, registrar, rec)

	require.NoError(t, orc.Start(context.Background(), testFile()))
	rec.waitComplete(t)

	orc.Clear()
	require.Equal(t, uploader.StateIdle, orc.State())

	require.NoError(t, orc.Start(context.Background(), testFile()))
	rec.waitComplete(t)
	require.Equal(t, 2, issuer.callCount())
}

func TestOrchestratorRetryRejectedOutsideFailed(t *testing.T) {
	orc := newOrchestrator(&fakeIssuer{}, &fakeTransfer{}, &fakeRegistrar{}, newRecorder())
	require.Error(t, orc.Retry(context.Background()))
}
