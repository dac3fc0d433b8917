package uploader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/go-kratos/kratos/v2/log"
)

// State 表示编排器的当前状态。
type State string

const (
	StateIdle                 State = "idle"
	StateValidating           State = "validating"
	StateRequestingCredential State = "requesting_credential"
	StateTransferring         State = "transferring"
	StateRegistering          State = "registering"
	StateSucceeded            State = "succeeded"
	StateFailed               State = "failed"
)

// Stage 标识失败发生的阶段，决定重试的重入点。
type Stage string

const (
	StageValidation   Stage = "validation"
	StageCredential   Stage = "credential"
	StageTransfer     Stage = "transfer"
	StageRegistration Stage = "registration"
)

// Failure 描述一次失败：阶段 + 人类可读原因。
type Failure struct {
	Stage  Stage
	Reason string
}

// CredentialIssuer 抽象上传凭证获取调用。
type CredentialIssuer interface {
	IssueUploadCredential(ctx context.Context, filename, contentType string, sizeBytes int64) (*Credential, error)
}

// Transfer 抽象对象直传调用。
type Transfer interface {
	Upload(ctx context.Context, cred *Credential, file File, onProgress ProgressFunc) error
}

// Registrar 抽象源视频注册调用。
type Registrar interface {
	RegisterSource(ctx context.Context, input RegisterInput) (*CreatedSource, error)
}

// Hooks 为状态机对外的回调集合。所有回调在编排器 goroutine 上同步调用，
// 实现方不得在回调内再调用编排器方法以外的阻塞操作。
type Hooks struct {
	OnStateChange func(from, to State)
	OnProgress    func(transferred, total int64)
	OnError       func(failure Failure)
	OnComplete    func(result *CreatedSource)
}

// Orchestrator 驱动单文件上传流程：
// Idle → Validating → RequestingCredential → Transferring → Registering → Succeeded，
// 各网络阶段失败进入 Failed(stage, reason)。
//
// 重试语义不对称：registration 失败复用已传输对象的 fileKey/fileUrl 只重做注册；
// credential/transfer 失败无持久副作用，安全地从 Validating 整体重来。
type Orchestrator struct {
	rules     validation.Rules
	issuer    CredentialIssuer
	transfer  Transfer
	registrar Registrar
	hooks     Hooks
	log       *log.Helper

	mu         sync.Mutex
	state      State
	generation uint64
	cancelRun  context.CancelFunc

	file    *File
	cred    *Credential
	failure *Failure
	result  *CreatedSource
}

// NewOrchestrator 构造编排器，初始状态为 Idle。
func NewOrchestrator(rules validation.Rules, issuer CredentialIssuer, transfer Transfer, registrar Registrar, hooks Hooks, logger log.Logger) *Orchestrator {
	return &Orchestrator{
		rules:     rules,
		issuer:    issuer,
		transfer:  transfer,
		registrar: registrar,
		hooks:     hooks,
		log:       log.NewHelper(logger),
		state:     StateIdle,
	}
}

// State 返回当前状态。
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastFailure 返回最近一次失败信息；非 Failed 状态返回 nil。
func (o *Orchestrator) LastFailure() *Failure {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateFailed || o.failure == nil {
		return nil
	}
	copied := *o.failure
	return &copied
}

// Result 返回注册成功的结果；非 Succeeded 状态返回 nil。
func (o *Orchestrator) Result() *CreatedSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Start 从 Idle 启动一次上传流程。流程在独立 goroutine 上推进，
// Start 立即返回；非 Idle 状态下调用返回错误。
func (o *Orchestrator) Start(ctx context.Context, file File) error {
	o.mu.Lock()
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("start: not allowed in state %s", state)
	}
	o.file = &file
	o.cred = nil
	o.failure = nil
	o.result = nil
	gen := o.generation
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel
	o.mu.Unlock()

	go o.run(runCtx, gen, false)
	return nil
}

// Retry 从 Failed 重入流程。registration 失败只重做注册；
// 其余阶段从 Validating 整体重来。
func (o *Orchestrator) Retry(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateFailed || o.failure == nil {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("retry: not allowed in state %s", state)
	}
	if o.file == nil {
		o.mu.Unlock()
		return errors.New("retry: no file to retry")
	}
	registrationOnly := o.failure.Stage == StageRegistration && o.cred != nil
	gen := o.generation
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel
	o.mu.Unlock()

	go o.run(runCtx, gen, registrationOnly)
	return nil
}

// Clear 由用户触发，从任意状态复位到 Idle 并丢弃全部内存状态。
// 在途调用被取消；迟到的响应因代际不匹配被丢弃，不会复活已清除的流程。
// 已上传的对象不做补偿删除。
func (o *Orchestrator) Clear() {
	o.mu.Lock()
	o.generation++
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	from := o.state
	o.state = StateIdle
	o.file = nil
	o.cred = nil
	o.failure = nil
	o.result = nil
	hook := o.hooks.OnStateChange
	o.mu.Unlock()

	if hook != nil && from != StateIdle {
		hook(from, StateIdle)
	}
}

// run 在独立 goroutine 上推进流程。gen 标记本次运行所属代际，
// 任何状态写入前都校验代际，丢弃被 Clear 作废的结果。
func (o *Orchestrator) run(ctx context.Context, gen uint64, registrationOnly bool) {
	o.mu.Lock()
	if gen != o.generation || o.file == nil {
		o.mu.Unlock()
		return
	}
	file := *o.file
	cred := o.cred
	o.mu.Unlock()

	if !registrationOnly {
		if !o.setState(gen, StateValidating) {
			return
		}
		if err := o.rules.Validate(validation.FileMetadata{
			Filename:    file.Name,
			ContentType: file.ContentType,
			SizeBytes:   file.SizeBytes,
		}); err != nil {
			o.fail(gen, StageValidation, err.Error())
			return
		}

		if !o.setState(gen, StateRequestingCredential) {
			return
		}
		issued, err := o.issuer.IssueUploadCredential(ctx, file.Name, file.ContentType, file.SizeBytes)
		if err != nil {
			o.fail(gen, StageCredential, err.Error())
			return
		}
		if !o.storeCredential(gen, issued) {
			return
		}
		cred = issued

		if !o.setState(gen, StateTransferring) {
			return
		}
		err = o.transfer.Upload(ctx, cred, file, func(transferred, total int64) {
			o.reportProgress(gen, transferred, total)
		})
		if err != nil {
			o.fail(gen, StageTransfer, err.Error())
			return
		}
	}

	if !o.setState(gen, StateRegistering) {
		return
	}
	created, err := o.registrar.RegisterSource(ctx, RegisterInput{
		FileKey:          cred.FileKey,
		FileURL:          cred.FileURL,
		SourceType:       "upload",
		OriginalFilename: file.Name,
		ContentType:      file.ContentType,
		SizeBytes:        file.SizeBytes,
		DurationSeconds:  file.DurationSeconds,
	})
	if err != nil {
		o.fail(gen, StageRegistration, err.Error())
		return
	}
	o.succeed(gen, created)
}

// setState 在代际匹配时推进状态并触发回调；代际过期返回 false。
func (o *Orchestrator) setState(gen uint64, next State) bool {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return false
	}
	from := o.state
	o.state = next
	hook := o.hooks.OnStateChange
	o.mu.Unlock()

	if hook != nil && from != next {
		hook(from, next)
	}
	return true
}

func (o *Orchestrator) storeCredential(gen uint64, cred *Credential) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	o.cred = cred
	return true
}

func (o *Orchestrator) reportProgress(gen uint64, transferred, total int64) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	hook := o.hooks.OnProgress
	o.mu.Unlock()

	if hook != nil {
		hook(transferred, total)
	}
}

func (o *Orchestrator) fail(gen uint64, stage Stage, reason string) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	from := o.state
	o.state = StateFailed
	o.failure = &Failure{Stage: stage, Reason: reason}
	failure := *o.failure
	stateHook := o.hooks.OnStateChange
	errorHook := o.hooks.OnError
	o.mu.Unlock()

	o.log.Warnf("upload failed: stage=%s reason=%s", stage, reason)
	if stateHook != nil && from != StateFailed {
		stateHook(from, StateFailed)
	}
	if errorHook != nil {
		errorHook(failure)
	}
}

func (o *Orchestrator) succeed(gen uint64, result *CreatedSource) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}
	from := o.state
	o.state = StateSucceeded
	o.result = result
	stateHook := o.hooks.OnStateChange
	completeHook := o.hooks.OnComplete
	o.mu.Unlock()

	if stateHook != nil {
		stateHook(from, StateSucceeded)
	}
	if completeHook != nil {
		completeHook(result)
	}
}
