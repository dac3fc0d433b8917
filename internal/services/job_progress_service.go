package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yovideo/services-ingest/internal/models/po"
	"github.com/yovideo/services-ingest/internal/models/vo"
	"github.com/yovideo/services-ingest/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// ProgressJobRepo 抽象进度推进所需的任务持久化操作。
type ProgressJobRepo interface {
	GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.ProcessingJob, error)
	Update(ctx context.Context, sess txmanager.Session, input repositories.UpdateJobInput) (*po.ProcessingJob, error)
	ListBySource(ctx context.Context, sess txmanager.Session, sourceID uuid.UUID) ([]*po.ProcessingJob, error)
}

// ProgressSourceRepo 抽象任务状态向源视频的汇总回写。
type ProgressSourceRepo interface {
	UpdateStatus(ctx context.Context, sess txmanager.Session, id uuid.UUID, status po.SourceStatus, errorMessage *string) error
}

// UpdateJobInput 为推进任务的服务层输入。字段均可选，至少一项必填。
type UpdateJobInput struct {
	Status          *string
	ProgressPercent *int32
	ErrorMessage    *string
}

// JobProgressService 实现外部 worker 推进任务状态/进度的用例。
// 任务状态只沿 pending→processing→completed|failed 推进，终态不可再变更。
type JobProgressService struct {
	jobs      ProgressJobRepo
	sources   ProgressSourceRepo
	txManager txmanager.Manager
	log       *log.Helper
}

// NewJobProgressService 创建 JobProgressService。
func NewJobProgressService(jobs ProgressJobRepo, sources ProgressSourceRepo, tx txmanager.Manager, logger log.Logger) *JobProgressService {
	return &JobProgressService{
		jobs:      jobs,
		sources:   sources,
		txManager: tx,
		log:       log.NewHelper(logger),
	}
}

// UpdateJob 推进任务状态并在同一事务内把结果汇总到所属源视频。
// 终态任务的任何变更请求返回冲突；进度在 processing 期间单调不减。
func (s *JobProgressService) UpdateJob(ctx context.Context, jobID uuid.UUID, input UpdateJobInput) (*vo.JobView, error) {
	if input.Status == nil && input.ProgressPercent == nil && input.ErrorMessage == nil {
		return nil, kerrors.BadRequest(ReasonInvalidInput, "at least one of status, progress_percent, error_message is required")
	}
	if input.Status != nil && !validJobStatus(po.JobStatus(*input.Status)) {
		return nil, kerrors.BadRequest(ReasonInvalidInput, fmt.Sprintf("invalid status: %s", *input.Status))
	}

	var updated *po.ProcessingJob
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		current, repoErr := s.jobs.GetByID(txCtx, sess, jobID)
		if repoErr != nil {
			return repoErr
		}

		target := current.Status
		if input.Status != nil {
			target = po.JobStatus(*input.Status)
		}
		if !validTransition(current.Status, target) {
			return kerrors.Conflict(ReasonJobStateConflict,
				fmt.Sprintf("cannot transition job from %s to %s", current.Status, target))
		}

		job, repoErr := s.jobs.Update(txCtx, sess, repositories.UpdateJobInput{
			ID:              jobID,
			Status:          target,
			ProgressPercent: progressForUpdate(target, input.ProgressPercent),
			ErrorMessage:    errorMessageForUpdate(target, input.ErrorMessage),
		})
		if repoErr != nil {
			return repoErr
		}
		updated = job

		return s.rollUpSource(txCtx, sess, job)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, kerrors.NotFound(ReasonJobNotFound, "processing job not found")
		}
		var kerr *kerrors.Error
		if errors.As(err, &kerr) {
			return nil, kerr
		}
		s.log.WithContext(ctx).Errorf("update job failed: id=%s err=%v", jobID, err)
		return nil, kerrors.InternalServer(ReasonPersistenceFailed, "failed to update processing job").WithCause(err)
	}

	return vo.NewJobView(updated), nil
}

// rollUpSource 依据任务结果推导源视频的整体状态并回写。
// failed 优先；全部任务完成才算 completed；否则保持 processing。
func (s *JobProgressService) rollUpSource(ctx context.Context, sess txmanager.Session, job *po.ProcessingJob) error {
	switch job.Status {
	case po.JobStatusProcessing:
		return s.sources.UpdateStatus(ctx, sess, job.SourceID, po.SourceStatusProcessing, nil)
	case po.JobStatusFailed:
		return s.sources.UpdateStatus(ctx, sess, job.SourceID, po.SourceStatusFailed, job.ErrorMessage)
	case po.JobStatusCompleted:
		siblings, err := s.jobs.ListBySource(ctx, sess, job.SourceID)
		if err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.Status == po.JobStatusFailed {
				return s.sources.UpdateStatus(ctx, sess, job.SourceID, po.SourceStatusFailed, sibling.ErrorMessage)
			}
			if !sibling.Status.Terminal() {
				return s.sources.UpdateStatus(ctx, sess, job.SourceID, po.SourceStatusProcessing, nil)
			}
		}
		return s.sources.UpdateStatus(ctx, sess, job.SourceID, po.SourceStatusCompleted, nil)
	default:
		return nil
	}
}

func validJobStatus(status po.JobStatus) bool {
	switch status {
	case po.JobStatusPending, po.JobStatusProcessing, po.JobStatusCompleted, po.JobStatusFailed:
		return true
	default:
		return false
	}
}

// validTransition 判断任务状态迁移是否合法。
// 终态冻结；pending 不可直接 completed；不允许回退。
func validTransition(current, target po.JobStatus) bool {
	if current == target {
		return !current.Terminal()
	}
	switch current {
	case po.JobStatusPending:
		return target == po.JobStatusProcessing || target == po.JobStatusFailed
	case po.JobStatusProcessing:
		return target == po.JobStatusCompleted || target == po.JobStatusFailed
	default:
		return false
	}
}

// progressForUpdate 归一化写库进度：completed 固定 100；failed 冻结当前值；
// 其余取客户端声明值并夹取到 [0,100]，数据库侧再与当前值取 GREATEST。
func progressForUpdate(target po.JobStatus, declared *int32) int32 {
	if target == po.JobStatusCompleted {
		return 100
	}
	if target == po.JobStatusFailed || declared == nil {
		return 0
	}
	progress := *declared
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return progress
}

// errorMessageForUpdate 仅在失败态保留错误信息，其余状态清空。
func errorMessageForUpdate(target po.JobStatus, declared *string) *string {
	if target != po.JobStatusFailed {
		return nil
	}
	return declared
}
