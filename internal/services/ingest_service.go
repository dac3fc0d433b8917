package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yovideo/services-ingest/internal/models/po"
	"github.com/yovideo/services-ingest/internal/models/vo"
	"github.com/yovideo/services-ingest/internal/repositories"
	"github.com/yovideo/services-ingest/internal/validation"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// SourceRepo 抽象源视频持久化操作，便于测试。
type SourceRepo interface {
	Insert(ctx context.Context, sess txmanager.Session, input repositories.InsertSourceInput) (*po.Source, error)
	GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.Source, error)
	Delete(ctx context.Context, sess txmanager.Session, id uuid.UUID) error
}

// SourceJobRepo 抽象注册与查询流程所需的任务持久化操作。
type SourceJobRepo interface {
	Insert(ctx context.Context, sess txmanager.Session, id, sourceID uuid.UUID, jobType po.JobType) (*po.ProcessingJob, error)
	ListBySource(ctx context.Context, sess txmanager.Session, sourceID uuid.UUID) ([]*po.ProcessingJob, error)
}

// RegisterSourceInput 为注册源视频的服务层输入。
// 调用前提：fileKey/fileUrl 指向的对象已上传完成（本服务不回查对象存在性）。
type RegisterSourceInput struct {
	FileKey          string
	FileURL          string
	SourceType       string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	DurationSeconds  *float64
}

// IngestService 实现源视频的注册、查询与删除用例。
type IngestService struct {
	sources   SourceRepo
	jobs      SourceJobRepo
	rules     validation.Rules
	txManager txmanager.Manager
	log       *log.Helper
}

// NewIngestService 创建 IngestService。
func NewIngestService(sources SourceRepo, jobs SourceJobRepo, rules validation.Rules, tx txmanager.Manager, logger log.Logger) *IngestService {
	return &IngestService{
		sources:   sources,
		jobs:      jobs,
		rules:     rules,
		txManager: tx,
		log:       log.NewHelper(logger),
	}
}

// RegisterSource 在单个事务内注册源视频及其首个转写任务。
// 两行写入全有或全无：任务插入失败时源视频插入不会持久化。
func (s *IngestService) RegisterSource(ctx context.Context, input RegisterSourceInput) (*vo.SourceCreated, error) {
	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	sourceID := uuid.New()
	var (
		source *po.Source
		job    *po.ProcessingJob
	)

	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		created, repoErr := s.sources.Insert(txCtx, sess, repositories.InsertSourceInput{
			ID:               sourceID,
			SourceType:       po.SourceType(strings.ToLower(input.SourceType)),
			FileURL:          input.FileURL,
			FileKey:          input.FileKey,
			OriginalFilename: input.OriginalFilename,
			ContentType:      strings.ToLower(strings.TrimSpace(input.ContentType)),
			SizeBytes:        input.SizeBytes,
			DurationSeconds:  input.DurationSeconds,
		})
		if repoErr != nil {
			return fmt.Errorf("insert source: %w", repoErr)
		}
		source = created

		createdJob, repoErr := s.jobs.Insert(txCtx, sess, uuid.New(), sourceID, po.JobTypeTranscription)
		if repoErr != nil {
			return fmt.Errorf("insert job: %w", repoErr)
		}
		job = createdJob
		return nil
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("register source failed: file_key=%s err=%v", input.FileKey, err)
		return nil, kerrors.InternalServer(ReasonPersistenceFailed, "failed to register source").WithCause(err)
	}

	s.log.WithContext(ctx).Infof("source registered: id=%s file_key=%s job_id=%s", source.ID, source.FileKey, job.ID)
	return vo.NewSourceCreated(source, job), nil
}

// GetSource 返回源视频及其全部处理任务，供客户端轮询。
func (s *IngestService) GetSource(ctx context.Context, id uuid.UUID) (*vo.SourceDetail, error) {
	source, err := s.sources.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSourceNotFound) {
			return nil, kerrors.NotFound(ReasonSourceNotFound, "source not found")
		}
		return nil, kerrors.InternalServer(ReasonPersistenceFailed, "failed to load source").WithCause(err)
	}

	jobs, err := s.jobs.ListBySource(ctx, nil, id)
	if err != nil {
		return nil, kerrors.InternalServer(ReasonPersistenceFailed, "failed to load processing jobs").WithCause(err)
	}
	return vo.NewSourceDetail(source, jobs), nil
}

// DeleteSource 删除源视频。关联任务与切片由数据库级联删除，不会留下孤儿。
func (s *IngestService) DeleteSource(ctx context.Context, id uuid.UUID) error {
	if err := s.sources.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, repositories.ErrSourceNotFound) {
			return kerrors.NotFound(ReasonSourceNotFound, "source not found")
		}
		return kerrors.InternalServer(ReasonPersistenceFailed, "failed to delete source").WithCause(err)
	}
	s.log.WithContext(ctx).Infof("source deleted: id=%s", id)
	return nil
}

func (s *IngestService) validateRegisterInput(input RegisterSourceInput) error {
	if strings.TrimSpace(input.FileKey) == "" {
		return kerrors.BadRequest(ReasonInvalidInput, "file_key is required")
	}
	if strings.TrimSpace(input.FileURL) == "" {
		return kerrors.BadRequest(ReasonInvalidInput, "file_url is required")
	}
	if !po.ValidSourceType(po.SourceType(strings.ToLower(input.SourceType))) {
		return kerrors.BadRequest(ReasonInvalidInput, fmt.Sprintf("invalid source_type: %s", input.SourceType))
	}
	if input.SizeBytes < 0 {
		return kerrors.BadRequest(ReasonInvalidInput, "size_bytes must be non-negative")
	}
	if input.DurationSeconds != nil && *input.DurationSeconds < 0 {
		return kerrors.BadRequest(ReasonInvalidInput, "duration_seconds must be non-negative")
	}
	// 服务端最终裁决：注册阶段同样执行内容类型与大小校验。
	if err := s.rules.Validate(validation.FileMetadata{
		Filename:    input.OriginalFilename,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
	}); err != nil {
		var rejection *validation.RejectionError
		if errors.As(err, &rejection) {
			return kerrors.BadRequest(ReasonInvalidInput, rejection.Message).WithCause(err)
		}
		return kerrors.BadRequest(ReasonInvalidInput, err.Error())
	}
	return nil
}
