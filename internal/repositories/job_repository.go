package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/yovideo/services-ingest/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound 表示处理任务记录不存在。
var ErrJobNotFound = errors.New("processing job not found")

// JobRepository 封装 ingest.processing_jobs 表的访问逻辑。
type JobRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewJobRepository 构造 JobRepository。
func NewJobRepository(db *pgxpool.Pool, logger log.Logger) *JobRepository {
	return &JobRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

const insertJobSQL = `
INSERT INTO processing_jobs (id, source_id, job_type, status, progress_percent)
VALUES ($1, $2, $3, 'pending', 0)
RETURNING id, source_id, job_type, status, progress_percent,
          error_message, created_at, updated_at, started_at, completed_at;
`

// Insert 写入一条新的处理任务，初始状态固定为 pending、进度为 0。
func (r *JobRepository) Insert(ctx context.Context, sess txmanager.Session, id, sourceID uuid.UUID, jobType po.JobType) (*po.ProcessingJob, error) {
	q := pickQuerier(r.db, sess)

	job, err := scanJob(q.QueryRow(ctx, insertJobSQL, id, sourceID, string(jobType)))
	if err != nil {
		r.log.WithContext(ctx).Errorf("insert job failed: id=%s source_id=%s err=%v", id, sourceID, err)
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

const getJobSQL = `
SELECT id, source_id, job_type, status, progress_percent,
       error_message, created_at, updated_at, started_at, completed_at
FROM processing_jobs
WHERE id = $1;
`

// GetByID 查询指定 ID 的处理任务。
func (r *JobRepository) GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.ProcessingJob, error) {
	q := pickQuerier(r.db, sess)

	job, err := scanJob(q.QueryRow(ctx, getJobSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		r.log.WithContext(ctx).Errorf("get job failed: id=%s err=%v", id, err)
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

const listJobsBySourceSQL = `
SELECT id, source_id, job_type, status, progress_percent,
       error_message, created_at, updated_at, started_at, completed_at
FROM processing_jobs
WHERE source_id = $1
ORDER BY created_at;
`

// ListBySource 返回指定源视频下的全部处理任务（按创建时间排序）。
func (r *JobRepository) ListBySource(ctx context.Context, sess txmanager.Session, sourceID uuid.UUID) ([]*po.ProcessingJob, error) {
	q := pickQuerier(r.db, sess)

	rows, err := q.Query(ctx, listJobsBySourceSQL, sourceID)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list jobs failed: source_id=%s err=%v", sourceID, err)
		return nil, fmt.Errorf("list jobs by source: %w", err)
	}
	defer rows.Close()

	var jobs []*po.ProcessingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// UpdateJobInput 描述推进任务状态所需的字段。
// ProgressPercent 与当前值取 GREATEST，保证 processing 期间进度单调不减。
type UpdateJobInput struct {
	ID              uuid.UUID
	Status          po.JobStatus
	ProgressPercent int32
	ErrorMessage    *string
}

const updateJobSQL = `
UPDATE processing_jobs
SET status = $2,
    progress_percent = GREATEST(progress_percent, $3),
    error_message = $4,
    started_at = CASE WHEN $2 = 'processing' AND started_at IS NULL THEN now() ELSE started_at END,
    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END,
    updated_at = now()
WHERE id = $1
RETURNING id, source_id, job_type, status, progress_percent,
          error_message, created_at, updated_at, started_at, completed_at;
`

// Update 推进任务状态并回写时间戳。
// 首次进入 processing 时记录 started_at；进入终态时记录 completed_at。
func (r *JobRepository) Update(ctx context.Context, sess txmanager.Session, input UpdateJobInput) (*po.ProcessingJob, error) {
	q := pickQuerier(r.db, sess)

	job, err := scanJob(q.QueryRow(ctx, updateJobSQL,
		input.ID,
		string(input.Status),
		input.ProgressPercent,
		input.ErrorMessage,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		r.log.WithContext(ctx).Errorf("update job failed: id=%s status=%s err=%v", input.ID, input.Status, err)
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// scanJob 从查询结果行构造 po.ProcessingJob。
func scanJob(row pgx.Row) (*po.ProcessingJob, error) {
	var (
		job     po.ProcessingJob
		jobType string
		status  string
	)
	if err := row.Scan(
		&job.ID,
		&job.SourceID,
		&jobType,
		&status,
		&job.ProgressPercent,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	job.JobType = po.JobType(jobType)
	job.Status = po.JobStatus(status)
	return &job, nil
}
