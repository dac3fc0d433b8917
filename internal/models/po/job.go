package po

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus 表示处理任务的执行状态。
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal 判断任务是否处于终态。终态任务的 progress_percent 被冻结。
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType 表示处理任务的类别。Pipeline 对后续阶段开放，新类型由 worker 侧定义。
type JobType string

// JobTypeTranscription 是每个 Source 创建时附带的首个任务类型。
const JobTypeTranscription JobType = "transcription"

// ProcessingJob 描述 ingest.processing_jobs 表中的一条任务记录。
// 每个任务归属且仅归属一个 Source，不随意单独删除（随 Source 级联）。
type ProcessingJob struct {
	ID              uuid.UUID  `db:"id"`
	SourceID        uuid.UUID  `db:"source_id"`
	JobType         JobType    `db:"job_type"`
	Status          JobStatus  `db:"status"`
	ProgressPercent int32      `db:"progress_percent"` // [0,100]，processing 期间单调不减
	ErrorMessage    *string    `db:"error_message"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	StartedAt       *time.Time `db:"started_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}
