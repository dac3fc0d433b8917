// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，经 Controller 层序列化为 API 响应，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/yovideo/services-ingest/internal/models/po"

	"github.com/google/uuid"
)

// JobView 封装处理任务的对外视图。
type JobView struct {
	ID              uuid.UUID  `json:"id"`
	SourceID        uuid.UUID  `json:"source_id"`
	JobType         string     `json:"job_type"`
	Status          string     `json:"status"`
	ProgressPercent int32      `json:"progress_percent"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewJobView 从领域实体构造任务 VO。
func NewJobView(job *po.ProcessingJob) *JobView {
	if job == nil {
		return nil
	}
	return &JobView{
		ID:              job.ID,
		SourceID:        job.SourceID,
		JobType:         string(job.JobType),
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ErrorMessage:    job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
	}
}

// SourceView 封装源视频的对外视图。
type SourceView struct {
	ID               uuid.UUID `json:"id"`
	Status           string    `json:"status"`
	SourceType       string    `json:"source_type"`
	FileURL          string    `json:"file_url"`
	FileKey          string    `json:"file_key"`
	OriginalFilename string    `json:"original_filename"`
	ContentType      string    `json:"content_type"`
	SizeBytes        int64     `json:"size_bytes"`
	DurationSeconds  *float64  `json:"duration_seconds,omitempty"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewSourceView 从领域实体构造源视频 VO。
func NewSourceView(source *po.Source) *SourceView {
	if source == nil {
		return nil
	}
	return &SourceView{
		ID:               source.ID,
		Status:           string(source.Status),
		SourceType:       string(source.SourceType),
		FileURL:          source.FileURL,
		FileKey:          source.FileKey,
		OriginalFilename: source.OriginalFilename,
		ContentType:      source.ContentType,
		SizeBytes:        source.SizeBytes,
		DurationSeconds:  source.DurationSeconds,
		ErrorMessage:     source.ErrorMessage,
		CreatedAt:        source.CreatedAt,
		UpdatedAt:        source.UpdatedAt,
	}
}

// SourceCreated 表示注册成功后的返回视图：新建的 Source 及其首个任务。
type SourceCreated struct {
	Source *SourceView `json:"source"`
	Job    *JobView    `json:"job"`
}

// NewSourceCreated 从事务结果构造注册视图。
func NewSourceCreated(source *po.Source, job *po.ProcessingJob) *SourceCreated {
	return &SourceCreated{
		Source: NewSourceView(source),
		Job:    NewJobView(job),
	}
}

// SourceDetail 表示查询视图：Source 及其全部任务（客户端轮询用）。
type SourceDetail struct {
	Source *SourceView `json:"source"`
	Jobs   []*JobView  `json:"jobs"`
}

// NewSourceDetail 从实体集合构造查询视图。
func NewSourceDetail(source *po.Source, jobs []*po.ProcessingJob) *SourceDetail {
	views := make([]*JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, NewJobView(job))
	}
	return &SourceDetail{Source: NewSourceView(source), Jobs: views}
}
