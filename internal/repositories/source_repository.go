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

// ErrSourceNotFound 表示源视频记录不存在。
var ErrSourceNotFound = errors.New("source not found")

// SourceRepository 封装 ingest.sources 表的访问逻辑。
type SourceRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewSourceRepository 构造 SourceRepository。
func NewSourceRepository(db *pgxpool.Pool, logger log.Logger) *SourceRepository {
	return &SourceRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// InsertSourceInput 描述注册源视频所需的字段。
type InsertSourceInput struct {
	ID               uuid.UUID
	SourceType       po.SourceType
	FileURL          string
	FileKey          string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	DurationSeconds  *float64
}

const insertSourceSQL = `
INSERT INTO sources (
    id, status, source_type, file_url, file_key,
    original_filename, content_type, size_bytes, duration_seconds
)
VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $8)
RETURNING id, status, source_type, file_url, file_key,
          original_filename, content_type, size_bytes, duration_seconds,
          error_message, created_at, updated_at;
`

// Insert 写入一条新的源视频记录，初始状态固定为 pending。
func (r *SourceRepository) Insert(ctx context.Context, sess txmanager.Session, input InsertSourceInput) (*po.Source, error) {
	q := pickQuerier(r.db, sess)

	row := q.QueryRow(ctx, insertSourceSQL,
		input.ID,
		string(input.SourceType),
		input.FileURL,
		input.FileKey,
		input.OriginalFilename,
		input.ContentType,
		input.SizeBytes,
		input.DurationSeconds,
	)
	source, err := scanSource(row)
	if err != nil {
		r.log.WithContext(ctx).Errorf("insert source failed: id=%s err=%v", input.ID, err)
		return nil, fmt.Errorf("insert source: %w", err)
	}
	return source, nil
}

const getSourceSQL = `
SELECT id, status, source_type, file_url, file_key,
       original_filename, content_type, size_bytes, duration_seconds,
       error_message, created_at, updated_at
FROM sources
WHERE id = $1;
`

// GetByID 查询指定 ID 的源视频记录。
func (r *SourceRepository) GetByID(ctx context.Context, sess txmanager.Session, id uuid.UUID) (*po.Source, error) {
	q := pickQuerier(r.db, sess)

	source, err := scanSource(q.QueryRow(ctx, getSourceSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		r.log.WithContext(ctx).Errorf("get source failed: id=%s err=%v", id, err)
		return nil, fmt.Errorf("get source: %w", err)
	}
	return source, nil
}

const updateSourceStatusSQL = `
UPDATE sources
SET status = $2,
    error_message = $3,
    updated_at = now()
WHERE id = $1;
`

// UpdateStatus 更新源视频的整体状态与失败原因。
// errorMessage 为 nil 时清空 error_message（重新进入非失败状态）。
func (r *SourceRepository) UpdateStatus(ctx context.Context, sess txmanager.Session, id uuid.UUID, status po.SourceStatus, errorMessage *string) error {
	q := pickQuerier(r.db, sess)

	tag, err := q.Exec(ctx, updateSourceStatusSQL, id, string(status), errorMessage)
	if err != nil {
		r.log.WithContext(ctx).Errorf("update source status failed: id=%s status=%s err=%v", id, status, err)
		return fmt.Errorf("update source status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

const deleteSourceSQL = `DELETE FROM sources WHERE id = $1;`

// Delete 删除指定源视频记录。
// 关联的 processing_jobs/clips/clip_tags 由数据库外键级联删除。
func (r *SourceRepository) Delete(ctx context.Context, sess txmanager.Session, id uuid.UUID) error {
	q := pickQuerier(r.db, sess)

	tag, err := q.Exec(ctx, deleteSourceSQL, id)
	if err != nil {
		r.log.WithContext(ctx).Errorf("delete source failed: id=%s err=%v", id, err)
		return fmt.Errorf("delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// scanSource 从查询结果行构造 po.Source。
func scanSource(row pgx.Row) (*po.Source, error) {
	var (
		source     po.Source
		status     string
		sourceType string
	)
	if err := row.Scan(
		&source.ID,
		&status,
		&sourceType,
		&source.FileURL,
		&source.FileKey,
		&source.OriginalFilename,
		&source.ContentType,
		&source.SizeBytes,
		&source.DurationSeconds,
		&source.ErrorMessage,
		&source.CreatedAt,
		&source.UpdatedAt,
	); err != nil {
		return nil, err
	}
	source.Status = po.SourceStatus(status)
	source.SourceType = po.SourceType(sourceType)
	return &source, nil
}
