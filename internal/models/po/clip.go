package po

import (
	"time"

	"github.com/google/uuid"
)

// Clip 描述外部 worker 产出的切片记录（ingest.clips）。
// Ingest 核心不创建 Clip，但必须保证删除 Source 时不会留下孤儿切片
// （外键 ON DELETE CASCADE，见 db/migrations）。
type Clip struct {
	ID           uuid.UUID `db:"id"`
	SourceID     uuid.UUID `db:"source_id"`
	Title        string    `db:"title"`
	StoragePath  *string   `db:"storage_path"`
	StartSeconds *float64  `db:"start_seconds"`
	EndSeconds   *float64  `db:"end_seconds"`
	CreatedAt    time.Time `db:"created_at"`
}

// Tag 描述可绑定到 Clip 的标签（ingest.tags）。
type Tag struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

// ClipTag 是 Clip 与 Tag 的关联记录，任一父记录删除时级联删除。
type ClipTag struct {
	ClipID uuid.UUID `db:"clip_id"`
	TagID  uuid.UUID `db:"tag_id"`
}
