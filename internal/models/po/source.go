// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给上层业务逻辑。
package po

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatus 表示源视频的整体生命周期状态。
type SourceStatus string

// 源视频状态常量定义
const (
	SourceStatusPending    SourceStatus = "pending"    // 已注册，等待 worker 领取
	SourceStatusProcessing SourceStatus = "processing" // worker 正在转写/切片
	SourceStatusCompleted  SourceStatus = "completed"  // 全部任务完成
	SourceStatusFailed     SourceStatus = "failed"     // 任一任务失败
)

// SourceType 表示源视频的来源渠道。
type SourceType string

const (
	SourceTypeYouTube   SourceType = "youtube"
	SourceTypeUpload    SourceType = "upload"
	SourceTypeTikTok    SourceType = "tiktok"
	SourceTypeInstagram SourceType = "instagram"
	SourceTypeOther     SourceType = "other"
)

// ValidSourceType 判断 source_type 是否在允许的枚举范围内。
func ValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeYouTube, SourceTypeUpload, SourceTypeTikTok, SourceTypeInstagram, SourceTypeOther:
		return true
	default:
		return false
	}
}

// Source 描述 ingest.sources 表中的一条源视频记录。
// 直传场景下 file_url/file_key 在创建时即已确定；状态推进由外部 worker 负责。
type Source struct {
	ID               uuid.UUID    `db:"id"`
	Status           SourceStatus `db:"status"`
	SourceType       SourceType   `db:"source_type"`
	FileURL          string       `db:"file_url"`
	FileKey          string       `db:"file_key"`
	OriginalFilename string       `db:"original_filename"`
	ContentType      string       `db:"content_type"`
	SizeBytes        int64        `db:"size_bytes"`
	DurationSeconds  *float64     `db:"duration_seconds"` // 客户端预探测的时长（可选）
	ErrorMessage     *string      `db:"error_message"`    // 最近一次失败原因
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}
