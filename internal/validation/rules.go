// Package validation 提供上传前的纯函数校验规则。
// 规则在浏览器侧（快速反馈）与服务端（最终裁决）各执行一次，必须保持一致；
// 因此本包不依赖任何传输或存储组件，仅做同步判断。
package validation

import (
	"fmt"
	"strings"
)

// 拒绝原因常量。客户端状态机与服务端错误信息共用同一组取值。
const (
	ReasonUnsupportedType    = "unsupported_type"
	ReasonTooLarge           = "too_large"
	ReasonMissingContentType = "missing_content_type"
	ReasonEmptyFilename      = "empty_filename"
)

// DefaultMaxSizeBytes 为默认的单文件大小上限（2 GiB），部署可覆盖。
const DefaultMaxSizeBytes = int64(2) << 30

// DefaultAllowedTypes 返回默认允许的视频 MIME 类型。
func DefaultAllowedTypes() []string {
	return []string{
		"video/mp4",
		"video/quicktime",
		"video/webm",
		"video/x-matroska",
	}
}

// FileMetadata 描述待校验文件的声明属性。校验只看声明值，不读文件内容。
type FileMetadata struct {
	Filename    string
	ContentType string
	SizeBytes   int64
}

// RejectionError 表示文件被规则拒绝，Reason 为机器可读原因。
type RejectionError struct {
	Reason  string
	Message string
}

// Error 实现 error 接口。
func (e *RejectionError) Error() string {
	if e.Message == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Rules 为一组不可变的校验参数，构造后并发安全。
type Rules struct {
	allowed map[string]struct{}
	maxSize int64
}

// NewRules 构造校验规则。空 allowedTypes 使用默认允许列表；
// maxSizeBytes <= 0 使用默认上限。
func NewRules(allowedTypes []string, maxSizeBytes int64) Rules {
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes()
	}
	if maxSizeBytes <= 0 {
		maxSizeBytes = DefaultMaxSizeBytes
	}
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		allowed[t] = struct{}{}
	}
	return Rules{allowed: allowed, maxSize: maxSizeBytes}
}

// MaxSizeBytes 返回生效的大小上限。
func (r Rules) MaxSizeBytes() int64 {
	if r.maxSize <= 0 {
		return DefaultMaxSizeBytes
	}
	return r.maxSize
}

// Allows 判断单个 content type 是否在允许列表内。
func (r Rules) Allows(contentType string) bool {
	if r.allowed == nil {
		r = NewRules(nil, r.maxSize)
	}
	_, ok := r.allowed[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

// Validate 按规则校验文件元数据。
// 通过返回 nil；拒绝返回 *RejectionError，且保证不产生任何副作用。
func (r Rules) Validate(meta FileMetadata) error {
	if strings.TrimSpace(meta.Filename) == "" {
		return &RejectionError{Reason: ReasonEmptyFilename, Message: "filename is required"}
	}
	contentType := strings.ToLower(strings.TrimSpace(meta.ContentType))
	if contentType == "" {
		return &RejectionError{Reason: ReasonMissingContentType, Message: "content type is required"}
	}
	if !r.Allows(contentType) {
		return &RejectionError{
			Reason:  ReasonUnsupportedType,
			Message: fmt.Sprintf("unsupported content type: %s", contentType),
		}
	}
	if meta.SizeBytes > r.MaxSizeBytes() {
		return &RejectionError{
			Reason:  ReasonTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit %d", meta.SizeBytes, r.MaxSizeBytes()),
		}
	}
	return nil
}
