// Package dto 定义 HTTP 接口的请求/响应载荷，隔离传输层与服务层结构。
package dto

import (
	"time"

	"github.com/yovideo/services-ingest/internal/services"
)

// IssueUploadURLRequest 为 POST /sources/upload-url 的请求体。
type IssueUploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// IssueUploadURLResponse 为签发成功的响应体。
type IssueUploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	FileURL   string `json:"fileUrl"`
	ExpiresAt string `json:"expiresAt"`
}

// ToIssueCredentialInput 将请求体转换为服务层输入。
func ToIssueCredentialInput(req IssueUploadURLRequest) services.IssueCredentialInput {
	return services.IssueCredentialInput{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	}
}

// NewIssueUploadURLResponse 从服务层结果构造响应体。
func NewIssueUploadURLResponse(cred *services.UploadCredential) *IssueUploadURLResponse {
	if cred == nil {
		return nil
	}
	return &IssueUploadURLResponse{
		UploadURL: cred.UploadURL,
		FileKey:   cred.FileKey,
		FileURL:   cred.FileURL,
		ExpiresAt: cred.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// RegisterSourceRequest 为 POST /sources 的请求体。
type RegisterSourceRequest struct {
	FileURL          string   `json:"file_url"`
	FileKey          string   `json:"file_key"`
	SourceType       string   `json:"source_type"`
	OriginalFilename string   `json:"original_filename"`
	ContentType      string   `json:"content_type"`
	SizeBytes        int64    `json:"size_bytes"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
}

// ToRegisterSourceInput 将请求体转换为服务层输入。
func ToRegisterSourceInput(req RegisterSourceRequest) services.RegisterSourceInput {
	return services.RegisterSourceInput{
		FileKey:          req.FileKey,
		FileURL:          req.FileURL,
		SourceType:       req.SourceType,
		OriginalFilename: req.OriginalFilename,
		ContentType:      req.ContentType,
		SizeBytes:        req.SizeBytes,
		DurationSeconds:  req.DurationSeconds,
	}
}
