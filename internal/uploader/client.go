// Package uploader 实现客户端上传编排：校验、取凭证、直传对象、注册入库。
// 单实例单文件在途；多实例（如多个浏览器标签页）互不共享进程内状态。
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential 为服务端签发的限时写凭证。
type Credential struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	FileURL   string    `json:"fileUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterInput 为注册源视频的请求参数。
type RegisterInput struct {
	FileKey          string
	FileURL          string
	SourceType       string
	OriginalFilename string
	ContentType      string
	SizeBytes        int64
	DurationSeconds  *float64
}

// SourceInfo 为服务端返回的源视频摘要。
type SourceInfo struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	SourceType string    `json:"source_type"`
	FileURL    string    `json:"file_url"`
	FileKey    string    `json:"file_key"`
}

// JobInfo 为服务端返回的处理任务摘要。
type JobInfo struct {
	ID              uuid.UUID `json:"id"`
	SourceID        uuid.UUID `json:"source_id"`
	JobType         string    `json:"job_type"`
	Status          string    `json:"status"`
	ProgressPercent int32     `json:"progress_percent"`
}

// CreatedSource 为注册成功的响应：新建的 Source 及其首个任务。
type CreatedSource struct {
	Source SourceInfo `json:"source"`
	Job    JobInfo    `json:"job"`
}

// APIError 为服务端错误响应的解码结果。
type APIError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Error 实现 error 接口。
func (e *APIError) Error() string {
	return fmt.Sprintf("api error: code=%d reason=%s message=%s", e.Code, e.Reason, e.Message)
}

// IngestClient 封装对 ingest 服务两个端点的 HTTP 调用。
type IngestClient struct {
	baseURL string
	http    *http.Client
}

// NewIngestClient 构造 IngestClient。client 为 nil 时使用带默认超时的实例。
func NewIngestClient(baseURL string, client *http.Client) *IngestClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &IngestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

type issueUploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
}

// IssueUploadCredential 调用 POST /sources/upload-url 获取限时写凭证。
func (c *IngestClient) IssueUploadCredential(ctx context.Context, filename, contentType string, sizeBytes int64) (*Credential, error) {
	var cred Credential
	err := c.postJSON(ctx, "/sources/upload-url", issueUploadURLRequest{
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
	}, &cred)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

type registerSourceRequest struct {
	FileURL          string   `json:"file_url"`
	FileKey          string   `json:"file_key"`
	SourceType       string   `json:"source_type"`
	OriginalFilename string   `json:"original_filename"`
	ContentType      string   `json:"content_type"`
	SizeBytes        int64    `json:"size_bytes"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
}

// RegisterSource 调用 POST /sources 注册源视频及其首个转写任务。
func (c *IngestClient) RegisterSource(ctx context.Context, input RegisterInput) (*CreatedSource, error) {
	var created CreatedSource
	err := c.postJSON(ctx, "/sources", registerSourceRequest{
		FileURL:          input.FileURL,
		FileKey:          input.FileKey,
		SourceType:       input.SourceType,
		OriginalFilename: input.OriginalFilename,
		ContentType:      input.ContentType,
		SizeBytes:        input.SizeBytes,
		DurationSeconds:  input.DurationSeconds,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *IngestClient) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError 解析错误响应体；无法解析时退化为带状态码的通用错误。
func decodeAPIError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("http %d: read error body: %w", resp.StatusCode, err)
	}
	apiErr := &APIError{}
	if jsonErr := json.Unmarshal(raw, apiErr); jsonErr == nil && (apiErr.Reason != "" || apiErr.Message != "") {
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		return apiErr
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
