package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// File 描述一个待上传文件。Open 每次调用返回新的读取器，重试时重新打开。
type File struct {
	Name            string
	ContentType     string
	SizeBytes       int64
	DurationSeconds *float64
	Open            func() (io.ReadCloser, error)
}

// ProgressFunc 在传输过程中回报已传输字节数与总字节数。
type ProgressFunc func(transferred, total int64)

// HTTPTransfer 通过签名 URL 直传对象存储（单次 PUT）。
type HTTPTransfer struct {
	http *http.Client
}

// NewHTTPTransfer 构造 HTTPTransfer。client 为 nil 时使用不限时的默认实例，
// 传输时长由调用方通过 ctx 约束。
func NewHTTPTransfer(client *http.Client) *HTTPTransfer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransfer{http: client}
}

// Upload 将文件内容 PUT 到凭证指定的写 URL。
// 请求携带签名约束的 Content-Type 与 x-goog-if-generation-match 头；
// 任何非 2xx 响应视为该次尝试的终态失败。
func (t *HTTPTransfer) Upload(ctx context.Context, cred *Credential, file File, onProgress ProgressFunc) error {
	if cred == nil || cred.UploadURL == "" {
		return fmt.Errorf("upload: credential is required")
	}
	if file.Open == nil {
		return fmt.Errorf("upload: file reader is required")
	}
	if !cred.ExpiresAt.IsZero() && time.Now().After(cred.ExpiresAt) {
		return fmt.Errorf("upload: credential expired at %s", cred.ExpiresAt.Format(time.RFC3339))
	}

	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("upload: open file: %w", err)
	}
	defer func() { _ = body.Close() }()

	reader := &countingReader{
		inner:      body,
		total:      file.SizeBytes,
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cred.UploadURL, reader)
	if err != nil {
		return fmt.Errorf("upload: build request: %w", err)
	}
	req.Header.Set("Content-Type", file.ContentType)
	req.Header.Set("x-goog-if-generation-match", "0")
	req.ContentLength = file.SizeBytes

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("upload: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// countingReader 包装底层读取器并回报累计进度。
type countingReader struct {
	inner       io.Reader
	total       int64
	transferred int64
	onProgress  ProgressFunc
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		if r.onProgress != nil {
			r.onProgress(r.transferred, r.total)
		}
	}
	return n, err
}
