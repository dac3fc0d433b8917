package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/yovideo/services-ingest/internal/validation"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// WriteSigner 定义生成单次 PUT 上传签名 URL 的能力。
type WriteSigner interface {
	SignedUploadURL(ctx context.Context, bucket, objectName, contentType string, ttl time.Duration) (string, time.Time, error)
}

// IssueCredentialInput 为签发上传凭证的服务层输入。
type IssueCredentialInput struct {
	Filename    string
	ContentType string
	SizeBytes   int64 // 可选；客户端预声明时参与大小校验
}

// UploadCredential 为签发结果：写 URL、对象键与可公开访问的读 URL。
type UploadCredential struct {
	UploadURL string
	FileKey   string
	FileURL   string
	ExpiresAt time.Time
}

// CredentialService 实现上传凭证的签发用例。
// 本操作对数据库零副作用：客户端中途放弃不会留下孤儿 Source。
type CredentialService struct {
	signer        WriteSigner
	rules         validation.Rules
	bucket        string
	publicBaseURL string
	ttl           time.Duration
	newID         func() uuid.UUID
	log           *log.Helper
}

// NewCredentialService 创建 CredentialService。
func NewCredentialService(signer WriteSigner, rules validation.Rules, bucket, publicBaseURL string, ttl time.Duration, logger log.Logger) (*CredentialService, error) {
	switch {
	case signer == nil:
		return nil, errors.New("credential service: signer is required")
	case bucket == "":
		return nil, errors.New("credential service: bucket is required")
	case publicBaseURL == "":
		return nil, errors.New("credential service: public base url is required")
	case ttl <= 0:
		return nil, errors.New("credential service: ttl must be positive")
	}

	return &CredentialService{
		signer:        signer,
		rules:         rules,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		ttl:           ttl,
		newID:         uuid.New,
		log:           log.NewHelper(logger),
	}, nil
}

// IssueUploadCredential 校验文件元数据并签发限时写凭证。
// 服务端独立重校验 content type，不信任客户端校验结果。
func (s *CredentialService) IssueUploadCredential(ctx context.Context, input IssueCredentialInput) (*UploadCredential, error) {
	meta := validation.FileMetadata{
		Filename:    input.Filename,
		ContentType: input.ContentType,
		SizeBytes:   input.SizeBytes,
	}
	if err := s.rules.Validate(meta); err != nil {
		var rejection *validation.RejectionError
		if errors.As(err, &rejection) {
			return nil, kerrors.BadRequest(ReasonInvalidInput, rejection.Message).WithCause(err)
		}
		return nil, kerrors.BadRequest(ReasonInvalidInput, err.Error())
	}

	// 命名空间化对象键：生成标识 + 原始文件名，并发上传永不冲突。
	fileKey := fmt.Sprintf("videos/%s/%s", s.newID().String(), sanitizeFilename(input.Filename))

	uploadURL, expiresAt, err := s.signer.SignedUploadURL(ctx, s.bucket, fileKey, strings.ToLower(strings.TrimSpace(input.ContentType)), s.ttl)
	if err != nil {
		s.log.WithContext(ctx).Errorf("sign upload url failed: file_key=%s err=%v", fileKey, err)
		return nil, kerrors.ServiceUnavailable(ReasonStorageUnavailable, "failed to sign upload credential").WithCause(err)
	}

	return &UploadCredential{
		UploadURL: uploadURL,
		FileKey:   fileKey,
		FileURL:   s.publicBaseURL + "/" + fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// sanitizeFilename 归一化文件名用于对象键：
// 去掉路径部分，仅保留字母数字与 . - _，其余字符替换为下划线。
func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
