package controllers

import (
	"net/http"

	"github.com/yovideo/services-ingest/internal/controllers/dto"
	"github.com/yovideo/services-ingest/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// SourceHandler 处理上传凭证签发与源视频 CRUD 的 HTTP 请求。
type SourceHandler struct {
	*BaseHandler
	credentials *services.CredentialService
	ingest      *services.IngestService
}

// NewSourceHandler 构造 SourceHandler。
func NewSourceHandler(base *BaseHandler, credentials *services.CredentialService, ingest *services.IngestService) *SourceHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &SourceHandler{BaseHandler: base, credentials: credentials, ingest: ingest}
}

// RegisterRoutes 挂载源视频相关路由。
func (h *SourceHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/sources/upload-url", h.IssueUploadURL)
	r.POST("/sources", h.RegisterSource)
	r.GET("/sources/{id}", h.GetSource)
	r.DELETE("/sources/{id}", h.DeleteSource)
}

// IssueUploadURL 处理 POST /sources/upload-url。
// 成功返回 201 与限时写凭证；本操作不落库。
func (h *SourceHandler) IssueUploadURL(ctx khttp.Context) error {
	var req dto.IssueUploadURLRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest(services.ReasonInvalidInput, "invalid request body").WithCause(err)
	}

	meta := h.ExtractMetadata(ctx)
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	cred, err := h.credentials.IssueUploadCredential(timeoutCtx, dto.ToIssueCredentialInput(req))
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusCreated, dto.NewIssueUploadURLResponse(cred))
}

// RegisterSource 处理 POST /sources。
// 成功返回 201 与新建的 Source 及其首个转写任务。
func (h *SourceHandler) RegisterSource(ctx khttp.Context) error {
	var req dto.RegisterSourceRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest(services.ReasonInvalidInput, "invalid request body").WithCause(err)
	}

	meta := h.ExtractMetadata(ctx)
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	created, err := h.ingest.RegisterSource(timeoutCtx, dto.ToRegisterSourceInput(req))
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusCreated, created)
}

// GetSource 处理 GET /sources/{id}，返回 Source 及其全部任务。
func (h *SourceHandler) GetSource(ctx khttp.Context) error {
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return err
	}

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()

	detail, err := h.ingest.GetSource(timeoutCtx, id)
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, detail)
}

// DeleteSource 处理 DELETE /sources/{id}。成功返回 204。
func (h *SourceHandler) DeleteSource(ctx khttp.Context) error {
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return err
	}

	meta := h.ExtractMetadata(ctx)
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	if err := h.ingest.DeleteSource(timeoutCtx, id); err != nil {
		return err
	}
	return ctx.Result(http.StatusNoContent, nil)
}

// pathUUID 解析路径参数中的 UUID。
func pathUUID(ctx khttp.Context, name string) (uuid.UUID, error) {
	raw := ctx.Vars().Get(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, kerrors.BadRequest(services.ReasonInvalidInput, "invalid id: must be a UUID").WithCause(err)
	}
	return id, nil
}
