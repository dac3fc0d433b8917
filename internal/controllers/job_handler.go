package controllers

import (
	"net/http"

	"github.com/yovideo/services-ingest/internal/controllers/dto"
	"github.com/yovideo/services-ingest/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// JobHandler 处理外部 worker 推进任务进度的 HTTP 请求。
type JobHandler struct {
	*BaseHandler
	progress *services.JobProgressService
}

// NewJobHandler 构造 JobHandler。
func NewJobHandler(base *BaseHandler, progress *services.JobProgressService) *JobHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &JobHandler{BaseHandler: base, progress: progress}
}

// RegisterRoutes 挂载任务相关路由。
func (h *JobHandler) RegisterRoutes(r *khttp.Router) {
	r.PATCH("/jobs/{id}", h.UpdateJob)
}

// UpdateJob 处理 PATCH /jobs/{id}。
// 终态任务的任何变更返回 409；进度在 processing 期间单调不减。
func (h *JobHandler) UpdateJob(ctx khttp.Context) error {
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateJobRequest
	if err := ctx.Bind(&req); err != nil {
		return kerrors.BadRequest(services.ReasonInvalidInput, "invalid request body").WithCause(err)
	}

	meta := h.ExtractMetadata(ctx)
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	view, err := h.progress.UpdateJob(timeoutCtx, id, dto.ToUpdateJobInput(req))
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, view)
}
