package dto

import "github.com/yovideo/services-ingest/internal/services"

// UpdateJobRequest 为 PATCH /jobs/{id} 的请求体。字段均可选，至少一项必填。
type UpdateJobRequest struct {
	Status          *string `json:"status,omitempty"`
	ProgressPercent *int32  `json:"progress_percent,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
}

// ToUpdateJobInput 将请求体转换为服务层输入。
func ToUpdateJobInput(req UpdateJobRequest) services.UpdateJobInput {
	return services.UpdateJobInput{
		Status:          req.Status,
		ProgressPercent: req.ProgressPercent,
		ErrorMessage:    req.ErrorMessage,
	}
}
