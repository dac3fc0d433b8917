package services

// 错误 Reason 常量，由 Kratos errors 携带并映射为 HTTP 状态码。
// 客户端依据 Reason 而非 message 做分支判断。
const (
	// ReasonInvalidInput 表示请求载荷未通过校验（HTTP 400）。
	ReasonInvalidInput = "INGEST_INVALID_INPUT"
	// ReasonStorageUnavailable 表示签名凭证生成失败（HTTP 503）。
	ReasonStorageUnavailable = "INGEST_STORAGE_UNAVAILABLE"
	// ReasonPersistenceFailed 表示数据库写入失败（HTTP 500）。
	ReasonPersistenceFailed = "INGEST_PERSISTENCE_FAILED"
	// ReasonSourceNotFound 表示源视频不存在（HTTP 404）。
	ReasonSourceNotFound = "INGEST_SOURCE_NOT_FOUND"
	// ReasonJobNotFound 表示处理任务不存在（HTTP 404）。
	ReasonJobNotFound = "INGEST_JOB_NOT_FOUND"
	// ReasonJobStateConflict 表示非法状态迁移（HTTP 409）。
	ReasonJobStateConflict = "INGEST_JOB_STATE_CONFLICT"
)
