// Package services 实现上传凭证签发、源视频注册与任务进度推进的业务用例。
package services

import "github.com/google/wire"

// ProviderSet 暴露服务层构造器供 Wire 依赖注入使用。
// CredentialService 依赖配置中的标量参数，由 cmd 层的适配 Provider 构造。
var ProviderSet = wire.NewSet(
	NewIngestService,
	NewJobProgressService,
)
