package controllers

import "github.com/google/wire"

// ProviderSet 暴露接口层构造器供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewHandlerTimeouts,
	NewBaseHandler,
	NewSourceHandler,
	NewJobHandler,
)
