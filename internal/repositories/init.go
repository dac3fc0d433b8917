// Package repositories 封装 ingest schema 的数据库访问逻辑。
package repositories

import "github.com/google/wire"

// ProviderSet 暴露仓储构造器供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewSourceRepository,
	NewJobRepository,
)
