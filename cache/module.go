package cache

import (
	"github.com/aisgo/vlog-gateway/cache/redis"
	"go.uber.org/fx"
)

/* ========================================================================
 * Cache Module
 * ========================================================================
 * 职责: 提供 Redis 依赖注入模块
 * ======================================================================== */

// Module 缓存模块
// 提供: *redis.Client（未启用时为 nil）, redis.Clienter（未启用时为 nil 接口）
var Module = fx.Module("cache",
	fx.Provide(
		redis.NewClient,
		func(c *redis.Client) redis.Clienter {
			if c == nil {
				return nil
			}
			return c
		},
	),
)
