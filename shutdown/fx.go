package shutdown

import (
	"context"

	"go.uber.org/fx"
)

/* ========================================================================
 * Shutdown FX Module
 * ========================================================================
 * 职责: 提供 Manager；*Config 由 conf 模块提供
 * ======================================================================== */

// Module FX 模块
var Module = fx.Module("shutdown",
	fx.Provide(NewManager),
)

// Stopper fx.App 的停止接口
type Stopper interface {
	Stop(ctx context.Context) error
}

// RegisterApp 把 fx 应用的停止注册为一个钩子。
// fx 的 OnStop 按注册逆序执行：HTTP 服务先停，随后上游连接池与 Redis。
func (m *Manager) RegisterApp(app Stopper) {
	m.RegisterHookWithPriority("fx-app", app.Stop, PriorityHigh)
}
