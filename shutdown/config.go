package shutdown

import "time"

/* ========================================================================
 * Shutdown Config - 优雅关停配置
 * ======================================================================== */

// 钩子优先级，数值越小越先执行
const (
	// PriorityHigh 停止接收入站请求
	PriorityHigh = 0
	// PriorityNormal 等待在途请求、排空上游调用
	PriorityNormal = 50
	// PriorityLow 关闭连接池、Redis 等底层资源
	PriorityLow = 100
)

// Config 优雅关停配置
type Config struct {
	// Timeout 整体关停超时，超时后跳过剩余钩子
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// HookTimeout 单个钩子的超时，0 表示只受 Timeout 约束
	HookTimeout time.Duration `mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// DrainDelay 标记 draining 后、执行钩子前的等待时间，计入 Timeout
	DrainDelay time.Duration `mapstructure:"drain_delay" yaml:"drain_delay"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		HookTimeout: 10 * time.Second,
	}
}
