package conf

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/aisgo/vlog-gateway/cache/redis"
	"github.com/aisgo/vlog-gateway/challenge"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/proxy"
	"github.com/aisgo/vlog-gateway/retry"
	"github.com/aisgo/vlog-gateway/shutdown"
	"github.com/aisgo/vlog-gateway/transport/http"
	"github.com/aisgo/vlog-gateway/transport/upstream"
	"github.com/aisgo/vlog-gateway/validator"
)

/* ========================================================================
 * Gateway Config - 网关配置聚合
 * ======================================================================== */

// AppConfig 网关全部配置
type AppConfig struct {
	Server    http.Config      `mapstructure:"server" yaml:"server"`
	Logger    logger.Config    `mapstructure:"logger" yaml:"logger"`
	Upstream  upstream.Config  `mapstructure:"upstream" yaml:"upstream"`
	Proxy     proxy.Config     `mapstructure:"proxy" yaml:"proxy"`
	Retry     retry.Config     `mapstructure:"retry" yaml:"retry"`
	Redis     redis.Config     `mapstructure:"redis" yaml:"redis"`
	Challenge challenge.Config `mapstructure:"challenge" yaml:"challenge"`
	Shutdown  shutdown.Config  `mapstructure:"shutdown" yaml:"shutdown"`
}

// Defaults 内置默认值，键为 viper 路径
func Defaults() map[string]any {
	return map[string]any{
		"server.port":     8080,
		"server.app_name": "vlog-gateway",

		"logger.level":  "info",
		"logger.format": "json",
		"logger.output": "stdout",

		"upstream.base_url":            upstream.DefaultBaseURL,
		"upstream.resource_root":       upstream.DefaultResourceRoot,
		"upstream.connect_timeout":     upstream.DefaultConnectTimeout,
		"upstream.acquire_timeout":     upstream.DefaultAcquireTimeout,
		"upstream.response_timeout":    upstream.DefaultResponseTimeout,
		"upstream.max_conns_total":     upstream.DefaultMaxConnsTotal,
		"upstream.max_conns_per_route": upstream.DefaultMaxConnsPerRoute,
		"upstream.user_agent":          upstream.DefaultUserAgent,
		"upstream.breaker.enabled":     false,

		"proxy.prefix":             proxy.DefaultPrefix,
		"proxy.file_prefix":        proxy.DefaultFilePrefix,
		"proxy.rate_limit.enabled": true,
		"proxy.rate_limit.limit":   200,
		"proxy.rate_limit.period":  "1s",

		"retry.max_retries": retry.DefaultMaxRetries,
		"retry.base_delay":  retry.DefaultBaseDelay,

		"redis.enabled": false,
		"redis.host":    "127.0.0.1",
		"redis.port":    6379,

		"challenge.length": challenge.DefaultLength,
		"challenge.ttl":    challenge.DefaultTTL,
		"challenge.store":  challenge.StoreMemory,

		"shutdown.timeout":      "30s",
		"shutdown.hook_timeout": "10s",
		"shutdown.drain_delay":  "0s",
	}
}

// ApplyDefaults 规范化各子配置（填充零值、修剪路径）
func (c *AppConfig) ApplyDefaults() {
	c.Server = c.Server.WithDefaults()
	c.Upstream = c.Upstream.WithDefaults()
	c.Proxy = c.Proxy.WithDefaults()
	c.Retry = c.Retry.WithDefaults()
	c.Challenge = c.Challenge.WithDefaults()
	if c.Shutdown.Timeout <= 0 {
		c.Shutdown = *shutdown.DefaultConfig()
	}
}

// Validate 结构校验 + 跨字段约束
func (c *AppConfig) Validate() error {
	if err := validator.New().Validate(c); err != nil {
		return err
	}
	if err := logger.ValidateConfig(c.Logger); err != nil {
		return err
	}
	if c.Challenge.Store == challenge.StoreRedis && !c.Redis.Enabled {
		return fmt.Errorf("challenge.store=redis requires redis.enabled=true")
	}
	if c.Upstream.MaxConnsPerRoute > c.Upstream.MaxConnsTotal {
		return fmt.Errorf("upstream.max_conns_per_route (%d) exceeds max_conns_total (%d)",
			c.Upstream.MaxConnsPerRoute, c.Upstream.MaxConnsTotal)
	}
	return nil
}

// LoadApp 加载、规范化并校验网关配置
func LoadApp(loader Loader) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Module 把 AppConfig 拆成各模块需要的子配置
func Module(cfg *AppConfig) fx.Option {
	return fx.Module("conf",
		fx.Supply(cfg),
		fx.Provide(
			func(c *AppConfig) http.Config { return c.Server },
			func(c *AppConfig) logger.Config { return c.Logger },
			func(c *AppConfig) upstream.Config { return c.Upstream },
			func(c *AppConfig) proxy.Config { return c.Proxy },
			func(c *AppConfig) retry.Config { return c.Retry },
			func(c *AppConfig) redis.Config { return c.Redis },
			func(c *AppConfig) challenge.Config { return c.Challenge },
			func(c *AppConfig) *shutdown.Config { return &c.Shutdown },
		),
	)
}
