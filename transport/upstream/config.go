package upstream

import (
	"strings"
	"time"
)

/* ========================================================================
 * Upstream Config - 上游连接池配置
 * ======================================================================== */

const (
	DefaultBaseURL          = "https://66log.com/api/json/v3"
	DefaultResourceRoot     = "/videos"
	DefaultConnectTimeout   = 10 * time.Second
	DefaultAcquireTimeout   = 3 * time.Second
	DefaultResponseTimeout  = 60 * time.Second
	DefaultMaxConnsTotal    = 100
	DefaultMaxConnsPerRoute = 20
	DefaultUserAgent        = "vlog-gateway"
)

// Config 上游 HTTP 客户端配置
type Config struct {
	BaseURL      string `mapstructure:"base_url" validate:"required,url" error_msg:"required:upstream.base_url 必填|url:upstream.base_url 必须是合法 URL"`
	ResourceRoot string `mapstructure:"resource_root"`

	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" validate:"gte=0"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout" validate:"gte=0"`

	// MaxConnsTotal 所有上游主机共享的连接上限
	MaxConnsTotal int `mapstructure:"max_conns_total" validate:"gte=0"`
	// MaxConnsPerRoute 单个主机的连接上限
	MaxConnsPerRoute int `mapstructure:"max_conns_per_route" validate:"gte=0"`

	UserAgent string        `mapstructure:"user_agent"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig 熔断器配置，默认关闭
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// WithDefaults 填充零值字段
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ResourceRoot == "" {
		c.ResourceRoot = DefaultResourceRoot
	}
	if !strings.HasPrefix(c.ResourceRoot, "/") {
		c.ResourceRoot = "/" + c.ResourceRoot
	}
	c.ResourceRoot = strings.TrimRight(c.ResourceRoot, "/")
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.MaxConnsTotal <= 0 {
		c.MaxConnsTotal = DefaultMaxConnsTotal
	}
	if c.MaxConnsPerRoute <= 0 {
		c.MaxConnsPerRoute = DefaultMaxConnsPerRoute
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	b := &c.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.Interval <= 0 {
		b.Interval = time.Minute
	}
	if b.Timeout <= 0 {
		b.Timeout = 30 * time.Second
	}
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}
	return c
}

// ResourceURL 资源根地址，例如 https://host/api/json/v3/videos
func (c Config) ResourceURL() string {
	return c.BaseURL + c.ResourceRoot
}
