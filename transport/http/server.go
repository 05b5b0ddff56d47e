package http

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/cache/redis"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
	"github.com/aisgo/vlog-gateway/middleware"
	"github.com/aisgo/vlog-gateway/shutdown"
)

/* ========================================================================
 * HTTP Server - 网关入站服务
 * ========================================================================
 * 职责: 创建 *fiber.App，挂载公共中间件与探针，随 fx 生命周期启停
 * 中间件顺序: recover -> request id -> 访问指标 -> 业务路由
 * 说明: 代理与账号路由由各自模块通过 fx.Invoke 挂载
 * ======================================================================== */

const (
	defaultAppName            = "vlog-gateway"
	defaultReadTimeout        = 30 * time.Second
	defaultWriteTimeout       = 60 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultHealthCheckTimeout = 2 * time.Second
)

// Config 入站服务配置
type Config struct {
	Port               int           `mapstructure:"port" yaml:"port"`
	Host               string        `mapstructure:"host" yaml:"host"`
	AppName            string        `mapstructure:"app_name" yaml:"app_name"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout" yaml:"health_check_timeout"`

	// BodyLimit 请求体上限（字节），0 使用 fiber 默认的 4MB；透传 POST 表单受此限制
	BodyLimit int `mapstructure:"body_limit" yaml:"body_limit"`

	// EnableRecover 为 nil 时启用；测试环境可关掉以暴露 panic
	EnableRecover *bool `mapstructure:"enable_recover" yaml:"enable_recover"`

	Listen ListenOptions `mapstructure:"listen" yaml:"listen"`
}

// WithDefaults 填充零值
func (c Config) WithDefaults() Config {
	if c.AppName == "" {
		c.AppName = defaultAppName
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = defaultHealthCheckTimeout
	}
	if c.Listen.Network == "" {
		c.Listen.Network = "tcp4"
	}
	return c
}

// Addr 监听地址
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) recoverEnabled() bool {
	return c.EnableRecover == nil || *c.EnableRecover
}

// AppConfigCustomizer 调整 fiber.Config，例如替换 JSON 编解码器
type AppConfigCustomizer func(*fiber.Config)

type ServerParams struct {
	fx.In

	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger

	// 未启用 Redis 时为 nil，就绪探针跳过该项
	Redis *redis.Client `optional:"true"`
	// 关停开始后 /readyz 返回 503
	Shutdown *shutdown.Manager `optional:"true"`

	ErrorHandler        fiber.ErrorHandler  `optional:"true"`
	AppConfigCustomizer AppConfigCustomizer `optional:"true"`
}

// NewHTTPServer 创建入站服务并注册生命周期
func NewHTTPServer(p ServerParams) *fiber.App {
	cfg := p.Config.WithDefaults()

	appConfig := fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BodyLimit:    cfg.BodyLimit,
	}
	if p.AppConfigCustomizer != nil {
		p.AppConfigCustomizer(&appConfig)
	}
	if p.ErrorHandler != nil {
		appConfig.ErrorHandler = p.ErrorHandler
	}
	app := fiber.New(appConfig)

	if cfg.recoverEnabled() {
		app.Use(recoverer.New(recoverer.Config{
			EnableStackTrace: true,
			StackTraceHandler: func(c fiber.Ctx, e any) {
				p.Logger.WithContext(c.Context()).Error("Panic recovered",
					zap.Any("error", e),
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.String("ip", middleware.ClientIP(c)),
				)
			},
		}))
	}
	app.Use(middleware.RequestID())
	app.Use(metrics.AccessMiddleware(metrics.AccessConfig{
		SkipPaths: []string{"/metrics", "/healthz", "/readyz"},
	}))

	probes := healthProbes{timeout: cfg.HealthCheckTimeout}
	if p.Redis != nil {
		probes.redis = p.Redis
	}
	if p.Shutdown != nil {
		probes.draining = p.Shutdown.Draining
	}
	registerHealthEndpoints(app, probes)
	metrics.RegisterMetricsEndpoint(app)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := cfg.Addr()
			// 先绑定端口，绑定失败时 fx 启动直接报错
			ln, err := createListener(addr, cfg.Listen)
			if err != nil {
				p.Logger.Error("Failed to bind HTTP listener", zap.String("addr", addr), zap.Error(err))
				return err
			}

			p.Logger.Info("Starting HTTP Server", zap.String("addr", ln.Addr().String()), zap.Bool("tls", cfg.Listen.TLSEnabled()))
			go func() {
				if err := app.Listener(ln, buildListenConfig(cfg.Listen)); err != nil {
					p.Logger.Error("HTTP Server stopped with error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Stopping HTTP Server")
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}
