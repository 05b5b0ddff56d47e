package proxy

import (
	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/cache/redis"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/middleware"
	"github.com/aisgo/vlog-gateway/transport/upstream"
)

// Params FX 依赖
type Params struct {
	fx.In
	Config   Config
	Upstream upstream.Config
	Doer     upstream.Doer
	Logger   *logger.Logger
}

// RouteParams 路由注册依赖
type RouteParams struct {
	fx.In
	App     *fiber.App
	Handler *Handler
	Redis   *redis.Client `optional:"true"`
	Logger  *logger.Logger
}

// Module FX 模块
var Module = fx.Module("proxy",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

// NewHandler FX 构造函数
func NewHandler(p Params) *Handler {
	return New(p.Config, p.Upstream, p.Doer, p.Logger)
}

// RegisterRoutes 挂载代理路由；启用限流时 redis 可用则共享计数
func RegisterRoutes(p RouteParams) error {
	cfg := p.Handler.cfg
	var mws []fiber.Handler

	if cfg.RateLimit.Enabled {
		var rdb *goredis.Client
		if p.Redis != nil {
			rdb = p.Redis.Raw()
		}
		lim, err := middleware.NewRateLimiter(cfg.RateLimit, rdb)
		if err != nil {
			return err
		}
		mws = append(mws, middleware.RateLimitMiddleware(lim, nil))
	}

	p.Handler.Register(p.App, mws...)
	p.Logger.Info("Proxy routes registered",
		zap.String("prefix", cfg.Prefix),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("shared_counter", p.Redis != nil),
	)
	return nil
}
