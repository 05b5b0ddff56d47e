package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aisgo/vlog-gateway/response"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	defaultRateLimit  = 200
	defaultRatePeriod = time.Second
	rateLimitPrefix   = "gateway:ratelimit"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Limit   int64         `mapstructure:"limit" yaml:"limit" validate:"gte=0"`
	Period  time.Duration `mapstructure:"period" yaml:"period" validate:"gte=0"`
}

// WithDefaults 零值字段使用默认值
func (c RateLimitConfig) WithDefaults() RateLimitConfig {
	if c.Limit <= 0 {
		c.Limit = defaultRateLimit
	}
	if c.Period <= 0 {
		c.Period = defaultRatePeriod
	}
	return c
}

// RateLimitKeyFunc returns an identifier used for rate limiting.
type RateLimitKeyFunc func(fiber.Ctx) string

// NewRateLimiter 创建限流器。client 非 nil 时使用 redis 存储（多实例共享计数），否则使用内存存储。
func NewRateLimiter(cfg RateLimitConfig, client *redis.Client) (*limiter.Limiter, error) {
	cfg = cfg.WithDefaults()
	rate := limiter.Rate{Period: cfg.Period, Limit: cfg.Limit}

	if client == nil {
		return limiter.New(memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), rate), nil
	}

	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// RateLimitMiddleware applies request rate limiting. keyFn 为 nil 时按 ClientIP 限流。
func RateLimitMiddleware(lim *limiter.Limiter, keyFn RateLimitKeyFunc) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := rateLimitKey(c, keyFn)

		ctx, err := lim.Get(c.Context(), key)
		if err != nil {
			return response.ErrorWithCode(c, fiber.StatusInternalServerError, fmt.Errorf("rate limit check failed: %w", err))
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))

		if ctx.Reached {
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(max(ctx.Reset-time.Now().Unix(), 1), 10))
			return response.ErrorWithCode(c, fiber.StatusTooManyRequests, fmt.Errorf("too many requests"))
		}

		return c.Next()
	}
}

func rateLimitKey(c fiber.Ctx, fn RateLimitKeyFunc) string {
	if fn != nil {
		key := strings.TrimSpace(fn(c))
		if key != "" {
			return key
		}
	}
	return "ip:" + ClientIP(c)
}
