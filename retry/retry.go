package retry

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
)

/* ========================================================================
 * Retry & Fallback Policy - 重试与兜底策略
 * ========================================================================
 * 职责: 对一次上游操作做有限次数重试，线性退避，耗尽后返回兜底值或"无结果"
 * 状态:
 *   ATTEMPTING(n) -> SUCCESS | ATTEMPTING(n+1) | EXHAUSTED
 *   EXHAUSTED -> FALLBACK_VALUE (WithFallback) | ABSENT (Do)
 * 约定:
 *   - 返回 error 或 ok=false 都算一次失败尝试
 *   - 第 n 次失败后休眠 BaseDelay*n，最后一次失败后不休眠
 *   - 休眠期间 ctx 取消，Do 立即返回 ctx.Err()
 * ======================================================================== */

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Config 重试配置
type Config struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0"`
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"gte=0"`
}

// WithDefaults MaxRetries 为 0 时取默认值；BaseDelay 为 0 表示尝试之间不等待，
// 只有负数才回退到默认值。配置文件缺省 base_delay 时由 conf 的默认键给出 1s
func (c Config) WithDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay < 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	return c
}

// SleepFunc 可中断的休眠，ctx 结束时返回 ctx.Err()
type SleepFunc func(ctx context.Context, d time.Duration) error

// Op 一次尝试。ok=false 表示结果缺失（例如客户端返回了零值）
type Op[T any] func(ctx context.Context) (T, bool, error)

// Policy 重试策略，可被多个请求并发使用
type Policy struct {
	cfg   Config
	sleep SleepFunc
	log   *logger.Logger
}

// Option 策略选项
type Option func(*Policy)

// WithSleep 替换休眠实现（测试中注入）
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// Params FX 依赖
type Params struct {
	fx.In
	Config Config
	Logger *logger.Logger
}

// Module FX 模块
var Module = fx.Module("retry",
	fx.Provide(NewPolicy),
)

// NewPolicy 创建策略（FX 构造函数）
func NewPolicy(p Params) *Policy {
	return New(p.Config, p.Logger)
}

// New 创建策略
func New(cfg Config, log *logger.Logger, opts ...Option) *Policy {
	if log == nil {
		log = logger.NewNop()
	}
	p := &Policy{
		cfg:   cfg.WithDefaults(),
		sleep: Sleep,
		log:   log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config 返回生效配置
func (p *Policy) Config() Config {
	return p.cfg
}

// Sleep 基于 timer 的可中断休眠
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do 最多尝试 MaxRetries 次。
// 成功返回 (v, true, nil)；全部失败返回 (zero, false, nil)；被取消返回 ctx.Err()。
func Do[T any](ctx context.Context, p *Policy, op Op[T]) (T, bool, error) {
	var zero T
	log := p.log.WithContext(ctx)

	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.RetryOutcomeTotal.WithLabelValues("canceled").Inc()
			return zero, false, err
		}

		v, ok, err := op(ctx)
		if err == nil && ok {
			metrics.RetryAttemptsTotal.WithLabelValues("success").Inc()
			metrics.RetryOutcomeTotal.WithLabelValues("success").Inc()
			return v, true, nil
		}
		metrics.RetryAttemptsTotal.WithLabelValues("failure").Inc()

		// 调用方取消不是上游故障，不再继续
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			metrics.RetryOutcomeTotal.WithLabelValues("canceled").Inc()
			return zero, false, ctx.Err()
		}

		log.Warn("Attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", p.cfg.MaxRetries),
			zap.Bool("absent", err == nil),
			zap.Error(err),
		)

		if attempt == p.cfg.MaxRetries {
			break
		}
		if err := p.sleep(ctx, p.cfg.BaseDelay*time.Duration(attempt)); err != nil {
			metrics.RetryOutcomeTotal.WithLabelValues("canceled").Inc()
			return zero, false, err
		}
	}

	metrics.RetryOutcomeTotal.WithLabelValues("absent").Inc()
	log.Error("All attempts failed", zap.Int("max_retries", p.cfg.MaxRetries))
	return zero, false, nil
}

// Require 与 Do 相同，但把"无结果"转换为 ErrRetryExhausted
func Require[T any](ctx context.Context, p *Policy, op Op[T]) (T, error) {
	v, ok, err := Do(ctx, p, op)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, errors.Wrapf(errors.ErrCodeRetryExhausted, nil, "no result after %d attempts", p.cfg.MaxRetries)
	}
	return v, nil
}

// WithFallback 重试耗尽或被取消时返回 fallback()，从不失败
func WithFallback[T any](ctx context.Context, p *Policy, op Op[T], fallback func() T) T {
	v, ok, err := Do(ctx, p, op)
	if err == nil && ok {
		return v
	}
	metrics.RetryOutcomeTotal.WithLabelValues("fallback").Inc()
	return fallback()
}

// FallbackOnly 只尝试一次，失败即返回 fallback()
func FallbackOnly[T any](ctx context.Context, op Op[T], fallback func() T) T {
	if ctx.Err() == nil {
		if v, ok, err := op(ctx); err == nil && ok {
			return v
		}
	}
	metrics.RetryOutcomeTotal.WithLabelValues("fallback").Inc()
	return fallback()
}

/* ========================================================================
 * 适配器: 把全函数风格的客户端方法提升为 Op
 * ======================================================================== */

// FromPointer nil 视为缺失
func FromPointer[T any](fn func(ctx context.Context) *T) Op[*T] {
	return func(ctx context.Context) (*T, bool, error) {
		v := fn(ctx)
		return v, v != nil, nil
	}
}

// FromSlice 空切片视为缺失
func FromSlice[T any](fn func(ctx context.Context) []T) Op[[]T] {
	return func(ctx context.Context) ([]T, bool, error) {
		v := fn(ctx)
		return v, len(v) > 0, nil
	}
}

// FromBool false 视为缺失
func FromBool(fn func(ctx context.Context) bool) Op[bool] {
	return func(ctx context.Context) (bool, bool, error) {
		v := fn(ctx)
		return v, v, nil
	}
}
