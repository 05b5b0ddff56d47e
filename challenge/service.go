package challenge

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/cache/redis"
	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
)

/* ========================================================================
 * Challenge Service - 注册验证码
 * ========================================================================
 * 职责: 签发短验证码并做一次性、大小写不敏感的校验
 * 说明: 只负责码的生成与存取，图片渲染由调用方处理
 * ======================================================================== */

// Alphabet 去掉了易混淆的 I、O、0、1
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultLength        = 4
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config 验证码配置
type Config struct {
	Length        int           `mapstructure:"length" yaml:"length" validate:"omitempty,min=1,max=16"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Store         string        `mapstructure:"store" yaml:"store" validate:"omitempty,oneof=memory redis"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// WithDefaults 零值字段使用默认值
func (c Config) WithDefaults() Config {
	if c.Length <= 0 {
		c.Length = DefaultLength
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Service 验证码服务
type Service struct {
	cfg   Config
	store Store
	log   *logger.Logger
}

// New 创建服务
func New(cfg Config, store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{cfg: cfg.WithDefaults(), store: store, log: log}
}

// Issue 签发验证码，返回 id 与明文码
func (s *Service) Issue(ctx context.Context) (string, string, error) {
	code, err := randomCode(s.cfg.Length)
	if err != nil {
		metrics.ChallengeTotal.WithLabelValues("issue", "error").Inc()
		return "", "", errors.Wrap(errors.ErrCodeInternal, "generate challenge code", err)
	}
	id := uuid.NewString()
	if err := s.store.Put(ctx, id, code, s.cfg.TTL); err != nil {
		metrics.ChallengeTotal.WithLabelValues("issue", "error").Inc()
		return "", "", errors.Wrap(errors.ErrCodeUnavailable, "store challenge", err)
	}
	metrics.ChallengeTotal.WithLabelValues("issue", "ok").Inc()
	return id, code, nil
}

// Verify 校验答案。无论对错，该 id 都会失效。
func (s *Service) Verify(ctx context.Context, id, answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	if id == "" || answer == "" {
		metrics.ChallengeTotal.WithLabelValues("verify", "rejected").Inc()
		return false, nil
	}

	code, ok, err := s.store.Take(ctx, id)
	if err != nil {
		metrics.ChallengeTotal.WithLabelValues("verify", "error").Inc()
		return false, errors.Wrap(errors.ErrCodeUnavailable, "load challenge", err)
	}
	if !ok || !strings.EqualFold(code, answer) {
		metrics.ChallengeTotal.WithLabelValues("verify", "rejected").Inc()
		s.log.WithContext(ctx).Debug("Challenge rejected", zap.String("id", id), zap.Bool("found", ok))
		return false, nil
	}
	metrics.ChallengeTotal.WithLabelValues("verify", "ok").Inc()
	return true, nil
}

func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var sb strings.Builder
	sb.Grow(n)
	for range n {
		i, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(Alphabet[i.Int64()])
	}
	return sb.String(), nil
}

/* ========================================================================
 * FX
 * ======================================================================== */

// Params FX 依赖
type Params struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Redis  redis.Clienter `optional:"true"`
	Logger *logger.Logger
}

// Module FX 模块
var Module = fx.Module("challenge",
	fx.Provide(NewService),
)

// NewService 按配置选择存储；内存存储会启动后台清理
func NewService(p Params) (*Service, error) {
	cfg := p.Config.WithDefaults()

	if cfg.Store == StoreRedis {
		if p.Redis == nil {
			return nil, errors.New(errors.ErrCodeInvalidArgument, "challenge.store=redis requires redis.enabled=true")
		}
		return New(cfg, NewRedisStore(p.Redis), p.Logger), nil
	}

	mem := NewMemoryStore(nil)
	stop := make(chan struct{})
	done := make(chan struct{})
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.SweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if n := mem.Sweep(); n > 0 {
							p.Logger.Debug("Swept expired challenges", zap.Int("count", n))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
	return New(cfg, mem, p.Logger), nil
}
