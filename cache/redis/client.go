package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aisgo/vlog-gateway/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Redis Client - 网关共享状态
 * ========================================================================
 * 职责: 验证码存储、多实例限流计数、就绪探针
 * 技术: go-redis/v9
 * 说明: Enabled=false 时不建立连接，NewClient 返回 nil，调用方退回内存实现
 * ======================================================================== */

// Config Redis 配置
type Config struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	Password     string        `mapstructure:"password" yaml:"password"`
	DB           int           `mapstructure:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// Addr host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Clienter 网关用到的 Redis 操作
type Clienter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Client Redis 客户端封装
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

type ClientParams struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger
}

// NewClient 创建 Redis 客户端（FX 构造函数），未启用时返回 nil
func NewClient(p ClientParams) *Client {
	if !p.Config.Enabled {
		p.Logger.Info("Redis disabled, using in-memory stores")
		return nil
	}

	client := New(p.Config, p.Logger)
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx); err != nil {
				p.Logger.Error("Redis connection failed", zap.Error(err))
				return err
			}
			p.Logger.Info("Redis connected", zap.String("addr", p.Config.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("Closing Redis connection")
			return client.Close()
		},
	})
	return client
}

// New 创建客户端，不做连接检查
func New(cfg Config, log *logger.Logger) *Client {
	return Wrap(redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	}), log)
}

// Wrap 包装已有的 go-redis 客户端
func Wrap(rdb *redis.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{rdb: rdb, log: log}
}

// Raw 返回底层 Redis 客户端（限流存储需要）
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// Close 关闭连接池
func (c *Client) Close() error {
	return c.rdb.Close()
}

/* ========================================================================
 * 键值操作
 * ======================================================================== */

// Get 获取值，不存在时返回 redis.Nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set 设置值
func (c *Client) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// GetDel 原子地读取并删除，不存在时返回 redis.Nil
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	return c.rdb.GetDel(ctx, key).Result()
}

// Del 删除
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Exists 存在的 key 数量
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Exists(ctx, keys...).Result()
}

// IsNil 是否为 key 不存在
func IsNil(err error) bool {
	return err == redis.Nil
}

/* ========================================================================
 * 健康检查
 * ======================================================================== */

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
