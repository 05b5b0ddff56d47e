package upstream

import (
	"context"
	stderrors "errors"
	"net"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
)

/* ========================================================================
 * Upstream Transport - 上游连接池
 * ========================================================================
 * 职责: 所有出站请求的唯一通道
 * 技术: fasthttp.Client + x/sync/semaphore + gobreaker（可选）
 * 资源模型:
 *   - 单主机连接上限: fasthttp MaxConnsPerHost，等待上限 MaxConnWaitTimeout
 *   - 全局连接上限: semaphore，获取超时与单主机相同
 *   - 两种获取超时都映射为可重试的 ErrCodePoolExhausted
 *   - 单次请求受 ResponseTimeout 约束，超时映射为 ErrCodeTimeout
 * ======================================================================== */

// Doer 执行一次上游 HTTP 交换。
// 返回 nil 表示拿到了 HTTP 响应（任意状态码），状态码由调用方解释。
type Doer interface {
	Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error
}

const breakerName = "upstream"

// errServerStatus 仅用于让熔断器把 5xx 计为失败，不会返回给调用方
var errServerStatus = stderrors.New("upstream server error status")

// Transport 上游连接池
type Transport struct {
	cfg     Config
	client  *fasthttp.Client
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     *logger.Logger
}

// Params FX 依赖
type Params struct {
	fx.In
	Lc     fx.Lifecycle `optional:"true"`
	Config Config
	Logger *logger.Logger
}

// Module FX 模块，提供 *Transport 和 Doer
var Module = fx.Module("upstream",
	fx.Provide(
		NewTransport,
		func(t *Transport) Doer { return t },
	),
)

// NewTransport 创建上游连接池
func NewTransport(p Params) *Transport {
	t := New(p.Config, p.Logger)
	if p.Lc != nil {
		p.Lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				t.log.Info("Closing upstream idle connections")
				t.client.CloseIdleConnections()
				return nil
			},
		})
	}
	return t
}

// New 创建上游连接池（不依赖 FX）
func New(cfg Config, log *logger.Logger) *Transport {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	connectTimeout := cfg.ConnectTimeout
	client := &fasthttp.Client{
		Name:               cfg.UserAgent,
		MaxConnsPerHost:    cfg.MaxConnsPerRoute,
		MaxConnWaitTimeout: cfg.AcquireTimeout,
		ReadTimeout:        cfg.ResponseTimeout,
		WriteTimeout:       cfg.ResponseTimeout,
		// 透传代理需要原样保留路径
		DisablePathNormalizing: true,
		Dial: func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, connectTimeout)
		},
	}

	t := &Transport{
		cfg:    cfg,
		client: client,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConnsTotal)),
		log:    log,
	}
	if cfg.Breaker.Enabled {
		t.breaker = newBreaker(cfg.Breaker, log)
	}

	log.Info("Upstream transport initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_conns_total", cfg.MaxConnsTotal),
		zap.Int("max_conns_per_route", cfg.MaxConnsPerRoute),
		zap.Duration("acquire_timeout", cfg.AcquireTimeout),
		zap.Duration("response_timeout", cfg.ResponseTimeout),
		zap.Bool("breaker", cfg.Breaker.Enabled),
	)
	return t
}

// Config 返回生效配置（已填充默认值）
func (t *Transport) Config() Config {
	return t.cfg
}

// Do 执行一次上游交换
func (t *Transport) Do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	host := string(req.URI().Host())
	method := string(req.Header.Method())
	start := time.Now()

	err := t.do(ctx, req, resp)

	metrics.UpstreamRequestDuration.WithLabelValues(host, method).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequestTotal.WithLabelValues(host, method, outcome(err, resp)).Inc()
	return err
}

func (t *Transport) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, t.cfg.AcquireTimeout)
	err := t.sem.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return contextError(ctxErr)
		}
		return errors.Wrap(errors.ErrCodePoolExhausted, "acquire upstream connection slot", err)
	}
	defer t.sem.Release(1)

	metrics.UpstreamInflight.Inc()
	defer metrics.UpstreamInflight.Dec()

	deadline := time.Now().Add(t.cfg.ResponseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if t.breaker == nil {
		return t.exchange(req, resp, deadline)
	}

	_, err = t.breaker.Execute(func() (struct{}, error) {
		if err := t.exchange(req, resp, deadline); err != nil {
			return struct{}{}, err
		}
		if resp.StatusCode() >= fasthttp.StatusInternalServerError {
			return struct{}{}, errServerStatus
		}
		return struct{}{}, nil
	})
	switch {
	case err == nil, stderrors.Is(err, errServerStatus):
		return nil
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.Wrap(errors.ErrCodeCircuitOpen, "upstream circuit open", err)
	default:
		return err
	}
}

func (t *Transport) exchange(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error {
	err := t.client.DoDeadline(req, resp, deadline)
	if err == nil {
		return nil
	}

	switch {
	case stderrors.Is(err, fasthttp.ErrNoFreeConns):
		return errors.Wrap(errors.ErrCodePoolExhausted, "no free upstream connections", err)
	case stderrors.Is(err, fasthttp.ErrTimeout), stderrors.Is(err, fasthttp.ErrDialTimeout):
		return errors.Wrap(errors.ErrCodeTimeout, "upstream timeout", err)
	default:
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return errors.Wrap(errors.ErrCodeTimeout, "upstream timeout", err)
		}
		return errors.Wrap(errors.ErrCodeTransport, "upstream request failed", err)
	}
}

func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, "request deadline exceeded", err)
	}
	return errors.Wrap(errors.ErrCodeCanceled, "request canceled", err)
}

func outcome(err error, resp *fasthttp.Response) string {
	if err == nil {
		switch status := resp.StatusCode(); {
		case status >= 500:
			return "status_5xx"
		case status >= 400:
			return "status_4xx"
		default:
			return "ok"
		}
	}
	switch errors.Code(err) {
	case errors.ErrCodePoolExhausted:
		return "pool_exhausted"
	case errors.ErrCodeTimeout:
		return "timeout"
	case errors.ErrCodeCircuitOpen:
		return "circuit_open"
	case errors.ErrCodeCanceled:
		return "canceled"
	default:
		return "transport"
	}
}

/* ========================================================================
 * Circuit Breaker
 * ======================================================================== */

func newBreaker(cfg BreakerConfig, log *logger.Logger) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	threshold := cfg.FailureThreshold
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Upstream circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
