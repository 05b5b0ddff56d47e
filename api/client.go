package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/envelope"
	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
	"github.com/aisgo/vlog-gateway/transport/upstream"
	"github.com/aisgo/vlog-gateway/validator"
)

/* ========================================================================
 * Typed API Client - 类型化上游客户端
 * ========================================================================
 * 职责: 每个领域操作一个方法：拼 URL -> 一次请求 -> 解信封 -> 判定成功
 * 约定:
 *   - 所有公开方法都是全函数：失败返回零值（空切片 / nil / false），不返回 error
 *   - token 只作为查询参数 token=... 追加在最后，从不放在 Header
 *   - 不做内部重试，重试交给 retry 包
 * ======================================================================== */

// Client 上游 JSON API 客户端
type Client struct {
	doer      upstream.Doer
	videos    string // <base>/videos
	users     string // <base>/users
	log       *logger.Logger
	validator *validator.Validator
}

// Params FX 依赖
type Params struct {
	fx.In
	Doer   upstream.Doer
	Config upstream.Config
	Logger *logger.Logger
}

// Module FX 模块
var Module = fx.Module("api",
	fx.Provide(NewClient),
)

// NewClient 创建客户端（FX 构造函数）
func NewClient(p Params) *Client {
	return New(p.Doer, p.Config, p.Logger)
}

// New 创建客户端
func New(doer upstream.Doer, cfg upstream.Config, log *logger.Logger) *Client {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		doer:      doer,
		videos:    cfg.ResourceURL(),
		users:     cfg.BaseURL + "/users",
		log:       log,
		validator: validator.New(),
	}
}

/* ========================================================================
 * URL 构造
 * ======================================================================== */

// params 保序的查询参数
type params struct {
	pairs []string
}

func (p *params) add(key, value string) *params {
	p.pairs = append(p.pairs, url.QueryEscape(key)+"="+url.QueryEscape(value))
	return p
}

// token 非空时追加 token 参数
func (p *params) token(token string) *params {
	if token != "" {
		p.add("token", token)
	}
	return p
}

func (p *params) encode() string {
	return strings.Join(p.pairs, "&")
}

// build 拼接 base + 路径段 + 查询串，路径段逐个转义
func build(base string, q *params, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(base)
	for _, s := range segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(s))
	}
	if q != nil && len(q.pairs) > 0 {
		sb.WriteByte('?')
		sb.WriteString(q.encode())
	}
	return sb.String()
}

/* ========================================================================
 * 请求执行
 * ======================================================================== */

// call 一次上游调用
type call struct {
	op          string
	method      string
	url         string
	token       string // 仅用于日志脱敏
	contentType string
	body        []byte
}

// redactedURL 日志中隐藏 token
func (c call) redactedURL() string {
	if c.token == "" {
		return c.url
	}
	u := strings.ReplaceAll(c.url, url.QueryEscape(c.token), "***")
	return strings.ReplaceAll(u, url.PathEscape(c.token), "***")
}

// exchange 执行请求并返回 2xx 响应体
func (c *Client) exchange(ctx context.Context, cl call) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(cl.url)
	req.Header.SetMethod(cl.method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if cl.body != nil {
		req.Header.SetContentType(cl.contentType)
		req.SetBodyRaw(cl.body)
	}

	if err := c.doer.Do(ctx, req, resp); err != nil {
		return nil, err
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, errors.UpstreamStatus(status, cl.redactedURL())
	}

	body, err := resp.BodyUncompressed()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, "decompress response body", err)
	}
	// resp 会被回收，必须拷贝
	return append([]byte(nil), body...), nil
}

func fetch[T any](ctx context.Context, c *Client, cl call) (*envelope.Envelope[T], error) {
	body, err := c.exchange(ctx, cl)
	if err != nil {
		return nil, err
	}
	return envelope.Decode[T](body)
}

func (c *Client) succeeded(op string) {
	metrics.ClientCallTotal.WithLabelValues(op, "ok").Inc()
}

// failed 记录失败，调用方随后返回零值
func (c *Client) failed(ctx context.Context, cl call, err error) {
	metrics.ClientCallTotal.WithLabelValues(cl.op, "empty").Inc()
	c.log.WithContext(ctx).Warn("Upstream call failed, returning empty result",
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("url", cl.redactedURL()),
		zap.Int("code", int(errors.Code(err))),
		zap.Error(err),
	)
}

// readList 读接口，列表结果；失败返回空切片，从不返回 nil
func readList[T any](ctx context.Context, c *Client, cl call) []T {
	env, err := fetch[[]T](ctx, c, cl)
	if err == nil {
		var data []T
		if data, err = env.Payload(); err == nil {
			c.succeeded(cl.op)
			if data == nil {
				return []T{}
			}
			return data
		}
	}
	c.failed(ctx, cl, err)
	return []T{}
}

// readOne 读接口，单实体结果；失败返回 nil
func readOne[T any](ctx context.Context, c *Client, cl call) *T {
	env, err := fetch[T](ctx, c, cl)
	if err == nil {
		if err = env.Classify(envelope.Read, true); err == nil {
			c.succeeded(cl.op)
			return env.Data
		}
	}
	c.failed(ctx, cl, err)
	return nil
}

func isTrue(v *bool) bool {
	return v != nil && *v
}

// mutateOne 写接口，成功码额外接受 "200"，且必须返回实体
func mutateOne[T any](ctx context.Context, c *Client, cl call) *T {
	env, err := fetch[T](ctx, c, cl)
	if err == nil {
		if err = env.Classify(envelope.Mutation, true); err == nil {
			c.succeeded(cl.op)
			return env.Data
		}
	}
	c.failed(ctx, cl, err)
	return nil
}

// mutateAck 写接口，只看成功码
func mutateAck(ctx context.Context, c *Client, cl call) bool {
	env, err := fetch[envelope.FlexString](ctx, c, cl)
	if err == nil {
		if err = env.Classify(envelope.Mutation, false); err == nil {
			c.succeeded(cl.op)
			return true
		}
	}
	c.failed(ctx, cl, err)
	return false
}

// invalid 入参校验失败，不发起请求
func (c *Client) invalid(ctx context.Context, op string, err error) {
	metrics.ClientCallTotal.WithLabelValues(op, "empty").Inc()
	c.log.WithContext(ctx).Debug("Rejected invalid input", zap.String("op", op), zap.Error(err))
}
