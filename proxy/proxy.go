package proxy

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/metrics"
	"github.com/aisgo/vlog-gateway/middleware"
	"github.com/aisgo/vlog-gateway/response"
	"github.com/aisgo/vlog-gateway/transport/upstream"
)

/* ========================================================================
 * Passthrough Proxy - 透传代理
 * ========================================================================
 * 职责: 把 <prefix>/* 的 GET/POST 原样转发到上游
 * 改写:
 *   <prefix>/file/...  -> <base>/file/...
 *   <prefix>/x         -> <base><resource-root>/x
 * 约定:
 *   - 查询串原样保留，请求体与 Content-Type 原样转发
 *   - 入站请求头只转发 forwardHeaders 中的内容协商类头，重复头逐个保留
 *   - 上游 4xx/5xx 的状态码、响应头、响应体原样返回，不解析信封
 *   - 本地传输失败按错误码返回 502 / 503 / 504
 * ======================================================================== */

const (
	DefaultPrefix     = "/api-proxy"
	DefaultFilePrefix = "/file/"
)

// Config 代理配置
type Config struct {
	Prefix     string                     `mapstructure:"prefix" yaml:"prefix"`
	FilePrefix string                     `mapstructure:"file_prefix" yaml:"file_prefix"`
	RateLimit  middleware.RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// WithDefaults 零值字段使用默认值
func (c Config) WithDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		c.Prefix = "/" + c.Prefix
	}
	c.Prefix = strings.TrimRight(c.Prefix, "/")
	if c.FilePrefix == "" {
		c.FilePrefix = DefaultFilePrefix
	}
	c.RateLimit = c.RateLimit.WithDefaults()
	return c
}

// hopHeaders 逐跳头，不跨代理转发
var hopHeaders = map[string]struct{}{
	"connection":          {},
	"proxy-connection":    {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"upgrade":             {},
}

func skipHeader(key []byte) bool {
	k := strings.ToLower(string(key))
	if _, ok := hopHeaders[k]; ok {
		return true
	}
	// Host 由目标 URL 决定，Content-Length 由 fasthttp 按 body 重算
	return k == "host" || k == "content-length"
}

// forwardHeaders 转发到上游的入站请求头。Cookie、Authorization 等调用方凭据不外发
var forwardHeaders = map[string]struct{}{
	"accept":          {},
	"accept-encoding": {},
	"accept-language": {},
	"content-type":    {},
	"user-agent":      {},
	"x-request-id":    {},
}

func forwardHeader(key []byte) bool {
	_, ok := forwardHeaders[strings.ToLower(string(key))]
	return ok
}

// Handler 透传代理处理器
type Handler struct {
	cfg      Config
	base     string // <base>
	resource string // <base><resource-root>
	doer     upstream.Doer
	log      *logger.Logger
}

// New 创建处理器
func New(cfg Config, up upstream.Config, doer upstream.Doer, log *logger.Logger) *Handler {
	up = up.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		cfg:      cfg.WithDefaults(),
		base:     up.BaseURL,
		resource: up.ResourceURL(),
		doer:     doer,
		log:      log,
	}
}

// Prefix 生效的路由前缀
func (h *Handler) Prefix() string {
	return h.cfg.Prefix
}

// Rewrite 把去掉前缀后的路径改写为上游 URL，并返回目标类别（file / resource）
func (h *Handler) Rewrite(rest, rawQuery string) (string, string) {
	target, kind := h.resource+rest, "resource"
	if strings.HasPrefix(rest, h.cfg.FilePrefix) {
		target, kind = h.base+rest, "file"
	}
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target, kind
}

// Handle fiber 处理函数，GET 与 POST 共用
func (h *Handler) Handle(c fiber.Ctx) error {
	path := string(c.Request().URI().PathOriginal())
	rest := strings.TrimPrefix(path, h.cfg.Prefix)
	target, kind := h.Rewrite(rest, string(c.Request().URI().QueryString()))

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(c.Method())
	c.Request().Header.VisitAll(func(key, value []byte) {
		if forwardHeader(key) {
			req.Header.AddBytesKV(key, value)
		}
	})
	if c.Method() == fiber.MethodPost {
		// 原始字节，不做 Content-Encoding 解码
		req.SetBody(c.Request().Body())
	}

	if err := h.doer.Do(c.Context(), req, resp); err != nil {
		metrics.ProxyRequestTotal.WithLabelValues(c.Method(), kind, "error").Inc()
		h.log.WithContext(c.Context()).Warn("Proxy exchange failed",
			zap.String("method", c.Method()),
			zap.String("path", path),
			zap.String("target_kind", kind),
			zap.Error(err),
		)
		return response.Error(c, err)
	}

	status := resp.StatusCode()
	metrics.ProxyRequestTotal.WithLabelValues(c.Method(), kind, strconv.Itoa(status)).Inc()

	out := c.Response()
	out.SetStatusCode(status)
	resp.Header.VisitAll(func(key, value []byte) {
		if !skipHeader(key) {
			out.Header.AddBytesKV(key, value)
		}
	})
	out.SetBody(resp.Body())
	return nil
}

// Register 在 router 上挂载 <prefix>/* 的 GET 与 POST
func (h *Handler) Register(router fiber.Router, handlers ...fiber.Handler) {
	grp := router.Group(h.cfg.Prefix)
	for _, mw := range handlers {
		grp.Use(mw)
	}
	grp.Get("/*", h.Handle)
	grp.Post("/*", h.Handle)
}
