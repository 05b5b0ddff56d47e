package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/vlog-gateway/errors"
)

/* ========================================================================
 * Access Metrics - 入站请求指标中间件
 * ========================================================================
 * 职责: 记录入站请求数、延迟、并发
 * 约定:
 *   - route 标签取路由模板（/api-proxy/*），透传路径不会撑爆基数
 *   - 处理函数返回 error 时响应尚未写出，状态码按错误类型推断
 * ======================================================================== */

// AccessConfig 访问指标配置
type AccessConfig struct {
	// SkipPaths 不记录的精确路径（探针、/metrics）
	SkipPaths []string
}

// AccessMiddleware 入站访问指标
func AccessMiddleware(cfg AccessConfig) fiber.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c fiber.Ctx) error {
		if _, ok := skip[c.Path()]; ok {
			return c.Next()
		}

		HTTPInflight.Inc()
		start := time.Now()
		err := c.Next()
		HTTPInflight.Dec()

		method := c.Method()
		route := routeLabel(c)
		status := strconv.Itoa(statusOf(c, err))

		HTTPRequestTotal.WithLabelValues(method, route, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		return err
	}
}

// routeLabel 未匹配任何路由时统一归为 unmatched
func routeLabel(c fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		return r.Path
	}
	if c.Path() == "/" {
		return "/"
	}
	return "unmatched"
}

func statusOf(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	if _, ok := errors.AsBizError(err); ok {
		status, _ := errors.ToHTTPResponse(err)
		return status
	}
	return fiber.StatusInternalServerError
}
