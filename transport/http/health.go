package http

import (
	"context"
	"runtime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Health Check Endpoints
 * ========================================================================
 * /healthz - 存活探针，进程能响应即 200
 * /readyz  - 就绪探针
 *   - 关停开始后返回 503 draining，负载均衡据此摘除实例
 *   - 启用 Redis 时检查连通性（验证码与限流计数依赖它）
 * ======================================================================== */

// Pinger 就绪探针依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthProbes struct {
	redis    Pinger
	draining func() bool
	timeout  time.Duration
}

func registerHealthEndpoints(app *fiber.App, probes healthProbes) {
	if probes.timeout <= 0 {
		probes.timeout = defaultHealthCheckTimeout
	}

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Get("/readyz", func(c fiber.Ctx) error {
		if probes.draining != nil && probes.draining() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "draining",
				"time":   time.Now().Format(time.RFC3339),
			})
		}

		checks := map[string]string{
			"goroutines": strconv.Itoa(runtime.NumGoroutine()),
		}
		healthy := true
		if probes.redis != nil {
			ctx, cancel := context.WithTimeout(c.Context(), probes.timeout)
			err := probes.redis.Ping(ctx)
			cancel()
			if err != nil {
				checks["redis"] = "error: " + err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status, code := "ok", fiber.StatusOK
		if !healthy {
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	})
}
