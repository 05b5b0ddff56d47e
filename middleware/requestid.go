package middleware

import (
	"strings"

	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/utils/id-generator/ulid"
	"github.com/gofiber/fiber/v3"
)

const (
	// HeaderRequestID 请求 ID 头
	HeaderRequestID = "X-Request-ID"

	requestIDLocal = "request_id"
	maxRequestID   = 128
)

// RequestID 复用上游传入的 X-Request-ID，否则生成 ULID。
// ID 写入响应头、Locals，并挂到 c.Context() 上供 logger.WithContext 使用。
func RequestID() fiber.Handler {
	return func(c fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderRequestID))
		if id == "" || len(id) > maxRequestID {
			id = ulid.GenerateString()
		}

		c.Locals(requestIDLocal, id)
		c.Set(HeaderRequestID, id)
		c.SetContext(logger.ContextWithRequestID(c.Context(), id))
		return c.Next()
	}
}

// GetRequestID 读取当前请求 ID
func GetRequestID(c fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok {
		return id
	}
	return ""
}
