package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	HeaderRealIP       = "X-Real-IP"
	HeaderForwardedFor = "X-Forwarded-For"
)

// ClientIP 解析客户端地址：X-Real-IP，其次 X-Forwarded-For 的第一跳，最后是连接对端地址。
// 头部值可被客户端伪造，只应在受信任的反向代理之后用作限流键。
func ClientIP(c fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get(HeaderRealIP)); ip != "" {
		return ip
	}
	if xff := c.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return c.IP()
}
