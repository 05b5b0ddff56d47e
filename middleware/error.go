package middleware

import (
	"github.com/aisgo/vlog-gateway/errors"
	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/response"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// NewErrorHandler returns a Fiber ErrorHandler with unified logging and response formatting.
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		if log != nil {
			log.WithContext(c.Context()).Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("code", int(errors.Code(err))),
				zap.Error(err),
			)
		}
		return response.Error(c, err)
	}
}
