package http

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"

	"github.com/aisgo/vlog-gateway/logger"
	"github.com/aisgo/vlog-gateway/middleware"
)

// Module FX 模块，提供 *fiber.App 与统一的 ErrorHandler
var Module = fx.Module("http",
	fx.Provide(
		NewHTTPServer,
		func(log *logger.Logger) fiber.ErrorHandler { return middleware.NewErrorHandler(log) },
	),
)
