package response

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/aisgo/vlog-gateway/errors"
)

/* ========================================================================
 * Response - 网关自身的 JSON 响应
 * ========================================================================
 * 职责: 网关本地生成的响应（账号接口、限流、代理传输失败）
 * 说明:
 *   - 透传代理成功时直接写上游字节，不经过这里
 *   - BizError 按错误码映射 HTTP 状态码，body.code 为网关错误码
 *   - 其余错误一律 500，body.code 与状态码相同
 * ======================================================================== */

func write(c fiber.Ctx, status, code int, msg string, data any) error {
	if status < http.StatusContinue || status > http.StatusNetworkAuthenticationRequired {
		status = http.StatusInternalServerError
	}
	if data == nil {
		data = &struct{}{}
	}
	return c.Status(status).JSON(Result{Code: code, Msg: msg, Data: data})
}

// Ok 200 {"code":200,"msg":"ok","data":{}}
func Ok(c fiber.Ctx) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", nil)
}

func OkWithData(c fiber.Ctx, data any) error {
	return write(c, http.StatusOK, http.StatusOK, "ok", data)
}

// Error 按错误类型决定状态码
func Error(c fiber.Ctx, err error) error {
	return ErrorWithCode(c, 0, err)
}

// ErrorWithCode status 为 0 或 500 时沿用错误自身的映射，否则强制使用 status（如限流的 429）
func ErrorWithCode(c fiber.Ctx, status int, err error) error {
	if err == nil {
		if status == 0 {
			return Ok(c)
		}
		return write(c, status, status, "ok", nil)
	}

	override := status != 0 && status != http.StatusInternalServerError
	if bizErr, ok := errors.AsBizError(err); ok {
		if !override {
			status = errors.HTTPStatus(bizErr)
		}
		return write(c, status, int(bizErr.Code), bizErr.Message, nil)
	}

	if status == 0 {
		status = http.StatusInternalServerError
	}
	return write(c, status, status, err.Error(), nil)
}
