package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Gateway Errors - 网关错误码
 * ========================================================================
 * 职责: 错误码定义、包装、重试判定、HTTP 状态映射
 * 分段:
 *   - 1xxx 入站请求与通用错误
 *   - 2xxx 上游（后端 JSON API）错误
 * 每个错误码在 codeTable 中登记 HTTP 状态和是否值得重试，新增错误码必须同时登记
 * ======================================================================== */

// ErrorCode 网关错误码
type ErrorCode int

const (
	ErrCodeUnknown          ErrorCode = 1000
	ErrCodeInvalidArgument  ErrorCode = 1001 // 入站参数无效
	ErrCodeAlreadyExists    ErrorCode = 1003 // 用户名 / 昵称已占用
	ErrCodeUnauthenticated  ErrorCode = 1005 // 登录失败
	ErrCodeInternal         ErrorCode = 1006
	ErrCodeUnavailable      ErrorCode = 1007 // 上游无可用结果
	ErrCodeTimeout          ErrorCode = 1008
	ErrCodeCanceled         ErrorCode = 1009 // 调用方放弃了请求
	ErrCodeTransport        ErrorCode = 2001 // 连接 / 读写失败
	ErrCodeDecode           ErrorCode = 2002 // 响应结构无法解析
	ErrCodeUpstreamBusiness ErrorCode = 2003 // envelope.code 表示失败
	ErrCodePoolExhausted    ErrorCode = 2004 // 等待空闲连接超时
	ErrCodeUpstreamStatus   ErrorCode = 2005 // 上游非 2xx
	ErrCodeRetryExhausted   ErrorCode = 2006
	ErrCodeCircuitOpen      ErrorCode = 2007
)

type codeSpec struct {
	status    int
	retryable bool
}

// codeTable ErrCodeUpstreamStatus 是否重试取决于上游状态码，见 IsRetryable
var codeTable = map[ErrorCode]codeSpec{
	ErrCodeUnknown:          {status: fiber.StatusInternalServerError},
	ErrCodeInvalidArgument:  {status: fiber.StatusBadRequest},
	ErrCodeAlreadyExists:    {status: fiber.StatusConflict},
	ErrCodeUnauthenticated:  {status: fiber.StatusUnauthorized},
	ErrCodeInternal:         {status: fiber.StatusInternalServerError},
	ErrCodeUnavailable:      {status: fiber.StatusServiceUnavailable, retryable: true},
	ErrCodeTimeout:          {status: fiber.StatusGatewayTimeout, retryable: true},
	ErrCodeCanceled:         {status: 499},
	ErrCodeTransport:        {status: fiber.StatusBadGateway, retryable: true},
	ErrCodeDecode:           {status: fiber.StatusBadGateway},
	ErrCodeUpstreamBusiness: {status: fiber.StatusBadGateway},
	ErrCodePoolExhausted:    {status: fiber.StatusServiceUnavailable, retryable: true},
	ErrCodeUpstreamStatus:   {status: fiber.StatusBadGateway},
	ErrCodeRetryExhausted:   {status: fiber.StatusServiceUnavailable},
	ErrCodeCircuitOpen:      {status: fiber.StatusServiceUnavailable, retryable: true},
}

// BizError 带错误码的错误
type BizError struct {
	Code    ErrorCode
	Message string
	Cause   error

	// Status 上游 HTTP 状态码，仅 ErrCodeUpstreamStatus 使用
	Status int
}

func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is 按错误码匹配，errors.Is(err, ErrPoolExhausted) 不关心消息与 Cause
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	return ok && e.Code == t.Code
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *BizError {
	return &BizError{Code: code, Message: message}
}

func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *BizError {
	return &BizError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// UpstreamStatus 上游返回非 2xx
func UpstreamStatus(status int, url string) *BizError {
	return &BizError{
		Code:    ErrCodeUpstreamStatus,
		Message: fmt.Sprintf("upstream %s returned status %d", url, status),
		Status:  status,
	}
}

// errors.Is 的比较目标
var (
	ErrTimeout          = New(ErrCodeTimeout, "timeout")
	ErrCanceled         = New(ErrCodeCanceled, "canceled")
	ErrUnavailable      = New(ErrCodeUnavailable, "service unavailable")
	ErrTransport        = New(ErrCodeTransport, "upstream transport failure")
	ErrDecode           = New(ErrCodeDecode, "upstream response decode failure")
	ErrUpstreamBusiness = New(ErrCodeUpstreamBusiness, "upstream business failure")
	ErrPoolExhausted    = New(ErrCodePoolExhausted, "upstream connection pool exhausted")
	ErrRetryExhausted   = New(ErrCodeRetryExhausted, "retry attempts exhausted")
	ErrCircuitOpen      = New(ErrCodeCircuitOpen, "upstream circuit open")
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code 非 BizError 返回 ErrCodeUnknown
func Code(err error) ErrorCode {
	if bizErr, ok := AsBizError(err); ok {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

// AsBizError 沿错误链查找 *BizError
func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

// IsRetryable 连接池耗尽、超时、传输失败、熔断打开和上游 5xx 可重试；
// 解析失败、业务失败、调用方取消不重试
func IsRetryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	bizErr, ok := AsBizError(err)
	if !ok {
		return false
	}
	if bizErr.Code == ErrCodeUpstreamStatus {
		return bizErr.Status >= fiber.StatusInternalServerError
	}
	return codeTable[bizErr.Code].retryable
}

// HTTPStatus 错误对应的入站响应状态码
func HTTPStatus(err error) int {
	status, _ := ToHTTPResponse(err)
	return status
}

// ToHTTPResponse 转换为入站响应的状态码与 {code,msg} 体
func ToHTTPResponse(err error) (int, fiber.Map) {
	if err == nil {
		return fiber.StatusOK, fiber.Map{"code": 0, "msg": "success"}
	}

	if bizErr, ok := AsBizError(err); ok {
		status := fiber.StatusInternalServerError
		if spec, ok := codeTable[bizErr.Code]; ok {
			status = spec.status
		}
		return status, fiber.Map{"code": int(bizErr.Code), "msg": bizErr.Message}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusGatewayTimeout, fiber.Map{"code": int(ErrCodeTimeout), "msg": "timeout"}
	}
	return fiber.StatusInternalServerError, fiber.Map{"code": 500, "msg": "internal server error"}
}
