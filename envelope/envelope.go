package envelope

import (
	"github.com/goccy/go-json"

	"github.com/aisgo/vlog-gateway/errors"
)

/* ========================================================================
 * Envelope Codec - 上游响应信封
 * ========================================================================
 * 职责: 解码 {code, message, data}，按端点约定判定成功/失败
 * 约定:
 *   - 读接口: code 为 "" 或 "0"，且 data 非空
 *   - 写接口: code 额外接受 "200"（上游评论接口的历史约定，按端点保留）
 * ======================================================================== */

// Convention 成功码约定
type Convention int

const (
	// Read 读接口约定
	Read Convention = iota
	// Mutation 写接口约定
	Mutation
)

const (
	codeEmpty    = ""
	codeZero     = "0"
	codeMutation = "200"
)

// Envelope 上游统一响应结构，未知字段忽略
type Envelope[T any] struct {
	Code    FlexString `json:"code"`
	Message FlexString `json:"message"`
	Data    *T         `json:"data"`
}

// Decode 解码响应体
func Decode[T any](body []byte) (*Envelope[T], error) {
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecode, "decode envelope", err)
	}
	return &env, nil
}

// CodeOK 按约定判断 code 是否表示成功
func (e *Envelope[T]) CodeOK(conv Convention) bool {
	switch string(e.Code) {
	case codeEmpty, codeZero:
		return true
	case codeMutation:
		return conv == Mutation
	default:
		return false
	}
}

// Classify 判定本次调用是否成功。
// requireData 为 true 时 data 缺失视为失败（所有读接口及需要返回实体的写接口）。
func (e *Envelope[T]) Classify(conv Convention, requireData bool) error {
	if !e.CodeOK(conv) {
		return errors.Wrapf(errors.ErrCodeUpstreamBusiness, nil,
			"upstream code %q: %s", string(e.Code), string(e.Message))
	}
	if requireData && e.Data == nil {
		return errors.New(errors.ErrCodeUpstreamBusiness, "upstream returned no data")
	}
	return nil
}

// Payload 读接口约定下取出 data
func (e *Envelope[T]) Payload() (T, error) {
	var zero T
	if err := e.Classify(Read, true); err != nil {
		return zero, err
	}
	return *e.Data, nil
}
