package envelope

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

/* ========================================================================
 * Flexible Scalars - 宽松标量类型
 * ========================================================================
 * 职责: 上游会把数字编码成字符串（"17"）或把字符串编码成数字（0），
 *       这里集中处理这种不一致，调用方只看到强类型值。
 * 约定: 解析失败不报错，只标记 Valid=false，由调用方决定默认值。
 * ======================================================================== */

var nullLiteral = []byte("null")

// FlexInt 接受 number / "number" / null 的整数
type FlexInt struct {
	Value int64
	Valid bool
}

// Int 构造有效的 FlexInt
func Int(v int64) FlexInt {
	return FlexInt{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	raw, ok := scalarText(data)
	if !ok {
		return nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = FlexInt{Value: v, Valid: true}
		return nil
	}
	// "17.0" / 1.7e1；超出 int64 的值（"1e30"）视为无效
	if v, err := strconv.ParseFloat(raw, 64); err == nil && inInt64Range(v) {
		*f = FlexInt{Value: int64(v), Valid: true}
	}
	return nil
}

// inInt64Range float64(math.MaxInt64) 舍入为 2^63，因此上界用 <
func inInt64Range(v float64) bool {
	return v >= math.MinInt64 && v < math.MaxInt64
}

// MarshalJSON implements json.Marshaler.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return nullLiteral, nil
	}
	return strconv.AppendInt(nil, f.Value, 10), nil
}

// Or 返回值或默认值
func (f FlexInt) Or(def int64) int64 {
	if !f.Valid {
		return def
	}
	return f.Value
}

// FlexFloat 接受 number / "number" / null 的小数（评分等）
type FlexFloat struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat{}
	raw, ok := scalarText(data)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return nullLiteral, nil
	}
	return strconv.AppendFloat(nil, f.Value, 'f', -1, 64), nil
}

// FlexString 接受 string / number / bool，null 视为空串
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(data)
	return nil
}

// String implements fmt.Stringer.
func (s FlexString) String() string {
	return string(s)
}

// scalarText 取出 JSON 标量的文本形式，对象/数组/null/空串返回 false
func scalarText(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		return "", false
	}
	switch data[0] {
	case '{', '[':
		return "", false
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return "", false
		}
		str = strings.TrimSpace(str)
		return str, str != ""
	}
	return string(data), true
}
