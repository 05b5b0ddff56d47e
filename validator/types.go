package validator

import (
	"strings"
)

const (
	// tagCustom 自定义错误消息标签名
	tagCustom = "error_msg"
	// ruleSeparator 多条规则之间的分隔符
	ruleSeparator = "|"
	// keyValueSep 规则名与消息之间的分隔符
	keyValueSep = ":"
)

// ValidationError 按字段分组的校验错误，字段按结构体声明顺序排列
//
//	type RegisterRequest struct {
//	    Username string `form:"username" validate:"required,alphanum" error_msg:"required:用户名必填|alphanum:用户名只能包含字母和数字"`
//	}
type ValidationError struct {
	Errors map[string][]string // 字段标签 -> 错误消息
	order  []string
}

// Error 实现 error 接口，输出顺序稳定
func (v ValidationError) Error() string {
	parts := make([]string, 0, len(v.order))
	for _, field := range v.order {
		parts = append(parts, field+": "+strings.Join(v.Errors[field], ", "))
	}
	return strings.Join(parts, "; ")
}

// First 第一个字段的第一条消息，适合直接返回给终端用户
func (v ValidationError) First() string {
	if len(v.order) == 0 {
		return ""
	}
	return v.Errors[v.order[0]][0]
}

// HasErrors 是否存在错误
func (v ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add 添加字段错误
func (v *ValidationError) Add(field, message string) {
	if v.Errors == nil {
		v.Errors = make(map[string][]string)
	}
	if _, ok := v.Errors[field]; !ok {
		v.order = append(v.order, field)
	}
	v.Errors[field] = append(v.Errors[field], message)
}

// Get 获取字段错误消息
func (v *ValidationError) Get(field string) []string {
	if v.Errors == nil {
		return nil
	}
	return v.Errors[field]
}
