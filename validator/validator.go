package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

/* ========================================================================
 * Validator - 结构体校验
 * ========================================================================
 * 职责: 配置、上游表单、账号接口表单的统一校验
 * 特性:
 *   - error_msg 标签定义面向用户的消息，未定义时使用库的默认消息
 *   - 嵌套结构体递归校验，字段名按 mapstructure / form / json 标签展示
 *     （配置错误显示为 upstream.base_url，表单错误显示为 username）
 * ======================================================================== */

// Validator 结构体校验器，可并发使用
type Validator struct {
	validator     *validator.Validate
	typeCache     *typeCache
	errorMsgCache map[string]map[string]string
	mu            sync.RWMutex
}

// New 创建校验器
func New() *Validator {
	return &Validator{
		validator:     validator.New(),
		typeCache:     newTypeCache(),
		errorMsgCache: make(map[string]map[string]string),
	}
}

// Validate 校验结构体（值或指针），失败返回 *ValidationError
func (v *Validator) Validate(s any) error {
	if s == nil {
		return nil
	}

	verr := &ValidationError{}
	v.validateStruct(reflect.ValueOf(s), "", verr)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Var 用 validate 规则校验单个值
func (v *Validator) Var(value any, tag string) error {
	return v.validator.Var(value, tag)
}

func (v *Validator) validateStruct(value reflect.Value, prefix string, verr *ValidationError) {
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return
	}

	for _, fi := range v.typeCache.getFieldsInfo(value.Type()) {
		fieldValue := value.FieldByName(fi.name)
		label := fi.label
		if prefix != "" {
			label = prefix + "." + fi.label
		}

		if fi.isStruct {
			v.validateStruct(fieldValue, label, verr)
			continue
		}
		if fi.validateTag == "" {
			continue
		}

		err := v.validator.Var(fieldValue.Interface(), fi.validateTag)
		if err == nil {
			continue
		}
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			verr.Add(label, err.Error())
			continue
		}
		for _, fe := range fieldErrs {
			msg := v.errorMessage(fi.errorMsgTag, fe.Tag())
			if msg == "" {
				msg = label + " failed on '" + fe.Tag() + "'"
			}
			verr.Add(label, msg)
		}
	}
}

// errorMessage 按规则名查 error_msg，解析结果按标签原文缓存
func (v *Validator) errorMessage(errorMsgTag, rule string) string {
	if errorMsgTag == "" {
		return ""
	}

	v.mu.RLock()
	rules, ok := v.errorMsgCache[errorMsgTag]
	v.mu.RUnlock()
	if !ok {
		rules = parseErrorMessageTag(errorMsgTag)
		v.mu.Lock()
		v.errorMsgCache[errorMsgTag] = rules
		v.mu.Unlock()
	}
	return rules[rule]
}

// parseErrorMessageTag 格式: "required:用户名必填|alphanum:用户名只能包含字母和数字"
func parseErrorMessageTag(tag string) map[string]string {
	rules := make(map[string]string)
	for _, part := range strings.Split(tag, ruleSeparator) {
		rule, msg, ok := strings.Cut(part, keyValueSep)
		if ok {
			rules[strings.TrimSpace(rule)] = strings.TrimSpace(msg)
		}
	}
	return rules
}
