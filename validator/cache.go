package validator

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// fieldInfo 字段信息
type fieldInfo struct {
	name        string // Go 字段名
	label       string // 错误中展示的名字
	validateTag string
	errorMsgTag string
	isStruct    bool // 需要递归
	isPtr       bool
}

// labelTags 展示名的取值顺序：配置键 > 表单键 > JSON 键
var labelTags = []string{"mapstructure", "form", "json"}

var timeType = reflect.TypeOf(time.Time{})

// typeCache 结构体字段信息缓存
type typeCache struct {
	mu    sync.RWMutex
	cache map[reflect.Type][]fieldInfo
}

func newTypeCache() *typeCache {
	return &typeCache{
		cache: make(map[reflect.Type][]fieldInfo),
	}
}

func (tc *typeCache) getFieldsInfo(t reflect.Type) []fieldInfo {
	tc.mu.RLock()
	info, ok := tc.cache[t]
	tc.mu.RUnlock()
	if ok {
		return info
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if info, ok := tc.cache[t]; ok {
		return info
	}

	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// 未导出字段读取 Interface() 会 panic
			continue
		}
		fieldType := field.Type
		isPtr := fieldType.Kind() == reflect.Ptr
		if isPtr {
			fieldType = fieldType.Elem()
		}

		fields = append(fields, fieldInfo{
			name:        field.Name,
			label:       fieldLabel(field),
			validateTag: field.Tag.Get("validate"),
			errorMsgTag: field.Tag.Get(tagCustom),
			// time.Time 按叶子字段校验
			isStruct: fieldType.Kind() == reflect.Struct && fieldType != timeType,
			isPtr:    isPtr,
		})
	}

	tc.cache[t] = fields
	return fields
}

func fieldLabel(field reflect.StructField) string {
	for _, tag := range labelTags {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}
