package types

import (
	"database/sql"
	"reflect"
	"strings"
	"time"
)

// handlerKey (目标类型, 数据库类型) 二元组
type handlerKey struct {
	goType reflect.Type
	dbType string
}

// Registry 转换器注册表。
// 查找顺序：精确二元组 > 仅目标类型 > 仅数据库类型 > 兜底
// 构建完成后只读，不需要加锁
type Registry struct {
	exact   map[handlerKey]TypeHandler
	byGo    map[reflect.Type]TypeHandler
	byDB    map[string]TypeHandler
	unknown TypeHandler
}

// NewRegistry 创建带默认转换器的注册表
func NewRegistry() *Registry {
	r := &Registry{
		exact:   make(map[handlerKey]TypeHandler, 8),
		byGo:    make(map[reflect.Type]TypeHandler, 32),
		byDB:    make(map[string]TypeHandler, 16),
		unknown: HandlerFunc(unknownHandler),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	ih := HandlerFunc(intHandler)
	for _, v := range []any{int(0), int8(0), int16(0), int32(0), int64(0)} {
		r.RegisterGoType(reflect.TypeOf(v), ih)
	}
	uh := HandlerFunc(uintHandler)
	for _, v := range []any{uint(0), uint8(0), uint16(0), uint32(0), uint64(0)} {
		r.RegisterGoType(reflect.TypeOf(v), uh)
	}
	fh := HandlerFunc(floatHandler)
	r.RegisterGoType(reflect.TypeOf(float32(0)), fh)
	r.RegisterGoType(reflect.TypeOf(float64(0)), fh)
	r.RegisterGoType(reflect.TypeOf(false), HandlerFunc(boolHandler))
	r.RegisterGoType(reflect.TypeOf(""), HandlerFunc(stringHandler))
	r.RegisterGoType(reflect.TypeOf([]byte(nil)), HandlerFunc(bytesHandler))
	r.RegisterGoType(reflect.TypeOf(time.Time{}), HandlerFunc(timeHandler))
	r.RegisterGoType(reflect.TypeOf(sql.NullString{}), HandlerFunc(nullStringHandler))
	r.RegisterGoType(reflect.TypeOf(sql.NullInt64{}), HandlerFunc(nullInt64Handler))
	r.RegisterGoType(reflect.TypeOf(sql.NullFloat64{}), HandlerFunc(nullFloat64Handler))
	r.RegisterGoType(reflect.TypeOf(sql.NullBool{}), HandlerFunc(nullBoolHandler))

	// 只知道数据库类型时的兜底
	r.RegisterDBType("VARCHAR", HandlerFunc(stringHandler))
	r.RegisterDBType("TEXT", HandlerFunc(stringHandler))
	r.RegisterDBType("CHAR", HandlerFunc(stringHandler))
	r.RegisterDBType("INTEGER", HandlerFunc(intHandler))
	r.RegisterDBType("INT", HandlerFunc(intHandler))
	r.RegisterDBType("BIGINT", HandlerFunc(intHandler))
	r.RegisterDBType("DOUBLE", HandlerFunc(floatHandler))
	r.RegisterDBType("DECIMAL", HandlerFunc(floatHandler))
	r.RegisterDBType("DATETIME", HandlerFunc(timeHandler))
	r.RegisterDBType("TIMESTAMP", HandlerFunc(timeHandler))
	r.RegisterDBType("BOOLEAN", HandlerFunc(boolHandler))
}

// Register 注册精确的 (Go 类型, 数据库类型) 转换器
func (r *Registry) Register(goType reflect.Type, dbType string, h TypeHandler) {
	r.exact[handlerKey{goType: goType, dbType: strings.ToUpper(dbType)}] = h
}

// RegisterGoType 注册仅按目标类型匹配的转换器
func (r *Registry) RegisterGoType(goType reflect.Type, h TypeHandler) {
	r.byGo[goType] = h
}

// RegisterDBType 注册仅按数据库类型匹配的转换器
func (r *Registry) RegisterDBType(dbType string, h TypeHandler) {
	r.byDB[strings.ToUpper(dbType)] = h
}

// Resolve 解析转换器，永远不会返回 nil
func (r *Registry) Resolve(goType reflect.Type, dbType string) TypeHandler {
	dbType = strings.ToUpper(dbType)
	if goType != nil {
		// 指针目标按基础类型查找
		base := goType
		for base.Kind() == reflect.Ptr {
			base = base.Elem()
		}
		if h, ok := r.exact[handlerKey{goType: base, dbType: dbType}]; ok {
			return h
		}
		if h, ok := r.byGo[base]; ok {
			return h
		}
		// interface 目标只能透传，map[string]any 这类值类型
		// 交给数据库类型兜底会往接口容器里写具体类型，直接崩
		if base.Kind() == reflect.Interface {
			return r.unknown
		}
	}
	if h, ok := r.byDB[dbType]; ok {
		return h
	}
	return r.unknown
}

// Has 是否存在比兜底更好的转换器，构造函数按位置匹配时用来判定兼容性
func (r *Registry) Has(goType reflect.Type, dbType string) bool {
	dbType = strings.ToUpper(dbType)
	base := goType
	for base != nil && base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base != nil {
		if _, ok := r.exact[handlerKey{goType: base, dbType: dbType}]; ok {
			return true
		}
		if _, ok := r.byGo[base]; ok {
			return true
		}
	}
	_, ok := r.byDB[dbType]
	return ok
}

// HasDirect 目标类型本身是否有专属转换器，不考虑数据库类型兜底
func (r *Registry) HasDirect(goType reflect.Type) bool {
	base := goType
	for base != nil && base.Kind() == reflect.Ptr {
		base = base.Elem()
	}
	if base == nil {
		return false
	}
	_, ok := r.byGo[base]
	return ok
}

// Unknown 兜底转换器
func (r *Registry) Unknown() TypeHandler {
	return r.unknown
}
