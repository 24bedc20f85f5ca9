package reflection

import (
	"reflect"

	"github.com/27392/mybatis-3-sub000/internal/errs"
)

// 对象构造能力：映射器不关心目标是 struct 还是 map，统一走这里

// Create 实例化一个映射目标。
// struct 返回 *T，这样后续的 Set 才有地方写；map 直接 make 出来
func Create(typ reflect.Type) (any, error) {
	switch typ.Kind() {
	case reflect.Ptr:
		return Create(typ.Elem())
	case reflect.Struct:
		return reflect.New(typ).Interface(), nil
	case reflect.Map:
		return reflect.MakeMap(typ).Interface(), nil
	case reflect.Slice:
		return reflect.MakeSlice(typ, 0, 0).Interface(), nil
	default:
		// 标量目标（单列结果）也从这里走，给一个零值的指针容器
		return reflect.New(typ).Interface(), nil
	}
}

// CreateWithProps 带 "构造参数" 的实例化。
// Go 没有构造函数，这里的语义是：创建完成后立刻按属性名写入这批值，
// 写入发生在普通属性映射之前
func CreateWithProps(typ reflect.Type, props []string, values []any) (any, error) {
	obj, err := Create(typ)
	if err != nil {
		return nil, err
	}
	for i, p := range props {
		if err = Set(obj, p, values[i]); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// CreateByFieldOrder 按导出字段声明顺序逐个写入。
// 用于没有任何映射配置、按列位置匹配的兜底路径
func CreateByFieldOrder(typ reflect.Type, values []any) (any, error) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, errs.NewErrCreateInstance(typ.String())
	}
	ptr := reflect.New(typ)
	elem := ptr.Elem()
	n := 0
	for i := 0; i < typ.NumField() && n < len(values); i++ {
		if !typ.Field(i).IsExported() {
			continue
		}
		if err := assign(elem.Field(i), values[n]); err != nil {
			return nil, err
		}
		n++
	}
	return ptr.Interface(), nil
}

// ExportedFields 返回导出字段，声明顺序
func ExportedFields(typ reflect.Type) []reflect.StructField {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}
	res := make([]reflect.StructField, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		if fd := typ.Field(i); fd.IsExported() {
			res = append(res, fd)
		}
	}
	return res
}

// IsCollection 判断是否是集合属性（association 还是 collection）
func IsCollection(typ reflect.Type) bool {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	k := typ.Kind()
	if k == reflect.Slice {
		// []byte 是标量
		return typ.Elem().Kind() != reflect.Uint8
	}
	return k == reflect.Array
}
