package binding

import (
	"reflect"
	"strconv"

	"github.com/27392/mybatis-3-sub000/mapping"
)

// CollectionKey 单个集合参数包装后的统一入口名
const CollectionKey = "collection"

// ListKey 切片参数的别名
const ListKey = "list"

// ArrayKey 数组参数的别名
const ArrayKey = "array"

// GenericParamPrefix param1 param2 ... 的前缀
const GenericParamPrefix = "param"

// Param 一条语句声明的一个参数
type Param struct {
	// Name 调用处的参数标识符
	Name string
	// Alias 显式指定的逻辑名，优先于 Name
	Alias string
}

// Resolver 把调用位置上的实参映射到模板里 #{} 引用的逻辑名。
// 配置期构建一次，执行期只读
type Resolver struct {
	// names 位置 -> 逻辑名
	names []string
	// actualName 没有显式别名时是否使用声明标识符
	actualName bool
}

// NewResolver 构建解析器。
// 逻辑名优先级：显式别名 > 声明标识符（开启 useActualName 时）> 位置数字 "0" "1"
func NewResolver(useActualName bool, params []Param) *Resolver {
	r := &Resolver{
		names:      make([]string, len(params)),
		actualName: useActualName,
	}
	for i, p := range params {
		switch {
		case p.Alias != "":
			r.names[i] = p.Alias
		case useActualName && p.Name != "":
			r.names[i] = p.Name
		default:
			r.names[i] = strconv.Itoa(i)
		}
	}
	return r
}

// hasExplicitName 位置 i 是否有人为指定的名字（别名或者声明名）
func (r *Resolver) hasExplicitName(i int) bool {
	if i >= len(r.names) {
		return false
	}
	// 纯位置名说明用户没给名字
	_, err := strconv.Atoi(r.names[i])
	return err != nil
}

func (r *Resolver) nameFor(i int) string {
	if i < len(r.names) {
		return r.names[i]
	}
	return strconv.Itoa(i)
}

// NamedParams 把实参变成模板可寻址的参数对象：
// 零个参数返回 nil；
// 单个没有名字的参数直接透传（集合参数包装成 map，见 wrapCollection）；
// 多个参数构建 name -> value 的 map，并为每个参数追加 param1 param2 ... 的通用别名，
// 通用别名永远不覆盖显式名字
func (r *Resolver) NamedParams(args []any) any {
	filtered := filterSpecial(args)
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		if !r.hasExplicitName(0) {
			return wrapCollection(filtered[0])
		}
	}
	m := make(map[string]any, len(filtered)*2)
	for i, v := range filtered {
		m[r.nameFor(i)] = v
		generic := GenericParamPrefix + strconv.Itoa(i+1)
		if _, exists := m[generic]; !exists {
			m[generic] = v
		}
	}
	return m
}

// filterSpecial 跳过两类带外参数：行范围和自定义行回调，
// 它们不参与命名，由执行器单独消费
func filterSpecial(args []any) []any {
	res := make([]any, 0, len(args))
	for _, a := range args {
		switch a.(type) {
		case mapping.RowBounds, *mapping.RowBounds, mapping.ResultHandler:
			continue
		}
		res = append(res, a)
	}
	return res
}

// wrapCollection 单个集合参数包装成 map，模板里统一用
// collection/list/array 寻址；非集合参数原样返回
func wrapCollection(arg any) any {
	if arg == nil {
		return nil
	}
	t := reflect.TypeOf(arg)
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			// []byte 是标量
			return arg
		}
		return map[string]any{CollectionKey: arg, ListKey: arg}
	case reflect.Array:
		return map[string]any{CollectionKey: arg, ArrayKey: arg}
	default:
		return arg
	}
}
