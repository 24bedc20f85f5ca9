package eval

import (
	"reflect"
	"strings"

	"github.com/27392/mybatis-3-sub000/internal/errs"
	"github.com/27392/mybatis-3-sub000/reflection"
)

// Evaluator 表达式求值能力。
// 动态 sql 节点只需要两类结果：布尔（if/choose 的 test）和可遍历对象（foreach 的 collection）
// bind 节点额外需要任意值
type Evaluator interface {
	EvalBool(expr string, bindings map[string]any) (bool, error)
	EvalValue(expr string, bindings map[string]any) (any, error)
	EvalIterable(expr string, bindings map[string]any) ([]Entry, error)
}

// Entry foreach 的一次迭代
// 遍历 slice 时 Index 是 int 下标，遍历 map 时 Index 是 key
type Entry struct {
	Index any
	Value any
}

// ParameterKey 绑定表中参数对象本体的名字
const ParameterKey = "_parameter"

// Resolve 在绑定表上解析属性路径。
// 首段命中绑定表时从绑定值继续往下走，否则整条路径落到参数对象上，
// 这样 foreach/bind 声明的名字可以覆盖参数对象的同名属性
func Resolve(path string, bindings map[string]any) (any, error) {
	head := path
	rest := ""
	if i := strings.IndexAny(path, ".["); i >= 0 {
		if path[i] == '.' {
			head, rest = path[:i], path[i+1:]
		} else {
			head, rest = path[:i], path[i:]
		}
	}
	if v, ok := bindings[head]; ok {
		if rest == "" {
			return v, nil
		}
		if strings.HasPrefix(rest, "[") {
			// list[0].name 这种形式，借一层 map 让下标解析复用属性访问层
			return reflection.Get(map[string]any{head: v}, path)
		}
		return reflection.Get(v, rest)
	}
	param, ok := bindings[ParameterKey]
	if !ok || param == nil {
		return nil, nil
	}
	// 参数本身是 map[string]any 时按 key 取，取不到视为 nil
	if m, isMap := param.(map[string]any); isMap {
		v, exist := m[head]
		if !exist {
			return nil, nil
		}
		if rest == "" {
			return v, nil
		}
		return reflection.Get(v, rest)
	}
	return reflection.Get(param, path)
}

// PathEvaluator 默认实现：属性路径 + 字面量 + 比较 + and/or/not + 字符串拼接
// 满足绝大多数语句的 test/collection 表达式，不追求完整的表达式语言
type PathEvaluator struct{}

var _ Evaluator = PathEvaluator{}

// NewPathEvaluator 创建默认求值器
func NewPathEvaluator() PathEvaluator {
	return PathEvaluator{}
}

func (e PathEvaluator) EvalBool(expr string, bindings map[string]any) (bool, error) {
	v, err := e.EvalValue(expr, bindings)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

func (e PathEvaluator) EvalValue(expr string, bindings map[string]any) (any, error) {
	p := &parser{src: expr, bindings: bindings}
	v, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errs.NewErrExpression(expr, "存在无法解析的剩余内容")
	}
	return v, nil
}

func (e PathEvaluator) EvalIterable(expr string, bindings map[string]any) ([]Entry, error) {
	v, err := e.EvalValue(expr, bindings)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		res := make([]Entry, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			res = append(res, Entry{Index: i, Value: rv.Index(i).Interface()})
		}
		return res, nil
	case reflect.Map:
		res := make([]Entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			res = append(res, Entry{Index: iter.Key().Interface(), Value: iter.Value().Interface()})
		}
		return res, nil
	default:
		return nil, errs.NewErrIterableType(v)
	}
}

// Truthy OGNL 风格的真值判断：
// nil 为假；bool 取本值；空字符串为假；数值 0 为假；其余为真
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
