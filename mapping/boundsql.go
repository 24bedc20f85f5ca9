package mapping

import (
	"reflect"
	"strings"
)

// ParameterMapping #{} 占位符的一条参数描述，顺序与 SQL 中 ? 的顺序一致
type ParameterMapping struct {
	Property string
	GoType   reflect.Type
	DBType   string
}

// BoundSql 模板求值的产物：最终 SQL 文本 + 有序参数描述 + 求值期产生的附加绑定
// foreach 的合成名（__frch_item_0）和 bind 声明的名字都落在 AdditionalParameters 里
type BoundSql struct {
	SQL                  string
	ParameterMappings    []*ParameterMapping
	Parameter            any
	AdditionalParameters map[string]any
}

// HasAdditionalParameter 属性路径的首段是否是附加绑定
func (b *BoundSql) HasAdditionalParameter(name string) bool {
	head := name
	if i := strings.IndexAny(name, ".["); i >= 0 {
		head = name[:i]
	}
	_, ok := b.AdditionalParameters[head]
	return ok
}

// SetAdditionalParameter 记录一个附加绑定
func (b *BoundSql) SetAdditionalParameter(name string, value any) {
	if b.AdditionalParameters == nil {
		b.AdditionalParameters = make(map[string]any, 4)
	}
	b.AdditionalParameters[name] = value
}
