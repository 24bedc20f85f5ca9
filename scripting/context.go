package scripting

import (
	"strings"

	"github.com/27392/mybatis-3-sub000/eval"
)

// DatabaseIDKey 绑定表中数据库方言 id 的名字，模板里可以直接引用
const DatabaseIDKey = "_databaseId"

// DynamicContext 一次模板求值的可变状态：
// sql 片段缓冲 + 绑定表 + 合成名计数器。
// 节点树本身不可变，一次语句执行对应一个 DynamicContext，单线程使用
type DynamicContext struct {
	sb       strings.Builder
	bindings map[string]any
	uniq     *int
}

// NewDynamicContext 以参数对象和方言 id 初始化绑定表
func NewDynamicContext(param any, databaseID string) *DynamicContext {
	return &DynamicContext{
		bindings: map[string]any{
			eval.ParameterKey: param,
			DatabaseIDKey:    databaseID,
		},
		uniq: new(int),
	}
}

// fork trim/foreach 把子节点输出隔离到子上下文里再做裁剪，
// 绑定表和计数器与父上下文共享
func (c *DynamicContext) fork() *DynamicContext {
	return &DynamicContext{
		bindings: c.bindings,
		uniq:     c.uniq,
	}
}

// AppendSQL 追加一个 sql 片段，片段之间用单个空格连接
func (c *DynamicContext) AppendSQL(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	if c.sb.Len() > 0 {
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString(fragment)
}

// SQL 当前累积的 sql 文本
func (c *DynamicContext) SQL() string {
	return c.sb.String()
}

// Bind 写入或者覆盖一个绑定，后面的节点可以覆盖前面兄弟节点的绑定
func (c *DynamicContext) Bind(name string, value any) {
	c.bindings[name] = value
}

// Unbind 移除一个绑定，foreach 循环结束后清掉 item/index
func (c *DynamicContext) Unbind(name string) {
	delete(c.bindings, name)
}

// Bindings 绑定表本体，求值器直接在上面解析路径
func (c *DynamicContext) Bindings() map[string]any {
	return c.bindings
}

// UniqueNumber 单调递增，保证各次迭代的合成绑定名互不冲突
func (c *DynamicContext) UniqueNumber() int {
	n := *c.uniq
	*c.uniq = n + 1
	return n
}
