package scripting

import (
	"fmt"
	"strings"

	"github.com/27392/mybatis-3-sub000/eval"
)

// SqlNode 动态 sql 树的节点。构建一次，之后并发共享；
// 所有可变状态都在 DynamicContext 上。
// 返回值表示本节点是否真的往上下文里贡献了内容/生效了
type SqlNode interface {
	Apply(ctx *DynamicContext) (bool, error)
}

// Mixed 一组按语法顺序排列的子节点
type Mixed struct {
	Contents []SqlNode
}

// NewMixed 组合多个节点
func NewMixed(contents ...SqlNode) *Mixed {
	return &Mixed{Contents: contents}
}

func (n *Mixed) Apply(ctx *DynamicContext) (bool, error) {
	applied := false
	for _, child := range n.Contents {
		ok, err := child.Apply(ctx)
		if err != nil {
			return false, err
		}
		applied = applied || ok
	}
	return applied, nil
}

// StaticText 纯静态文本，不含 ${}，原样追加
type StaticText struct {
	Text string
}

// NewStaticText 静态文本节点
func NewStaticText(text string) *StaticText {
	return &StaticText{Text: text}
}

func (n *StaticText) Apply(ctx *DynamicContext) (bool, error) {
	ctx.AppendSQL(n.Text)
	return true, nil
}

// Text 含 ${} 替换的文本，每次求值时做文本替换。
// ${} 是字符串拼接不是参数绑定，值直接进 sql 文本
type Text struct {
	Text string
}

// NewText 文本节点，构建期判断是否含有 ${} 动态内容
// 不含时退化为静态节点，这是优化不是正确性要求
func NewText(text string) SqlNode {
	if !strings.Contains(text, "${") {
		return &StaticText{Text: text}
	}
	return &Text{Text: text}
}

func (n *Text) Apply(ctx *DynamicContext) (bool, error) {
	replaced, err := ParseTokens(n.Text, "${", "}", func(content string) (string, error) {
		v, err := eval.Resolve(strings.TrimSpace(content), ctx.Bindings())
		if err != nil {
			return "", err
		}
		if v == nil {
			return "", nil
		}
		return fmt.Sprint(v), nil
	})
	if err != nil {
		return false, err
	}
	ctx.AppendSQL(replaced)
	return true, nil
}
