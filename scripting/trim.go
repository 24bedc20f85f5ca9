package scripting

import "strings"

// Trim 把子节点输出到隔离的子上下文里，子节点全部完成后做一次裁剪：
// 去掉配置的前导/结尾字面量（忽略大小写），裁剪后非空才拼接自己的前后缀
type Trim struct {
	Child           SqlNode
	Prefix          string
	Suffix          string
	PrefixOverrides []string
	SuffixOverrides []string
}

// NewTrim 裁剪节点
func NewTrim(child SqlNode, prefix, suffix string, prefixOverrides, suffixOverrides []string) *Trim {
	return &Trim{
		Child:           child,
		Prefix:          prefix,
		Suffix:          suffix,
		PrefixOverrides: prefixOverrides,
		SuffixOverrides: suffixOverrides,
	}
}

// NewWhere WHERE 包装：去掉子内容前导的 AND/OR，非空时补 WHERE
func NewWhere(child SqlNode) *Trim {
	return NewTrim(child, "WHERE", "", []string{"AND ", "OR ", "AND\t", "OR\t", "AND\n", "OR\n"}, nil)
}

// NewSet SET 包装：去掉子内容前后多余的逗号，非空时补 SET
func NewSet(child SqlNode) *Trim {
	return NewTrim(child, "SET", "", []string{","}, []string{","})
}

func (n *Trim) Apply(ctx *DynamicContext) (bool, error) {
	sub := ctx.fork()
	applied, err := n.Child.Apply(sub)
	if err != nil {
		return false, err
	}
	text := strings.TrimSpace(sub.SQL())
	text = n.trimPrefix(text)
	text = n.trimSuffix(text)
	if text == "" {
		// 子节点全部落空，前后缀都不追加
		return applied, nil
	}
	if n.Prefix != "" {
		ctx.AppendSQL(n.Prefix)
	}
	ctx.AppendSQL(text)
	if n.Suffix != "" {
		ctx.AppendSQL(n.Suffix)
	}
	return applied, nil
}

// trimPrefix 只去掉第一个命中的前导字面量
func (n *Trim) trimPrefix(text string) string {
	upper := strings.ToUpper(text)
	for _, ov := range n.PrefixOverrides {
		if strings.HasPrefix(upper, strings.ToUpper(ov)) {
			return strings.TrimSpace(text[len(ov):])
		}
	}
	return text
}

func (n *Trim) trimSuffix(text string) string {
	upper := strings.ToUpper(text)
	for _, ov := range n.SuffixOverrides {
		if strings.HasSuffix(upper, strings.ToUpper(ov)) {
			return strings.TrimSpace(text[:len(text)-len(ov)])
		}
	}
	return text
}
