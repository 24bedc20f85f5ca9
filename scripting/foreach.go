package scripting

import (
	"strconv"
	"strings"

	"github.com/27392/mybatis-3-sub000/eval"
	"github.com/27392/mybatis-3-sub000/internal/errs"
)

// syntheticPrefix foreach 合成绑定名的前缀
const syntheticPrefix = "__frch_"

// Foreach 遍历节点。
// 每次迭代把 item/index 绑定成 __frch_<name>_<n> 的合成名，
// n 来自上下文的单调计数器，保证兄弟 foreach 之间不冲突
type Foreach struct {
	Collection string
	Item       string
	Index      string
	Open       string
	Close      string
	Separator  string
	Nullable   bool
	Child      SqlNode

	ev eval.Evaluator
}

// NewForeach 遍历节点
func NewForeach(ev eval.Evaluator, collection, item, index string, child SqlNode) *Foreach {
	return &Foreach{
		Collection: collection,
		Item:       item,
		Index:      index,
		Child:      child,
		ev:         ev,
	}
}

// WithDelimiters 设置 open/close/separator
func (n *Foreach) WithDelimiters(open, separator, close string) *Foreach {
	n.Open = open
	n.Separator = separator
	n.Close = close
	return n
}

// WithNullable 允许集合为 nil，此时整个节点落空而不是报错
func (n *Foreach) WithNullable(nullable bool) *Foreach {
	n.Nullable = nullable
	return n
}

func (n *Foreach) Apply(ctx *DynamicContext) (bool, error) {
	entries, err := n.ev.EvalIterable(n.Collection, ctx.Bindings())
	if err != nil {
		return false, err
	}
	if entries == nil {
		if n.Nullable {
			return false, nil
		}
		return false, errs.ErrNilIterable
	}

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		num := ctx.UniqueNumber()
		if n.Item != "" {
			ctx.Bind(n.Item, e.Value)
			ctx.Bind(syntheticName(n.Item, num), e.Value)
		}
		if n.Index != "" {
			ctx.Bind(n.Index, e.Index)
			ctx.Bind(syntheticName(n.Index, num), e.Index)
		}

		sub := ctx.fork()
		if _, err = n.Child.Apply(sub); err != nil {
			return false, err
		}
		// 把子输出里对 item/index 的字面引用改写成本次迭代的合成名
		text, err := n.itemize(sub.SQL(), num)
		if err != nil {
			return false, err
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	// 循环结束，item/index 本名出栈，合成名保留到参数绑定阶段
	if n.Item != "" {
		ctx.Unbind(n.Item)
	}
	if n.Index != "" {
		ctx.Unbind(n.Index)
	}

	var sb strings.Builder
	if n.Open != "" {
		sb.WriteString(n.Open)
	}
	if len(parts) > 0 {
		if n.Open != "" {
			sb.WriteByte(' ')
		}
		sep := " "
		if n.Separator != "" {
			sep = " " + n.Separator + " "
		}
		sb.WriteString(strings.Join(parts, sep))
	}
	if n.Close != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(n.Close)
	}
	ctx.AppendSQL(sb.String())
	return true, nil
}

// itemize #{item.name} -> #{__frch_item_3.name}
func (n *Foreach) itemize(text string, num int) (string, error) {
	return ParseTokens(text, "#{", "}", func(content string) (string, error) {
		trimmed := strings.TrimSpace(content)
		head := trimmed
		rest := ""
		if i := strings.IndexAny(trimmed, ".[,"); i >= 0 {
			head, rest = trimmed[:i], trimmed[i:]
		}
		switch head {
		case n.Item:
			if n.Item != "" {
				return "#{" + syntheticName(n.Item, num) + rest + "}", nil
			}
		case n.Index:
			if n.Index != "" {
				return "#{" + syntheticName(n.Index, num) + rest + "}", nil
			}
		}
		return "#{" + content + "}", nil
	})
}

func syntheticName(name string, num int) string {
	return syntheticPrefix + name + "_" + strconv.Itoa(num)
}
