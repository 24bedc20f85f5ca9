package scripting

import "github.com/27392/mybatis-3-sub000/eval"

// If 条件节点：test 为真时应用子节点
type If struct {
	Test  string
	Child SqlNode

	ev eval.Evaluator
}

// NewIf 条件节点
func NewIf(ev eval.Evaluator, test string, child SqlNode) *If {
	return &If{Test: test, Child: child, ev: ev}
}

func (n *If) Apply(ctx *DynamicContext) (bool, error) {
	ok, err := n.ev.EvalBool(n.Test, ctx.Bindings())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if _, err = n.Child.Apply(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Choose 多分支：应用第一个 test 为真的 when，全不命中时应用 otherwise
type Choose struct {
	Whens     []*If
	Otherwise SqlNode
}

// NewChoose 多分支节点，otherwise 可以为 nil
func NewChoose(whens []*If, otherwise SqlNode) *Choose {
	return &Choose{Whens: whens, Otherwise: otherwise}
}

func (n *Choose) Apply(ctx *DynamicContext) (bool, error) {
	for _, when := range n.Whens {
		ok, err := when.Apply(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	if n.Otherwise != nil {
		if _, err := n.Otherwise.Apply(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
