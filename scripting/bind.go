package scripting

import "github.com/27392/mybatis-3-sub000/eval"

// VarDecl bind 节点：对表达式求一次值，存进绑定表，
// 对后续兄弟节点和它们的子树可见
type VarDecl struct {
	Name string
	Expr string

	ev eval.Evaluator
}

// NewVarDecl bind 节点
func NewVarDecl(ev eval.Evaluator, name, expr string) *VarDecl {
	return &VarDecl{Name: name, Expr: expr, ev: ev}
}

func (n *VarDecl) Apply(ctx *DynamicContext) (bool, error) {
	v, err := n.ev.EvalValue(n.Expr, ctx.Bindings())
	if err != nil {
		return false, err
	}
	ctx.Bind(n.Name, v)
	return true, nil
}
