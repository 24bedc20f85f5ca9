package scripting

import (
	"sync"

	"github.com/27392/mybatis-3-sub000/internal/errs"
)

// Include 片段引用占位节点。构建期必须被 Fragments.Resolve 替换掉，
// 残留到求值期说明构建流程有问题
type Include struct {
	RefID string
}

// NewInclude 片段引用
func NewInclude(refID string) *Include {
	return &Include{RefID: refID}
}

func (n *Include) Apply(*DynamicContext) (bool, error) {
	return false, errs.NewErrUnknownFragment(n.RefID)
}

// Fragments 可复用 sql 片段的注册表
type Fragments struct {
	m sync.Map
}

// NewFragments 创建空注册表
func NewFragments() *Fragments {
	return &Fragments{}
}

// Register 注册一个片段
func (f *Fragments) Register(id string, node SqlNode) {
	f.m.Store(id, node)
}

// Get 按 id 查找
func (f *Fragments) Get(id string) (SqlNode, error) {
	v, ok := f.m.Load(id)
	if !ok {
		return nil, errs.NewErrUnknownFragment(id)
	}
	return v.(SqlNode), nil
}

// Resolve 构建期把树里所有 Include 替换成注册的片段，
// 片段里再引用片段也会被展开，环引用会在 seen 里被截住
func (f *Fragments) Resolve(node SqlNode) (SqlNode, error) {
	return f.resolve(node, make(map[string]struct{}, 4))
}

func (f *Fragments) resolve(node SqlNode, seen map[string]struct{}) (SqlNode, error) {
	switch n := node.(type) {
	case *Include:
		if _, ok := seen[n.RefID]; ok {
			return nil, errs.NewErrUnknownFragment(n.RefID)
		}
		seen[n.RefID] = struct{}{}
		frag, err := f.Get(n.RefID)
		if err != nil {
			return nil, err
		}
		resolved, err := f.resolve(frag, seen)
		if err != nil {
			return nil, err
		}
		delete(seen, n.RefID)
		return resolved, nil
	case *Mixed:
		contents := make([]SqlNode, len(n.Contents))
		for i, child := range n.Contents {
			resolved, err := f.resolve(child, seen)
			if err != nil {
				return nil, err
			}
			contents[i] = resolved
		}
		return &Mixed{Contents: contents}, nil
	case *If:
		child, err := f.resolve(n.Child, seen)
		if err != nil {
			return nil, err
		}
		return &If{Test: n.Test, Child: child, ev: n.ev}, nil
	case *Choose:
		whens := make([]*If, len(n.Whens))
		for i, w := range n.Whens {
			child, err := f.resolve(w.Child, seen)
			if err != nil {
				return nil, err
			}
			whens[i] = &If{Test: w.Test, Child: child, ev: w.ev}
		}
		var otherwise SqlNode
		if n.Otherwise != nil {
			var err error
			if otherwise, err = f.resolve(n.Otherwise, seen); err != nil {
				return nil, err
			}
		}
		return &Choose{Whens: whens, Otherwise: otherwise}, nil
	case *Trim:
		child, err := f.resolve(n.Child, seen)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Child = child
		return &cp, nil
	case *Foreach:
		child, err := f.resolve(n.Child, seen)
		if err != nil {
			return nil, err
		}
		cp := *n
		cp.Child = child
		return &cp, nil
	default:
		return node, nil
	}
}
