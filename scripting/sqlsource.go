package scripting

import (
	"strings"

	"github.com/27392/mybatis-3-sub000/eval"
	"github.com/27392/mybatis-3-sub000/mapping"
)

// SqlSource 一条语句的可复用 sql 来源。
// 构建一次，每次执行时带参数求值出 BoundSql
type SqlSource interface {
	BoundSql(param any) (*mapping.BoundSql, error)
}

// NewSqlSource 编译入口：树里没有任何动态节点时提前求值成静态 sql，
// 否则每次执行都走一遍节点树
func NewSqlSource(ev eval.Evaluator, root SqlNode, databaseID string) (SqlSource, error) {
	if isStatic(root) {
		ctx := NewDynamicContext(nil, databaseID)
		if _, err := root.Apply(ctx); err != nil {
			return nil, err
		}
		return NewRawSqlSource(ctx.SQL())
	}
	return &DynamicSqlSource{root: root, ev: ev, databaseID: databaseID}, nil
}

// isStatic 全静态文本的树可以在构建期收敛
func isStatic(node SqlNode) bool {
	switch n := node.(type) {
	case *StaticText:
		return true
	case *Mixed:
		for _, child := range n.Contents {
			if !isStatic(child) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// DynamicSqlSource 动态语句：每次执行应用节点树，然后把 #{} 翻译成 ?
type DynamicSqlSource struct {
	root       SqlNode
	ev         eval.Evaluator
	databaseID string
}

// NewDynamicSqlSource 动态 sql 来源
func NewDynamicSqlSource(ev eval.Evaluator, root SqlNode, databaseID string) *DynamicSqlSource {
	return &DynamicSqlSource{root: root, ev: ev, databaseID: databaseID}
}

func (s *DynamicSqlSource) BoundSql(param any) (*mapping.BoundSql, error) {
	ctx := NewDynamicContext(param, s.databaseID)
	if _, err := s.root.Apply(ctx); err != nil {
		return nil, err
	}
	sql, pms, err := translatePlaceholders(ctx.SQL())
	if err != nil {
		return nil, err
	}
	bound := &mapping.BoundSql{
		SQL:               sql,
		ParameterMappings: pms,
		Parameter:         param,
	}
	// 求值期产生的绑定（foreach 合成名、bind 变量）带给参数绑定阶段
	for name, value := range ctx.Bindings() {
		if name == eval.ParameterKey || name == DatabaseIDKey {
			continue
		}
		bound.SetAdditionalParameter(name, value)
	}
	return bound, nil
}

// RawSqlSource 静态语句：#{} 在构建期翻译一次，执行期零开销
type RawSqlSource struct {
	sql string
	pms []*mapping.ParameterMapping
}

// NewRawSqlSource 静态 sql 来源
func NewRawSqlSource(sql string) (*RawSqlSource, error) {
	translated, pms, err := translatePlaceholders(sql)
	if err != nil {
		return nil, err
	}
	return &RawSqlSource{sql: translated, pms: pms}, nil
}

func (s *RawSqlSource) BoundSql(param any) (*mapping.BoundSql, error) {
	return &mapping.BoundSql{
		SQL:               s.sql,
		ParameterMappings: s.pms,
		Parameter:         param,
	}, nil
}

// translatePlaceholders 把 #{prop,dbType=X} 翻译成 ? 并按出现顺序收集参数描述
func translatePlaceholders(sql string) (string, []*mapping.ParameterMapping, error) {
	var pms []*mapping.ParameterMapping
	out, err := ParseTokens(sql, "#{", "}", func(content string) (string, error) {
		pm := parseParameterMapping(content)
		pms = append(pms, pm)
		return "?", nil
	})
	if err != nil {
		return "", nil, err
	}
	return out, pms, nil
}

// parseParameterMapping "prop,dbType=VARCHAR" 形式，目前只认 dbType 属性
func parseParameterMapping(content string) *mapping.ParameterMapping {
	parts := strings.Split(content, ",")
	pm := &mapping.ParameterMapping{Property: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) == 2 && strings.TrimSpace(kv[0]) == "dbType" {
			pm.DBType = strings.TrimSpace(kv[1])
		}
	}
	return pm
}
