package scripting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/27392/mybatis-3-sub000/eval"
)

type searchParam struct {
	Name  string
	State string
	Ids   []int
}

func TestRawSqlSource(t *testing.T) {
	src, err := NewRawSqlSource("SELECT * FROM t WHERE id = #{id} AND v = #{v,dbType=VARCHAR}")
	require.NoError(t, err)

	bound, err := src.BoundSql(map[string]any{"id": 1, "v": "x"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id = ? AND v = ?", bound.SQL)
	require.Len(t, bound.ParameterMappings, 2)
	assert.Equal(t, "id", bound.ParameterMappings[0].Property)
	assert.Equal(t, "v", bound.ParameterMappings[1].Property)
	assert.Equal(t, "VARCHAR", bound.ParameterMappings[1].DBType)
}

func TestNewSqlSource_StaticCollapse(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(NewText("SELECT * FROM t"), NewText("WHERE id = #{id}"))

	src, err := NewSqlSource(ev, root, "")
	require.NoError(t, err)
	// 没有动态节点时应当在构建期收敛成静态来源
	_, ok := src.(*RawSqlSource)
	assert.True(t, ok)
}

func TestDynamicSqlSource_If(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(
		NewText("SELECT * FROM orders"),
		NewWhere(NewMixed(
			NewIf(ev, "Name != ''", NewText("AND name = #{Name}")),
			NewIf(ev, "State != ''", NewText("AND state = #{State}")),
		)),
	)
	src := NewDynamicSqlSource(ev, root, "")

	type testCase struct {
		name     string
		param    any
		wantSQL  string
		wantProp []string
	}
	tests := []testCase{
		{
			name:     "both set",
			param:    &searchParam{Name: "a", State: "NEW"},
			wantSQL:  "SELECT * FROM orders WHERE name = ? AND state = ?",
			wantProp: []string{"Name", "State"},
		},
		{
			// 第一个条件落空时要把第二个的前导 AND 裁掉
			name:     "first missing",
			param:    &searchParam{State: "NEW"},
			wantSQL:  "SELECT * FROM orders WHERE state = ?",
			wantProp: []string{"State"},
		},
		{
			// 全部落空时连 WHERE 都不能出现
			name:    "none set",
			param:   &searchParam{},
			wantSQL: "SELECT * FROM orders",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bound, err := src.BoundSql(tc.param)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, bound.SQL)
			props := make([]string, 0, len(bound.ParameterMappings))
			for _, pm := range bound.ParameterMappings {
				props = append(props, pm.Property)
			}
			if len(tc.wantProp) == 0 {
				assert.Empty(t, props)
			} else {
				assert.Equal(t, tc.wantProp, props)
			}
		})
	}
}

func TestDynamicSqlSource_Deterministic(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(
		NewText("SELECT * FROM t"),
		NewWhere(NewIf(ev, "Name != ''", NewText("name = #{Name}"))),
	)
	src := NewDynamicSqlSource(ev, root, "")

	// 同一棵树同一参数反复求值，输出必须完全一致
	first, err := src.BoundSql(&searchParam{Name: "a"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		bound, err := src.BoundSql(&searchParam{Name: "a"})
		require.NoError(t, err)
		assert.Equal(t, first.SQL, bound.SQL)
		assert.Equal(t, len(first.ParameterMappings), len(bound.ParameterMappings))
	}
}

func TestChoose(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(
		NewText("SELECT * FROM t WHERE"),
		NewChoose([]*If{
			NewIf(ev, "Name != ''", NewText("name = #{Name}")),
			NewIf(ev, "State != ''", NewText("state = #{State}")),
		}, NewText("1 = 1")),
	)
	src := NewDynamicSqlSource(ev, root, "")

	bound, err := src.BoundSql(&searchParam{Name: "a", State: "NEW"})
	require.NoError(t, err)
	// 只有第一个命中的 when 生效
	assert.Equal(t, "SELECT * FROM t WHERE name = ?", bound.SQL)

	bound, err = src.BoundSql(&searchParam{State: "NEW"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE state = ?", bound.SQL)

	bound, err = src.BoundSql(&searchParam{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE 1 = 1", bound.SQL)
}

func TestSet(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(
		NewText("UPDATE t"),
		NewSet(NewMixed(
			NewIf(ev, "Name != ''", NewText("name = #{Name},")),
			NewIf(ev, "State != ''", NewText("state = #{State},")),
		)),
		NewText("WHERE id = #{Id}"),
	)
	src := NewDynamicSqlSource(ev, root, "")

	bound, err := src.BoundSql(map[string]any{"Name": "a", "State": "", "Id": 1})
	require.NoError(t, err)
	// 结尾的逗号要被裁掉
	assert.Equal(t, "UPDATE t SET name = ? WHERE id = ?", bound.SQL)
}

func TestForeach(t *testing.T) {
	ev := eval.NewPathEvaluator()

	t.Run("separator law", func(t *testing.T) {
		root := NewMixed(
			NewText("SELECT * FROM t WHERE id IN"),
			NewForeach(ev, "Ids", "id", "", NewText("#{id}")).
				WithDelimiters("(", ",", ")"),
		)
		src := NewDynamicSqlSource(ev, root, "")

		bound, err := src.BoundSql(&searchParam{Ids: []int{7, 8, 9}})
		require.NoError(t, err)
		// n 个元素 n-1 个分隔符
		assert.Equal(t, "SELECT * FROM t WHERE id IN ( ? , ? , ? )", bound.SQL)
		require.Len(t, bound.ParameterMappings, 3)
		// 占位符指向各次迭代的合成名
		for i, pm := range bound.ParameterMappings {
			assert.True(t, bound.HasAdditionalParameter(pm.Property))
			v, err := eval.Resolve(pm.Property, bound.AdditionalParameters)
			require.NoError(t, err)
			assert.Equal(t, []int{7, 8, 9}[i], v)
		}
	})

	t.Run("empty collection keeps open close", func(t *testing.T) {
		root := NewForeach(ev, "Ids", "id", "", NewText("#{id}")).
			WithDelimiters("(", ",", ")")
		src := NewDynamicSqlSource(ev, root, "")

		bound, err := src.BoundSql(&searchParam{Ids: []int{}})
		require.NoError(t, err)
		assert.Equal(t, "( )", bound.SQL)
		assert.Empty(t, bound.ParameterMappings)
	})

	t.Run("nil collection not nullable", func(t *testing.T) {
		root := NewForeach(ev, "missing", "id", "", NewText("#{id}"))
		src := NewDynamicSqlSource(ev, root, "")
		_, err := src.BoundSql(map[string]any{})
		assert.Error(t, err)
	})

	t.Run("nil collection nullable", func(t *testing.T) {
		root := NewForeach(ev, "missing", "id", "", NewText("#{id}")).
			WithNullable(true)
		src := NewDynamicSqlSource(ev, root, "")
		bound, err := src.BoundSql(map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "", bound.SQL)
	})

	t.Run("index binding", func(t *testing.T) {
		root := NewForeach(ev, "Ids", "v", "i", NewText("(#{i}, #{v})")).
			WithDelimiters("", ",", "")
		src := NewDynamicSqlSource(ev, root, "")

		bound, err := src.BoundSql(&searchParam{Ids: []int{5, 6}})
		require.NoError(t, err)
		assert.Equal(t, "(?, ?) , (?, ?)", bound.SQL)
		require.Len(t, bound.ParameterMappings, 4)
		v, err := eval.Resolve(bound.ParameterMappings[0].Property, bound.AdditionalParameters)
		require.NoError(t, err)
		assert.Equal(t, 0, v)
		v, err = eval.Resolve(bound.ParameterMappings[3].Property, bound.AdditionalParameters)
		require.NoError(t, err)
		assert.Equal(t, 6, v)
	})
}

func TestVarDecl(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewMixed(
		NewVarDecl(ev, "pattern", "'%' + Name + '%'"),
		NewText("SELECT * FROM t WHERE name LIKE #{pattern}"),
	)
	src := NewDynamicSqlSource(ev, root, "")

	bound, err := src.BoundSql(&searchParam{Name: "Tom"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE name LIKE ?", bound.SQL)
	assert.True(t, bound.HasAdditionalParameter("pattern"))
	v, err := eval.Resolve("pattern", bound.AdditionalParameters)
	require.NoError(t, err)
	assert.Equal(t, "%Tom%", v)
}

func TestText_Substitution(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewText("SELECT * FROM ${table} WHERE id = #{id}")
	src := NewDynamicSqlSource(ev, root, "")

	// ${} 是文本替换，#{} 才是占位符
	bound, err := src.BoundSql(map[string]any{"table": "orders", "id": 3})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders WHERE id = ?", bound.SQL)
}

func TestText_DatabaseID(t *testing.T) {
	ev := eval.NewPathEvaluator()
	root := NewText("SELECT '${_databaseId}'")
	src := NewDynamicSqlSource(ev, root, "mysql")

	bound, err := src.BoundSql(nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 'mysql'", bound.SQL)
}

func TestFragments_Resolve(t *testing.T) {
	ev := eval.NewPathEvaluator()
	f := NewFragments()
	f.Register("cols", NewStaticText("id, name, state"))

	root := NewMixed(
		NewText("SELECT"),
		NewInclude("cols"),
		NewText("FROM t"),
	)
	resolved, err := f.Resolve(root)
	require.NoError(t, err)

	src := NewDynamicSqlSource(ev, resolved, "")
	bound, err := src.BoundSql(nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name, state FROM t", bound.SQL)

	t.Run("unknown fragment", func(t *testing.T) {
		_, err := f.Resolve(NewInclude("nope"))
		assert.Error(t, err)
	})

	t.Run("cyclic fragment", func(t *testing.T) {
		f.Register("a", NewInclude("b"))
		f.Register("b", NewInclude("a"))
		_, err := f.Resolve(NewInclude("a"))
		assert.Error(t, err)
	})
}

func TestParseTokens(t *testing.T) {
	type testCase struct {
		name string
		text string
		want string
	}
	tests := []testCase{
		{name: "no token", text: "plain", want: "plain"},
		{name: "single", text: "a #{x} b", want: "a [x] b"},
		{name: "adjacent", text: "#{x}#{y}", want: "[x][y]"},
		{name: "escaped", text: `\#{x}`, want: "#{x}"},
		{name: "unclosed", text: "a #{x", want: "a #{x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTokens(tc.text, "#{", "}", func(content string) (string, error) {
				return "[" + content + "]", nil
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
