package resultset

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/types"
)

type testOrder struct {
	Id    int64
	State string
	Total float64
}

type testBuyer struct {
	Id   int64
	Name string
}

// fakeExecutor 嵌套查询的测试替身
type fakeExecutor struct {
	queries map[string][]any
	cached  map[string][]any
	calls   int
}

func (f *fakeExecutor) QueryNested(ctx context.Context, statementID string, param any) ([]any, error) {
	f.calls++
	return f.queries[statementID], nil
}

func (f *fakeExecutor) CachedNested(statementID string, param any) ([]any, bool) {
	v, ok := f.cached[statementID]
	return v, ok
}

func testConfig(rms ...*mapping.ResultMap) Config {
	reg := mapping.NewRegistry()
	for _, rm := range rms {
		reg.Register(rm)
	}
	return Config{
		Registry:          types.NewRegistry(),
		ResultMaps:        reg,
		AutoMapping:       AutoMappingPartial,
		SafeRowBounds:     true,
		SafeResultHandler: true,
		LazyLoading:       true,
	}
}

func handleRows(t *testing.T, cfg Config, exec QueryExecutor, req Request, rows *sqlmock.Rows, more ...*sqlmock.Rows) ([][]any, error) {
	t.Helper()
	rs, closeFn := mockRows(t, rows, more...)
	defer closeFn()
	h := NewHandler(cfg, exec)
	return h.HandleResultSets(context.Background(), rs, req)
}

func TestHandler_FlatRow(t *testing.T) {
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
		mapping.WithResult("State", "state"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("state").OfType("VARCHAR", ""),
		sqlmock.NewColumn("total").OfType("DOUBLE", float64(0)),
	).
		AddRow(int64(1), "NEW", 9.5).
		AddRow(int64(2), "PAID", 1.25)

	results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0], 2)

	first := results[0][0].(*testOrder)
	// 显式映射 + 自动映射兜底的 total
	assert.Equal(t, &testOrder{Id: 1, State: "NEW", Total: 9.5}, first)
	second := results[0][1].(*testOrder)
	assert.Equal(t, &testOrder{Id: 2, State: "PAID", Total: 1.25}, second)
}

func TestHandler_NullRowSuppression(t *testing.T) {
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
		mapping.WithResult("State", "state"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("state").OfType("VARCHAR", ""),
	).AddRow(nil, nil)

	t.Run("default returns nil element", func(t *testing.T) {
		results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		require.Len(t, results[0], 1)
		assert.Nil(t, results[0][0])
	})

	t.Run("return instance for empty row", func(t *testing.T) {
		rows := sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("state").OfType("VARCHAR", ""),
		).AddRow(nil, nil)
		cfg := testConfig(rm)
		cfg.ReturnInstanceForEmptyRow = true
		results, err := handleRows(t, cfg, &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		require.Len(t, results[0], 1)
		assert.Equal(t, &testOrder{}, results[0][0])
	})
}

func TestHandler_Primitive(t *testing.T) {
	rm := mapping.New("countMap", reflect.TypeOf(int64(0)))
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("cnt").OfType("BIGINT", int64(0)),
	).AddRow(int64(42))

	results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Equal(t, int64(42), results[0][0])
}

func TestHandler_MapTarget(t *testing.T) {
	rm := mapping.New("rowMap", reflect.TypeOf(map[string]any{}))
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		sqlmock.NewColumn("note").OfType("VARCHAR", ""),
	).AddRow(int64(1), "a", nil)

	t.Run("null keys absent by default", func(t *testing.T) {
		results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		m := results[0][0].(map[string]any)
		assert.Equal(t, int64(1), m["id"])
		assert.Equal(t, "a", m["name"])
		_, ok := m["note"]
		assert.False(t, ok)
	})

	t.Run("call setters on nulls keeps key", func(t *testing.T) {
		rows := sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("note").OfType("VARCHAR", ""),
		).AddRow(int64(1), nil)
		cfg := testConfig(rm)
		cfg.CallSettersOnNulls = true
		results, err := handleRows(t, cfg, &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		m := results[0][0].(map[string]any)
		_, ok := m["note"]
		assert.True(t, ok)
		assert.Nil(t, m["note"])
	})

	t.Run("explicit mapping keeps raw value", func(t *testing.T) {
		// 显式映射到 map 目标：值类型是 interface{}，原始值直接透传
		explicit := mapping.New("explicitRowMap", reflect.TypeOf(map[string]any{}),
			mapping.WithID("id", "id"),
			mapping.WithResult("name", "name"),
		)
		rows := sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		).AddRow(int64(7), "a")
		results, err := handleRows(t, testConfig(explicit), &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{explicit},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		m := results[0][0].(map[string]any)
		assert.Equal(t, int64(7), m["id"])
		assert.Equal(t, "a", m["name"])
	})
}

func TestHandler_UnknownProperty(t *testing.T) {
	// 映射点名了目标类型上不存在的属性：配置错误，首次使用即报
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
		mapping.WithResult("Nope", "state"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("state").OfType("VARCHAR", ""),
	).AddRow(int64(1), "NEW")

	_, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nope")
}

func TestHandler_UnknownColumn(t *testing.T) {
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
	)
	newRows := func() *sqlmock.Rows {
		return sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("ghost").OfType("VARCHAR", ""),
		).AddRow(int64(1), "boo")
	}

	t.Run("ignore", func(t *testing.T) {
		results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, newRows())
		require.NoError(t, err)
		assert.Equal(t, &testOrder{Id: 1}, results[0][0])
	})

	t.Run("warn logs", func(t *testing.T) {
		cfg := testConfig(rm)
		cfg.UnknownColumns = UnknownColumnWarn
		var logged []string
		cfg.LogFunc = func(msg string) {
			logged = append(logged, msg)
		}
		_, err := handleRows(t, cfg, &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, newRows())
		require.NoError(t, err)
		require.Len(t, logged, 1)
		assert.Contains(t, logged[0], "ghost")
	})

	t.Run("fail", func(t *testing.T) {
		cfg := testConfig(rm)
		cfg.UnknownColumns = UnknownColumnFail
		_, err := handleRows(t, cfg, &fakeExecutor{}, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, newRows())
		assert.Error(t, err)
	})
}

func TestHandler_ConstructorMappings(t *testing.T) {
	type item struct {
		Id    int64
		Title string
		Price float64
	}
	rm := mapping.New("itemMap", reflect.TypeOf(item{}),
		mapping.WithConstructor("Id", "id"),
		mapping.WithConstructor("Title", "title"),
		mapping.WithResult("Price", "price"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("title").OfType("VARCHAR", ""),
		sqlmock.NewColumn("price").OfType("DOUBLE", float64(0)),
	).AddRow(int64(7), "pen", 2.5)

	results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, &item{Id: 7, Title: "pen", Price: 2.5}, results[0][0])
}

func TestHandler_RowBounds(t *testing.T) {
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
	)
	newRows := func() *sqlmock.Rows {
		rows := sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		)
		for i := 1; i <= 4; i++ {
			rows.AddRow(int64(i))
		}
		return rows
	}

	results, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.RowBounds{Offset: 1, Limit: 2},
	}, newRows())
	require.NoError(t, err)
	require.Len(t, results[0], 2)
	assert.Equal(t, int64(2), results[0][0].(*testOrder).Id)
	assert.Equal(t, int64(3), results[0][1].(*testOrder).Id)
}

func TestHandler_Discriminator(t *testing.T) {
	type vehicle struct {
		Id   int64
		Kind string
	}
	type sportsCar struct {
		Id       int64
		Kind     string
		TopSpeed int64
	}
	base := mapping.New("vehicleMap", reflect.TypeOf(vehicle{}),
		mapping.WithID("Id", "id"),
		mapping.WithResult("Kind", "kind"),
		mapping.WithDiscriminator("kind", map[string]string{"SPORTS": "sportsMap"}),
	)
	sports := mapping.New("sportsMap", reflect.TypeOf(sportsCar{}),
		mapping.WithID("Id", "id"),
		mapping.WithResult("Kind", "kind"),
		mapping.WithResult("TopSpeed", "top_speed"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("kind").OfType("VARCHAR", ""),
		sqlmock.NewColumn("top_speed").OfType("BIGINT", int64(0)),
	).AddRow(int64(1), "SPORTS", int64(300))
	// 没命中任何 case 的行停留在本映射
	rows.AddRow(int64(2), "TRUCK", nil)

	results, err := handleRows(t, testConfig(base, sports), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{base},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.NoError(t, err)
	require.Len(t, results[0], 2)
	assert.Equal(t, &sportsCar{Id: 1, Kind: "SPORTS", TopSpeed: 300}, results[0][0])
	assert.Equal(t, &vehicle{Id: 2, Kind: "TRUCK"}, results[0][1])
}

func TestHandler_NestedQuery(t *testing.T) {
	type orderWithBuyer struct {
		Id    int64
		Buyer *testBuyer
	}
	rm := mapping.New("orderMap", reflect.TypeOf(orderWithBuyer{}),
		mapping.WithID("Id", "id"),
		mapping.WithNestedQuery("Buyer", "buyer_id", "selectBuyer", false),
	)
	newRows := func() *sqlmock.Rows {
		return sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("buyer_id").OfType("BIGINT", int64(0)),
		).AddRow(int64(1), int64(7))
	}

	t.Run("executes immediately", func(t *testing.T) {
		exec := &fakeExecutor{queries: map[string][]any{
			"selectBuyer": {&testBuyer{Id: 7, Name: "Tom"}},
		}}
		results, err := handleRows(t, testConfig(rm), exec, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, newRows())
		require.NoError(t, err)
		o := results[0][0].(*orderWithBuyer)
		assert.Equal(t, &testBuyer{Id: 7, Name: "Tom"}, o.Buyer)
		assert.Equal(t, 1, exec.calls)
	})

	t.Run("cache hit skips execution", func(t *testing.T) {
		exec := &fakeExecutor{cached: map[string][]any{
			"selectBuyer": {&testBuyer{Id: 7, Name: "cached"}},
		}}
		results, err := handleRows(t, testConfig(rm), exec, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, newRows())
		require.NoError(t, err)
		o := results[0][0].(*orderWithBuyer)
		assert.Equal(t, "cached", o.Buyer.Name)
		assert.Equal(t, 0, exec.calls)
	})

	t.Run("null key skips query", func(t *testing.T) {
		rows := sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("buyer_id").OfType("BIGINT", int64(0)),
		).AddRow(int64(1), nil)
		exec := &fakeExecutor{}
		results, err := handleRows(t, testConfig(rm), exec, Request{
			ResultMaps: []*mapping.ResultMap{rm},
			RowBounds:  mapping.DefaultRowBounds,
		}, rows)
		require.NoError(t, err)
		o := results[0][0].(*orderWithBuyer)
		assert.Nil(t, o.Buyer)
		assert.Equal(t, 0, exec.calls)
	})
}

func TestHandler_LazyNestedQuery(t *testing.T) {
	type orderLazy struct {
		Id    int64
		Buyer *Lazy
	}
	rm := mapping.New("orderMap", reflect.TypeOf(orderLazy{}),
		mapping.WithID("Id", "id"),
		mapping.WithNestedQuery("Buyer", "buyer_id", "selectBuyer", true),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
		sqlmock.NewColumn("buyer_id").OfType("BIGINT", int64(0)),
	).AddRow(int64(1), int64(7))

	exec := &fakeExecutor{queries: map[string][]any{
		"selectBuyer": {&testBuyer{Id: 7, Name: "Tom"}},
	}}
	results, err := handleRows(t, testConfig(rm), exec, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
	}, rows)
	require.NoError(t, err)

	o := results[0][0].(*orderLazy)
	require.NotNil(t, o.Buyer)
	// 映射完成时还没执行
	assert.False(t, o.Buyer.Loaded())
	assert.Equal(t, 0, exec.calls)

	v, err := o.Buyer.Get()
	require.NoError(t, err)
	assert.Equal(t, &testBuyer{Id: 7, Name: "Tom"}, v)
	assert.Equal(t, 1, exec.calls)

	// 第二次取不再执行
	_, err = o.Buyer.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, exec.calls)
}

func TestHandler_ResultHandlerStop(t *testing.T) {
	rm := mapping.New("orderMap", reflect.TypeOf(testOrder{}),
		mapping.WithID("Id", "id"),
	)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
	)
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}

	var seen []int64
	rh := func(rc *mapping.ResultContext) error {
		seen = append(seen, rc.Value().(*testOrder).Id)
		if len(seen) == 2 {
			rc.Stop()
		}
		return nil
	}
	_, err := handleRows(t, testConfig(rm), &fakeExecutor{}, Request{
		ResultMaps: []*mapping.ResultMap{rm},
		RowBounds:  mapping.DefaultRowBounds,
		Handler:    rh,
	}, rows)
	require.NoError(t, err)
	// Stop 之后不再读行
	assert.Equal(t, []int64{1, 2}, seen)
}
