package querylog

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mybatis "github.com/27392/mybatis-3-sub000"
	"github.com/27392/mybatis-3-sub000/binding"
	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/scripting"
)

func TestMiddlewareBuilder(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	mdl := NewBuilder().LogFunc(func(sql string, args []any) {
		gotSQL = sql
		gotArgs = args
	}).Build()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := mybatis.MustNewEngine(db, mybatis.EngineWithMiddlewares(mdl))
	type user struct {
		Id int64
	}
	e.RegisterResultMap(mapping.New("userMap", reflect.TypeOf(user{}),
		mapping.WithID("Id", "id"),
	))
	src, err := scripting.NewRawSqlSource("SELECT id FROM users WHERE id = #{id}")
	require.NoError(t, err)
	e.RegisterStatement(mybatis.NewMappedStatement("selectUser", mybatis.StatementTypeSelect, src,
		mybatis.StatementWithParams(binding.Param{Alias: "id"}),
		mybatis.StatementWithResultMaps("userMap"),
	))

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
	).AddRow(int64(1))
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	_, err = e.Query(context.Background(), "selectUser", int64(1))
	require.NoError(t, err)

	// 记录的是求值完成后的最终 sql 和驱动参数
	assert.Equal(t, "SELECT id FROM users WHERE id = ?", gotSQL)
	assert.Equal(t, []any{int64(1)}, gotArgs)
}
