package mybatis

import (
	"context"

	"github.com/27392/mybatis-3-sub000/mapping"
)

// QueryContext 中间件的上下文。冗余了语句定义和求值结果，
// 是因为还没执行 sql 前，有的中间件就需要这些信息
type QueryContext struct {
	// ExecutionID 一次执行的唯一标识，日志和链路追踪用
	ExecutionID string

	// Type 语句类型。即 SELECT, UPDATE, DELETE 和 INSERT
	Type string

	// StatementID 语句 id
	StatementID string

	// Statement 语句定义，大多数情况下只读
	Statement *MappedStatement

	// BoundSql 本次执行求值出来的 sql 文本和参数描述
	BoundSql *mapping.BoundSql

	// Args 按占位符顺序排好、将交给驱动的参数值
	Args []any
}

// QueryResult 在不同的语句里面，Result 类型是不同的：
// SELECT 是物化好的 []any，其它是 sql.Result
type QueryResult struct {
	Result any
	Err    error
}

type Middleware func(next Handler) Handler

type Handler func(ctx context.Context, qc *QueryContext) *QueryResult
