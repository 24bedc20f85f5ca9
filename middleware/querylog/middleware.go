package querylog

import (
	"context"
	"log"

	mybatis "github.com/27392/mybatis-3-sub000"
)

type MiddlewareBuilder struct {
	logFunc func(sql string, args []any)
}

func NewBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{}
}

// LogFunc 这里如果需要配置的参数比较多，可以使用 函数选项模式
func (m *MiddlewareBuilder) LogFunc(fn func(sql string, args []any)) *MiddlewareBuilder {
	m.logFunc = fn
	return m
}

func (m *MiddlewareBuilder) Build() mybatis.Middleware {
	if m.logFunc == nil {
		m.logFunc = func(sql string, args []any) {
			log.Printf("sql: %s, args: %v", sql, args)
		}
	}
	return func(next mybatis.Handler) mybatis.Handler {
		return func(ctx context.Context, qc *mybatis.QueryContext) *mybatis.QueryResult {
			// 求值已经完成，执行前就能拿到最终 sql
			m.logFunc(qc.BoundSql.SQL, qc.Args)
			return next(ctx, qc)
		}
	}
}
