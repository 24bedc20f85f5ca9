package opentelemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	mybatis "github.com/27392/mybatis-3-sub000"
)

const instrumentationName = "github.com/27392/mybatis-3-sub000/middleware/opentelemetry"

type MiddlewareBuilder struct {
	Tracer trace.Tracer
}

func (m *MiddlewareBuilder) Build() mybatis.Middleware {
	if m.Tracer == nil {
		// 创建 tracer 实例
		m.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return func(next mybatis.Handler) mybatis.Handler {
		return func(ctx context.Context, qc *mybatis.QueryContext) *mybatis.QueryResult {
			spanCtx, span := m.Tracer.Start(ctx, qc.StatementID)
			defer span.End()

			span.SetAttributes(attribute.String("db.statement.id", qc.StatementID))
			span.SetAttributes(attribute.String("db.operation", qc.Type))
			span.SetAttributes(attribute.String("db.statement", qc.BoundSql.SQL))
			span.SetAttributes(attribute.String("db.execution.id", qc.ExecutionID))

			res := next(spanCtx, qc)
			if res.Err != nil {
				span.RecordError(res.Err)
			}
			return res
		}
	}
}
