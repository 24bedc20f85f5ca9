package prometheus

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mybatis "github.com/27392/mybatis-3-sub000"
)

type MiddlewareBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
}

func (m MiddlewareBuilder) Build() mybatis.Middleware {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name:      m.Name,
		Subsystem: m.Subsystem,
		Namespace: m.Namespace,
		Help:      m.Help,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,  // 99 线
			0.999: 0.0001, // 999 线
		},
	}, []string{"statement", "type", "result"})

	prometheus.MustRegister(vector)

	return func(next mybatis.Handler) mybatis.Handler {
		return func(ctx context.Context, qc *mybatis.QueryContext) *mybatis.QueryResult {
			// 开始时间
			startTime := time.Now()
			res := next(ctx, qc)
			// 结束时间
			duration := time.Since(startTime).Milliseconds()
			result := "ok"
			if res.Err != nil {
				result = "error"
			}
			vector.WithLabelValues(qc.StatementID, qc.Type, result).
				Observe(float64(duration))
			return res
		}
	}
}
