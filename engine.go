package mybatis

import (
	"context"
	"database/sql"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/27392/mybatis-3-sub000/cache"
	"github.com/27392/mybatis-3-sub000/eval"
	"github.com/27392/mybatis-3-sub000/executor/resultset"
	"github.com/27392/mybatis-3-sub000/internal/errs"
	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/scripting"
)

// EngineOption 配置引擎
type EngineOption func(e *Engine)

// Engine 执行入口。持有连接池、全局配置、语句注册表和语句级缓存。
// 注册完成之后并发安全
type Engine struct {
	db  *sql.DB
	cfg *Configuration

	statements sync.Map
	cache      cache.Cache
	mdls       []Middleware
}

// NewEngine 在已有连接池上创建引擎
func NewEngine(db *sql.DB, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		db:  db,
		cfg: NewConfiguration(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustNewEngine 创建失败直接 panic
func MustNewEngine(db *sql.DB, opts ...EngineOption) *Engine {
	e, err := NewEngine(db, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Open 建连接池再创建引擎
func Open(driver, dsn string, opts ...EngineOption) (*Engine, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewEngine(db, opts...)
}

// EngineWithMiddlewares 挂中间件，按传入顺序包裹执行
func EngineWithMiddlewares(mdls ...Middleware) EngineOption {
	return func(e *Engine) {
		e.mdls = mdls
	}
}

// EngineWithCache 挂语句级缓存
func EngineWithCache(c cache.Cache) EngineOption {
	return func(e *Engine) {
		e.cache = c
	}
}

// EngineWithConfiguration 替换默认配置
func EngineWithConfiguration(cfg *Configuration) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// Configuration 暴露配置给注册阶段使用
func (e *Engine) Configuration() *Configuration {
	return e.cfg
}

// DB 暴露底层连接池
func (e *Engine) DB() *sql.DB {
	return e.db
}

// RegisterStatement 注册语句，id 重复时后注册的生效
func (e *Engine) RegisterStatement(st *MappedStatement) {
	st.bind(e.cfg.UseActualParamNames)
	e.statements.Store(st.ID, st)
}

// RegisterResultMap 注册结果映射
func (e *Engine) RegisterResultMap(rm *mapping.ResultMap) {
	e.cfg.ResultMaps.Register(rm)
}

// RegisterFragment 注册可复用的 sql 片段
func (e *Engine) RegisterFragment(id string, node scripting.SqlNode) {
	e.cfg.Fragments.Register(id, node)
}

func (e *Engine) statement(id string) (*MappedStatement, error) {
	v, ok := e.statements.Load(id)
	if !ok {
		return nil, errs.ErrMappedStatementNotFound
	}
	return v.(*MappedStatement), nil
}

// Query 执行查询语句，返回第一个结果集物化出的对象列表。
// args 里可以混入 mapping.RowBounds 限制行范围
func (e *Engine) Query(ctx context.Context, statementID string, args ...any) ([]any, error) {
	res, err := e.query(ctx, statementID, nil, args)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res[0], nil
}

// QueryMulti 多结果集语句：每个结果集一个列表
func (e *Engine) QueryMulti(ctx context.Context, statementID string, args ...any) ([][]any, error) {
	return e.query(ctx, statementID, nil, args)
}

// QueryOne 恰好一行。没有行返回 ErrNoRows，多于一行返回 ErrTooManyResults
func (e *Engine) QueryOne(ctx context.Context, statementID string, args ...any) (any, error) {
	res, err := e.Query(ctx, statementID, args...)
	if err != nil {
		return nil, err
	}
	switch len(res) {
	case 0:
		return nil, errs.ErrNoRows
	case 1:
		return res[0], nil
	default:
		return nil, errs.ErrTooManyResults
	}
}

// QueryWithHandler 每物化一个对象回调一次，不落内存列表也不进缓存
func (e *Engine) QueryWithHandler(ctx context.Context, statementID string, rh mapping.ResultHandler, args ...any) error {
	_, err := e.query(ctx, statementID, rh, args)
	return err
}

func (e *Engine) query(ctx context.Context, statementID string, rh mapping.ResultHandler, args []any) ([][]any, error) {
	st, err := e.statement(statementID)
	if err != nil {
		return nil, err
	}
	rb, argRh := extractSpecial(args)
	if rh == nil {
		rh = argRh
	}
	qc, err := e.newQueryContext(st, args)
	if err != nil {
		return nil, err
	}

	// 语句级缓存只服务默认收集的查询
	cacheable := st.UseCache && e.cache != nil && rh == nil
	var key string
	if cacheable {
		key = cacheKeyFor(st, qc, rb)
		if values, ok, err := e.cache.Get(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return [][]any{values}, nil
		}
	}

	handler := e.chain(func(ctx context.Context, qc *QueryContext) *QueryResult {
		return e.queryHandler(ctx, qc, rb, rh)
	})
	res := handler(ctx, qc)
	if res.Err != nil {
		return nil, res.Err
	}
	results := res.Result.([][]any)
	if cacheable && len(results) == 1 {
		if err = e.cache.Set(ctx, key, results[0]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Exec 执行写语句。语句级缓存随之失效
func (e *Engine) Exec(ctx context.Context, statementID string, args ...any) (sql.Result, error) {
	st, err := e.statement(statementID)
	if err != nil {
		return nil, err
	}
	qc, err := e.newQueryContext(st, args)
	if err != nil {
		return nil, err
	}
	handler := e.chain(e.execHandler)
	res := handler(ctx, qc)
	if e.cache != nil && (st.FlushCache || st.Type != StatementTypeSelect) {
		if cerr := e.cache.Clear(ctx); cerr != nil && res.Err == nil {
			res.Err = cerr
		}
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Result.(sql.Result), nil
}

// chain 最内层是真正的执行，中间件从后往前包
func (e *Engine) chain(root Handler) Handler {
	handler := root
	for j := len(e.mdls) - 1; j >= 0; j-- {
		handler = e.mdls[j](handler)
	}
	return handler
}

// newQueryContext 求值模板、排好驱动参数，装进中间件上下文
func (e *Engine) newQueryContext(st *MappedStatement, args []any) (*QueryContext, error) {
	named := st.resolver.NamedParams(args)
	bound, err := st.Source.BoundSql(named)
	if err != nil {
		return nil, err
	}
	driverArgs, err := buildArgs(bound)
	if err != nil {
		return nil, err
	}
	return &QueryContext{
		ExecutionID: uuid.NewString(),
		Type:        st.Type,
		StatementID: st.ID,
		Statement:   st,
		BoundSql:    bound,
		Args:        driverArgs,
	}, nil
}

func (e *Engine) queryHandler(ctx context.Context, qc *QueryContext, rb mapping.RowBounds, rh mapping.ResultHandler) *QueryResult {
	rows, err := e.db.QueryContext(ctx, qc.BoundSql.SQL, qc.Args...)
	if err != nil {
		return &QueryResult{Err: err}
	}
	defer func() { _ = rows.Close() }()

	st := qc.Statement
	rms := make([]*mapping.ResultMap, 0, len(st.ResultMapIDs))
	for _, id := range st.ResultMapIDs {
		rm, err := e.cfg.ResultMaps.Get(id)
		if err != nil {
			return &QueryResult{Err: err}
		}
		rms = append(rms, rm)
	}
	h := resultset.NewHandler(e.cfg.handlerConfig(), e)
	results, err := h.HandleResultSets(ctx, rows, resultset.Request{
		ResultMaps:    rms,
		RowBounds:     rb,
		Handler:       rh,
		ResultOrdered: st.ResultOrdered,
		ResultSets:    st.ResultSets,
	})
	if err != nil {
		return &QueryResult{Err: err}
	}
	return &QueryResult{Result: results}
}

func (e *Engine) execHandler(ctx context.Context, qc *QueryContext) *QueryResult {
	res, err := e.db.ExecContext(ctx, qc.BoundSql.SQL, qc.Args...)
	return &QueryResult{Result: res, Err: err}
}

// QueryNested 嵌套查询入口。param 是映射器装好的参数对象，不再走命名解析
func (e *Engine) QueryNested(ctx context.Context, statementID string, param any) ([]any, error) {
	st, err := e.statement(statementID)
	if err != nil {
		return nil, err
	}
	qc, err := e.nestedQueryContext(st, param)
	if err != nil {
		return nil, err
	}
	handler := e.chain(func(ctx context.Context, qc *QueryContext) *QueryResult {
		return e.queryHandler(ctx, qc, mapping.DefaultRowBounds, nil)
	})
	res := handler(ctx, qc)
	if res.Err != nil {
		return nil, res.Err
	}
	results := res.Result.([][]any)
	var values []any
	if len(results) > 0 {
		values = results[0]
	}
	if st.UseCache && e.cache != nil {
		key := cacheKeyFor(st, qc, mapping.DefaultRowBounds)
		if err = e.cache.Set(ctx, key, values); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// CachedNested 只看缓存，不触发执行
func (e *Engine) CachedNested(statementID string, param any) ([]any, bool) {
	if e.cache == nil {
		return nil, false
	}
	st, err := e.statement(statementID)
	if err != nil || !st.UseCache {
		return nil, false
	}
	qc, err := e.nestedQueryContext(st, param)
	if err != nil {
		return nil, false
	}
	values, ok, err := e.cache.Get(context.Background(), cacheKeyFor(st, qc, mapping.DefaultRowBounds))
	if err != nil {
		return nil, false
	}
	return values, ok
}

func (e *Engine) nestedQueryContext(st *MappedStatement, param any) (*QueryContext, error) {
	bound, err := st.Source.BoundSql(param)
	if err != nil {
		return nil, err
	}
	driverArgs, err := buildArgs(bound)
	if err != nil {
		return nil, err
	}
	return &QueryContext{
		ExecutionID: uuid.NewString(),
		Type:        st.Type,
		StatementID: st.ID,
		Statement:   st,
		BoundSql:    bound,
		Args:        driverArgs,
	}, nil
}

var _ resultset.QueryExecutor = (*Engine)(nil)

// extractSpecial 从实参里挑出行范围和行回调
func extractSpecial(args []any) (mapping.RowBounds, mapping.ResultHandler) {
	rb := mapping.DefaultRowBounds
	var rh mapping.ResultHandler
	for _, a := range args {
		switch v := a.(type) {
		case mapping.RowBounds:
			rb = v
		case *mapping.RowBounds:
			rb = *v
		case mapping.ResultHandler:
			rh = v
		}
	}
	return rb, rh
}

// buildArgs 按占位符顺序解析每个参数值。
// 求值期绑定（foreach 合成名、bind 变量）优先，然后才落到参数对象上
func buildArgs(bound *mapping.BoundSql) ([]any, error) {
	if len(bound.ParameterMappings) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(bound.ParameterMappings))
	for _, pm := range bound.ParameterMappings {
		v, err := resolveParamValue(bound, pm.Property)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func resolveParamValue(bound *mapping.BoundSql, property string) (any, error) {
	if bound.HasAdditionalParameter(property) {
		bindings := make(map[string]any, len(bound.AdditionalParameters)+1)
		for k, v := range bound.AdditionalParameters {
			bindings[k] = v
		}
		bindings[eval.ParameterKey] = bound.Parameter
		return eval.Resolve(property, bindings)
	}
	if bound.Parameter == nil {
		return nil, nil
	}
	// 标量参数整个就是值，属性名只是模板里的称呼
	if isScalar(bound.Parameter) {
		return bound.Parameter, nil
	}
	return eval.Resolve(property, map[string]any{eval.ParameterKey: bound.Parameter})
}

func isScalar(v any) bool {
	switch v.(type) {
	case time.Time, *time.Time, []byte:
		return true
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return false
	}
	return true
}

// cacheKeyFor 语句 id + sql 文本 + 行范围 + 逐个参数值
func cacheKeyFor(st *MappedStatement, qc *QueryContext, rb mapping.RowBounds) string {
	key := resultset.NewCacheKey()
	key.Update(st.ID)
	key.Update(qc.BoundSql.SQL)
	key.Update(rb.Offset)
	key.Update(rb.Limit)
	for _, a := range qc.Args {
		key.Update(a)
	}
	return key.Key()
}
