package mybatis

import (
	"github.com/27392/mybatis-3-sub000/binding"
	"github.com/27392/mybatis-3-sub000/scripting"
)

// 语句类型
const (
	StatementTypeSelect = "SELECT"
	StatementTypeInsert = "INSERT"
	StatementTypeUpdate = "UPDATE"
	StatementTypeDelete = "DELETE"
)

// MappedStatement 一条已注册语句的完整定义。
// 注册期构建一次，之后只读共享，可以被任意多个 goroutine 并发执行
type MappedStatement struct {
	ID     string
	Type   string
	Source scripting.SqlSource

	// Params 声明的参数，决定模板里怎么称呼实参
	Params []binding.Param
	// ResultMapIDs 结果映射，多结果集语句按顺序一一对应
	ResultMapIDs []string
	// ResultSets 多结果集语句里各结果集的名字
	ResultSets []string
	// ResultOrdered 行按父身份分组有序，嵌套映射可以边读边吐结果
	ResultOrdered bool
	// UseCache 查询结果进语句级缓存
	UseCache bool
	// FlushCache 执行前清空语句级缓存，写语句默认清
	FlushCache bool

	resolver *binding.Resolver
}

// StatementOption 配置语句
type StatementOption func(st *MappedStatement)

// NewMappedStatement 构建语句定义
func NewMappedStatement(id, sqlType string, source scripting.SqlSource, opts ...StatementOption) *MappedStatement {
	st := &MappedStatement{
		ID:       id,
		Type:     sqlType,
		Source:   source,
		UseCache: sqlType == StatementTypeSelect,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// StatementWithParams 声明参数名
func StatementWithParams(params ...binding.Param) StatementOption {
	return func(st *MappedStatement) {
		st.Params = params
	}
}

// StatementWithResultMaps 指定结果映射
func StatementWithResultMaps(ids ...string) StatementOption {
	return func(st *MappedStatement) {
		st.ResultMapIDs = ids
	}
}

// StatementWithResultSets 多结果集语句的结果集名字
func StatementWithResultSets(names ...string) StatementOption {
	return func(st *MappedStatement) {
		st.ResultSets = names
	}
}

// StatementWithResultOrdered 声明行已按父身份分组
func StatementWithResultOrdered() StatementOption {
	return func(st *MappedStatement) {
		st.ResultOrdered = true
	}
}

// StatementWithUseCache 覆盖默认的缓存开关
func StatementWithUseCache(use bool) StatementOption {
	return func(st *MappedStatement) {
		st.UseCache = use
	}
}

// StatementWithFlushCache 执行前清空缓存
func StatementWithFlushCache() StatementOption {
	return func(st *MappedStatement) {
		st.FlushCache = true
	}
}

// bind 注册时由引擎调用，按全局配置构建参数解析器
func (st *MappedStatement) bind(useActualParamNames bool) {
	st.resolver = binding.NewResolver(useActualParamNames, st.Params)
}
