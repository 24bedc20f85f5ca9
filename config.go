package mybatis

import (
	"log"

	"github.com/27392/mybatis-3-sub000/eval"
	"github.com/27392/mybatis-3-sub000/executor/resultset"
	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/scripting"
	"github.com/27392/mybatis-3-sub000/types"
)

// Configuration 全局配置：各注册表 + 行为开关。
// 配置期填好，执行期只读
type Configuration struct {
	Types      *types.Registry
	ResultMaps *mapping.Registry
	Fragments  *scripting.Fragments
	Evaluator  eval.Evaluator

	// DatabaseID 当前数据库标识，模板里 _databaseId 的值
	DatabaseID string

	// UseActualParamNames 没有显式别名时是否用声明标识符称呼参数
	UseActualParamNames bool

	AutoMapping               resultset.AutoMappingBehavior
	UnknownColumns            resultset.UnknownColumnBehavior
	CallSettersOnNulls        bool
	ReturnInstanceForEmptyRow bool
	SafeRowBounds             bool
	SafeResultHandler         bool
	LazyLoading               bool

	// LogFunc 配置告警的去向
	LogFunc func(string)
}

// NewConfiguration 默认配置
func NewConfiguration() *Configuration {
	return &Configuration{
		Types:               types.NewRegistry(),
		ResultMaps:          mapping.NewRegistry(),
		Fragments:           scripting.NewFragments(),
		Evaluator:           eval.NewPathEvaluator(),
		UseActualParamNames: true,
		AutoMapping:         resultset.AutoMappingPartial,
		UnknownColumns:      resultset.UnknownColumnIgnore,
		SafeRowBounds:       true,
		SafeResultHandler:   true,
		LazyLoading:         true,
		LogFunc: func(msg string) {
			log.Println(msg)
		},
	}
}

// handlerConfig 投影出结果集处理器需要的那部分
func (c *Configuration) handlerConfig() resultset.Config {
	return resultset.Config{
		Registry:                  c.Types,
		ResultMaps:                c.ResultMaps,
		AutoMapping:               c.AutoMapping,
		UnknownColumns:            c.UnknownColumns,
		CallSettersOnNulls:        c.CallSettersOnNulls,
		ReturnInstanceForEmptyRow: c.ReturnInstanceForEmptyRow,
		SafeRowBounds:             c.SafeRowBounds,
		SafeResultHandler:         c.SafeResultHandler,
		LazyLoading:               c.LazyLoading,
		LogFunc:                   c.LogFunc,
	}
}
