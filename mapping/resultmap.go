package mapping

import (
	"reflect"
	"strings"
	"sync"

	"github.com/27392/mybatis-3-sub000/internal/errs"
	"github.com/27392/mybatis-3-sub000/types"
)

// ResultFlag 属性映射的角色标记
type ResultFlag uint8

const (
	// FlagID 参与行身份计算的列
	FlagID ResultFlag = 1 << iota
	// FlagConstructor 实例化时写入，先于普通属性映射
	FlagConstructor
)

// ResultMapping 单个属性映射，对应 resultMap 里的一行配置
type ResultMapping struct {
	Property     string             // 目标属性名，支持点路径
	Column       string             // 列名，嵌套映射可以为空
	ColumnPrefix string             // 嵌套映射取列时追加的前缀
	GoType       reflect.Type       // 显式目标类型，空则从属性推导
	DBType       string             // 显式数据库类型
	TypeHandler  types.TypeHandler  // 显式转换器，优先于注册表解析
	NestedMapID  string             // 嵌套 result map 的 id（association/collection）
	NestedQuery  string             // 嵌套查询语句 id
	Composites   []*ResultMapping   // 复合键：多列拼成嵌套查询的参数
	NotNullCols  []string           // 这些列全为 null 时不生成子对象
	ResultSet    string             // 值来自其它结果集时的结果集名
	ForeignCol   string             // 与 ResultSet 配合的外键列
	Lazy         bool               // 嵌套查询延迟执行
	Flags        ResultFlag
}

// IsID 是否参与行身份
func (m *ResultMapping) IsID() bool {
	return m.Flags&FlagID != 0
}

// IsConstructor 是否构造期写入
func (m *ResultMapping) IsConstructor() bool {
	return m.Flags&FlagConstructor != 0
}

// IsSimple 既不是嵌套映射也不是嵌套查询
func (m *ResultMapping) IsSimple() bool {
	return m.NestedMapID == "" && m.NestedQuery == "" && m.ResultSet == ""
}

// ResultMap 一张结果映射定义。配置期构建一次，之后只读共享
type ResultMap struct {
	ID   string
	Type reflect.Type

	ResultMappings      []*ResultMapping
	IDMappings          []*ResultMapping // 空则退化为全部非嵌套映射
	ConstructorMappings []*ResultMapping
	PropertyMappings    []*ResultMapping // 非构造的普通映射

	MappedColumns map[string]struct{} // 大写列名集合
	Discriminator *Discriminator

	HasNestedResultMaps bool
	HasNestedQueries    bool

	// AutoMapping 为 nil 时跟随全局配置
	AutoMapping *bool
}

// Option 构建 ResultMap 的选项
type Option func(rm *ResultMap)

// New 构建一个 ResultMap 并完成各分区的划分
func New(id string, typ reflect.Type, opts ...Option) *ResultMap {
	rm := &ResultMap{
		ID:   id,
		Type: typ,
	}
	for _, opt := range opts {
		opt(rm)
	}
	rm.finalize()
	return rm
}

func (rm *ResultMap) finalize() {
	rm.MappedColumns = make(map[string]struct{}, len(rm.ResultMappings))
	for _, m := range rm.ResultMappings {
		if m.Column != "" {
			rm.MappedColumns[strings.ToUpper(m.Column)] = struct{}{}
		}
		for _, c := range m.Composites {
			if c.Column != "" {
				rm.MappedColumns[strings.ToUpper(c.Column)] = struct{}{}
			}
		}
		if m.IsID() {
			rm.IDMappings = append(rm.IDMappings, m)
		}
		if m.IsConstructor() {
			rm.ConstructorMappings = append(rm.ConstructorMappings, m)
		} else {
			rm.PropertyMappings = append(rm.PropertyMappings, m)
		}
		if m.NestedMapID != "" && m.ResultSet == "" {
			rm.HasNestedResultMaps = true
		}
		if m.NestedQuery != "" {
			rm.HasNestedQueries = true
		}
	}
	if rm.Discriminator != nil && rm.Discriminator.Mapping.Column != "" {
		rm.MappedColumns[strings.ToUpper(rm.Discriminator.Mapping.Column)] = struct{}{}
	}
}

// WithMapping 追加一个完整的属性映射
func WithMapping(m *ResultMapping) Option {
	return func(rm *ResultMap) {
		rm.ResultMappings = append(rm.ResultMappings, m)
	}
}

// WithID id 列映射，参与行身份
func WithID(property, column string) Option {
	return WithMapping(&ResultMapping{Property: property, Column: column, Flags: FlagID})
}

// WithResult 普通列映射
func WithResult(property, column string) Option {
	return WithMapping(&ResultMapping{Property: property, Column: column})
}

// WithConstructor 构造期映射
func WithConstructor(property, column string) Option {
	return WithMapping(&ResultMapping{Property: property, Column: column, Flags: FlagConstructor})
}

// WithAssociation 单个关联对象，列从本行取，映射定义引用另一个 result map
func WithAssociation(property, nestedMapID string, columnPrefix string) Option {
	return WithMapping(&ResultMapping{
		Property:     property,
		NestedMapID:  nestedMapID,
		ColumnPrefix: columnPrefix,
	})
}

// WithCollection 集合属性，和 WithAssociation 的区别只在目标属性类型
func WithCollection(property, nestedMapID string, columnPrefix string) Option {
	return WithAssociation(property, nestedMapID, columnPrefix)
}

// WithNestedQuery 属性值来自另一条语句
func WithNestedQuery(property, column, queryID string, lazy bool) Option {
	return WithMapping(&ResultMapping{
		Property:    property,
		Column:      column,
		NestedQuery: queryID,
		Lazy:        lazy,
	})
}

// WithDiscriminator 鉴别器：按某一列的值切换生效的 result map
func WithDiscriminator(column string, cases map[string]string) Option {
	return func(rm *ResultMap) {
		rm.Discriminator = &Discriminator{
			Mapping: &ResultMapping{Column: column},
			Cases:   cases,
		}
	}
}

// WithAutoMapping 覆盖全局的自动映射开关
func WithAutoMapping(enabled bool) Option {
	return func(rm *ResultMap) {
		rm.AutoMapping = &enabled
	}
}

// Registry result map 注册表。和元数据注册表一样用 sync.Map，读多写少
type Registry struct {
	maps sync.Map
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{}
}

// Register 注册，id 重复时后注册的生效
func (r *Registry) Register(rm *ResultMap) {
	r.maps.Store(rm.ID, rm)
}

// Get 按 id 查找
func (r *Registry) Get(id string) (*ResultMap, error) {
	v, ok := r.maps.Load(id)
	if !ok {
		return nil, errs.NewErrUnknownResultMap(id)
	}
	return v.(*ResultMap), nil
}
