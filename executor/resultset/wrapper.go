package resultset

import (
	"database/sql"
	"reflect"
	"strings"

	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/types"
)

// Wrapper 包住一个物理结果集：
// 按游标列序缓存列名和声明类型，按 (映射id, 列前缀) 记忆化已映射/未映射列的划分，
// 按 (目标类型, 列) 记忆化转换器解析。
// 一个结果集一个 Wrapper，单线程使用
type Wrapper struct {
	rows     *sql.Rows
	registry *types.Registry

	columnNames []string
	dbTypeNames []string
	colIndex    map[string]int // 大写列名 -> 下标

	mappedCache   map[string][]string
	unmappedCache map[string][]string
	handlerCache  map[handlerCacheKey]types.TypeHandler

	current []any
}

type handlerCacheKey struct {
	goType reflect.Type
	column string
}

// NewWrapper 读取当前结果集的列元数据
func NewWrapper(rows *sql.Rows, registry *types.Registry) (*Wrapper, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	w := &Wrapper{
		rows:          rows,
		registry:      registry,
		columnNames:   cols,
		dbTypeNames:   make([]string, len(cols)),
		colIndex:      make(map[string]int, len(cols)),
		mappedCache:   make(map[string][]string, 4),
		unmappedCache: make(map[string][]string, 4),
		handlerCache:  make(map[handlerCacheKey]types.TypeHandler, len(cols)),
		current:       make([]any, len(cols)),
	}
	for i, c := range cols {
		w.colIndex[strings.ToUpper(c)] = i
		if colTypes[i] != nil {
			w.dbTypeNames[i] = colTypes[i].DatabaseTypeName()
		}
	}
	return w, nil
}

// ColumnNames 游标列序的列名
func (w *Wrapper) ColumnNames() []string {
	return w.columnNames
}

// DBTypeName 列的数据库声明类型名
func (w *Wrapper) DBTypeName(column string) string {
	if i, ok := w.colIndex[strings.ToUpper(column)]; ok {
		return w.dbTypeNames[i]
	}
	return ""
}

// HasColumn 结果集里是否有这个列（忽略大小写）
func (w *Wrapper) HasColumn(column string) bool {
	_, ok := w.colIndex[strings.ToUpper(column)]
	return ok
}

// Next 向前读一行，原始值扫进内部缓冲
func (w *Wrapper) Next() (bool, error) {
	if !w.rows.Next() {
		return false, w.rows.Err()
	}
	dest := make([]any, len(w.columnNames))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := w.rows.Scan(dest...); err != nil {
		return false, err
	}
	for i := range dest {
		w.current[i] = *(dest[i].(*any))
	}
	return true, nil
}

// Value 当前行某列的原始值，列不存在时第二个返回值为 false
func (w *Wrapper) Value(column string) (any, bool) {
	i, ok := w.colIndex[strings.ToUpper(column)]
	if !ok {
		return nil, false
	}
	return w.current[i], true
}

func cacheKeyFor(rm *mapping.ResultMap, prefix string) string {
	return rm.ID + ":" + strings.ToUpper(prefix)
}

// loadColumnSplit 把游标列划分为映射定义显式认领的和没认领的两组。
// 带前缀时只有前缀匹配的列才可能被认领
func (w *Wrapper) loadColumnSplit(rm *mapping.ResultMap, prefix string) {
	key := cacheKeyFor(rm, prefix)
	upperPrefix := strings.ToUpper(prefix)
	mapped := make([]string, 0, len(w.columnNames))
	unmapped := make([]string, 0, 4)
	for _, c := range w.columnNames {
		upper := strings.ToUpper(c)
		name := upper
		if upperPrefix != "" {
			if !strings.HasPrefix(upper, upperPrefix) {
				unmapped = append(unmapped, c)
				continue
			}
			name = upper[len(upperPrefix):]
		}
		if _, ok := rm.MappedColumns[name]; ok {
			mapped = append(mapped, c)
		} else {
			unmapped = append(unmapped, c)
		}
	}
	w.mappedCache[key] = mapped
	w.unmappedCache[key] = unmapped
}

// MappedColumns 映射定义显式认领的列（实际列名，含前缀）
func (w *Wrapper) MappedColumns(rm *mapping.ResultMap, prefix string) []string {
	key := cacheKeyFor(rm, prefix)
	if _, ok := w.mappedCache[key]; !ok {
		w.loadColumnSplit(rm, prefix)
	}
	return w.mappedCache[key]
}

// UnmappedColumns 没被认领的列
func (w *Wrapper) UnmappedColumns(rm *mapping.ResultMap, prefix string) []string {
	key := cacheKeyFor(rm, prefix)
	if _, ok := w.unmappedCache[key]; !ok {
		w.loadColumnSplit(rm, prefix)
	}
	return w.unmappedCache[key]
}

// Handler 解析 (目标类型, 列) 的转换器，带记忆化。
// 解析顺序由注册表保证：精确二元组 > 目标类型 > 数据库类型 > 兜底
func (w *Wrapper) Handler(goType reflect.Type, column string) types.TypeHandler {
	key := handlerCacheKey{goType: goType, column: strings.ToUpper(column)}
	if h, ok := w.handlerCache[key]; ok {
		return h
	}
	h := w.registry.Resolve(goType, w.DBTypeName(column))
	w.handlerCache[key] = h
	return h
}
