package resultset

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/27392/mybatis-3-sub000/internal/errs"
	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/reflection"
	"github.com/27392/mybatis-3-sub000/types"
)

// AutoMappingBehavior 自动映射的范围
type AutoMappingBehavior uint8

const (
	// AutoMappingNone 关闭自动映射
	AutoMappingNone AutoMappingBehavior = iota
	// AutoMappingPartial 只对非嵌套的 result map 自动映射
	AutoMappingPartial
	// AutoMappingFull 嵌套内部也自动映射
	AutoMappingFull
)

// UnknownColumnBehavior 未映射列又匹配不到属性时的处置
type UnknownColumnBehavior uint8

const (
	// UnknownColumnIgnore 跳过
	UnknownColumnIgnore UnknownColumnBehavior = iota
	// UnknownColumnWarn 记一条日志再跳过
	UnknownColumnWarn
	// UnknownColumnFail 报错
	UnknownColumnFail
)

// QueryExecutor 嵌套查询能力，由执行器（引擎）提供。
// 处理器只负责查询缓存是否命中与发起执行，缓存本身归外部管
type QueryExecutor interface {
	// QueryNested 执行一条嵌套语句
	QueryNested(ctx context.Context, statementID string, param any) ([]any, error)
	// CachedNested 外部缓存里是否已有这条语句+参数的结果
	CachedNested(statementID string, param any) ([]any, bool)
}

// Config 结果集处理器的行为开关，来自全局配置
type Config struct {
	Registry   *types.Registry
	ResultMaps *mapping.Registry

	AutoMapping               AutoMappingBehavior
	UnknownColumns            UnknownColumnBehavior
	CallSettersOnNulls        bool
	ReturnInstanceForEmptyRow bool
	SafeRowBounds             bool
	SafeResultHandler         bool
	LazyLoading               bool

	// LogFunc Warn 模式下未映射列的去向
	LogFunc func(string)
}

// Request 一次语句执行要物化的东西
type Request struct {
	ResultMaps    []*mapping.ResultMap
	RowBounds     mapping.RowBounds
	Handler       mapping.ResultHandler
	ResultOrdered bool
	// ResultSets 多结果集语句里各结果集的名字，按出现顺序
	ResultSets []string
}

// Handler 对象图映射器。一次语句执行一个实例，单线程使用
type Handler struct {
	cfg      Config
	executor QueryExecutor

	// nestedResultObjects 身份表：组合行身份 -> 已物化对象，游标耗尽时清空
	nestedResultObjects map[string]any
	// ancestors 祖先表：映射 id -> 在建对象，用来截断自引用递归
	ancestors map[string]any
	// pending 跨结果集的待挂接关系
	pending map[string][]pendingRelation
	// nextResultMaps 结果集名 -> 负责它的属性映射
	nextResultMaps map[string]*mapping.ResultMapping
	// prevRowValue ordered 模式下在途的唯一父对象
	prevRowValue any
}

type pendingRelation struct {
	obj     any
	mapping *mapping.ResultMapping
}

// NewHandler 创建处理器
func NewHandler(cfg Config, executor QueryExecutor) *Handler {
	if cfg.LogFunc == nil {
		cfg.LogFunc = func(string) {}
	}
	h := &Handler{cfg: cfg, executor: executor}
	h.reset()
	return h
}

func (h *Handler) reset() {
	h.nestedResultObjects = make(map[string]any, 16)
	h.ancestors = make(map[string]any, 4)
	h.pending = make(map[string][]pendingRelation, 4)
	h.nextResultMaps = make(map[string]*mapping.ResultMapping, 2)
	h.prevRowValue = nil
}

// clearCursorState 一个游标读完，行身份缓存作废；跨结果集状态保留
func (h *Handler) clearCursorState() {
	h.nestedResultObjects = make(map[string]any, 16)
	h.ancestors = make(map[string]any, 4)
	h.prevRowValue = nil
}

// HandleResultSets 主入口：依次把每个结果集交给对应的 result map，
// 之后按名字读取剩余结果集，解决跨结果集的待挂接关系
func (h *Handler) HandleResultSets(ctx context.Context, rows *sql.Rows, req Request) ([][]any, error) {
	defer h.reset()

	var results [][]any
	w, err := NewWrapper(rows, h.cfg.Registry)
	if err != nil {
		return nil, err
	}
	resultSetIndex := 0
	for _, rm := range req.ResultMaps {
		if w == nil {
			break
		}
		if err = h.ensureSafety(rm, req); err != nil {
			return nil, err
		}
		collector := &listCollector{}
		rh := req.Handler
		if rh == nil {
			rh = collector.handle
		}
		if err = h.handleRows(ctx, w, rm, rh, req.RowBounds, nil, req.ResultOrdered); err != nil {
			return nil, err
		}
		results = append(results, collector.values)
		h.clearCursorState()
		resultSetIndex++
		w, err = advance(rows, h.cfg.Registry)
		if err != nil {
			return nil, err
		}
	}

	// 命名结果集：每一行通过跨游标 key 挂到早先排队的父对象上
	for w != nil && resultSetIndex < len(req.ResultSets) {
		name := req.ResultSets[resultSetIndex]
		if pm, ok := h.nextResultMaps[name]; ok {
			nestedRm, err := h.cfg.ResultMaps.Get(pm.NestedMapID)
			if err != nil {
				return nil, err
			}
			if err = h.handleRows(ctx, w, nestedRm, nil, mapping.DefaultRowBounds, pm, false); err != nil {
				return nil, err
			}
		}
		h.clearCursorState()
		resultSetIndex++
		if w, err = advance(rows, h.cfg.Registry); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func advance(rows *sql.Rows, reg *types.Registry) (*Wrapper, error) {
	if !rows.NextResultSet() {
		return nil, nil
	}
	return NewWrapper(rows, reg)
}

// ensureSafety 嵌套映射 + 行限制/自定义回调的组合会破坏分组算法，
// 只有 resultOrdered 语句例外
func (h *Handler) ensureSafety(rm *mapping.ResultMap, req Request) error {
	if !rm.HasNestedResultMaps || req.ResultOrdered {
		return nil
	}
	if h.cfg.SafeRowBounds && !req.RowBounds.IsDefault() {
		return errs.ErrUnsafeRowBounds
	}
	if h.cfg.SafeResultHandler && req.Handler != nil {
		return errs.ErrUnsafeResultHandler
	}
	return nil
}

func (h *Handler) handleRows(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	rh mapping.ResultHandler, rb mapping.RowBounds, parentMapping *mapping.ResultMapping, ordered bool) error {
	if rm.HasNestedResultMaps {
		return h.handleNestedRows(ctx, w, rm, rh, rb, parentMapping, ordered)
	}
	return h.handleSimpleRows(ctx, w, rm, rh, rb, parentMapping)
}

// handleSimpleRows 非嵌套映射：一行一个对象
func (h *Handler) handleSimpleRows(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	rh mapping.ResultHandler, rb mapping.RowBounds, parentMapping *mapping.ResultMapping) error {
	rc := mapping.NewResultContext()
	if err := skipRows(w, rb); err != nil {
		return err
	}
	for shouldProcessMore(rc, rb) {
		ok, err := w.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		discriminated, err := h.resolveDiscriminatedResultMap(w, rm, "")
		if err != nil {
			return err
		}
		value, err := h.getRowValueSimple(ctx, w, discriminated, "")
		if err != nil {
			return err
		}
		if err = h.storeObject(rc, rh, value, parentMapping, w); err != nil {
			return err
		}
	}
	return nil
}

func shouldProcessMore(rc *mapping.ResultContext, rb mapping.RowBounds) bool {
	return !rc.Stopped() && rc.ResultCount() < rb.Limit
}

// skipRows 游标只能前进，offset 通过空读实现
func skipRows(w *Wrapper, rb mapping.RowBounds) error {
	for i := 0; i < rb.Offset; i++ {
		ok, err := w.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	return nil
}

// storeObject 本结果集的对象推进上下文；来自命名结果集的行挂到排队的父对象上
func (h *Handler) storeObject(rc *mapping.ResultContext, rh mapping.ResultHandler,
	value any, parentMapping *mapping.ResultMapping, w *Wrapper) error {
	if parentMapping != nil {
		return h.linkToParents(w, parentMapping, value)
	}
	rc.Advance(value)
	if rh == nil {
		return nil
	}
	return rh(rc)
}

// listCollector 默认的结果收集：攒成切片
type listCollector struct {
	values []any
}

func (l *listCollector) handle(rc *mapping.ResultContext) error {
	l.values = append(l.values, rc.Value())
	return nil
}

// resolveDiscriminatedResultMap 鉴别器是迭代解析的：
// 切换到的映射可能又带鉴别器；出现环时停在最后解析出的映射上
func (h *Handler) resolveDiscriminatedResultMap(w *Wrapper, rm *mapping.ResultMap, prefix string) (*mapping.ResultMap, error) {
	seen := map[string]struct{}{rm.ID: {}}
	for rm.Discriminator != nil {
		column := prependPrefix(rm.Discriminator.Mapping.Column, prefix)
		raw, ok := w.Value(column)
		if !ok {
			break
		}
		id := rm.Discriminator.MapIDFor(rawString(raw))
		if id == "" {
			break
		}
		if _, cycle := seen[id]; cycle {
			break
		}
		next, err := h.cfg.ResultMaps.Get(id)
		if err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		rm = next
	}
	return rm, nil
}

// getRowValueSimple 一行 -> 一个对象（无嵌套映射）
func (h *Handler) getRowValueSimple(ctx context.Context, w *Wrapper, rm *mapping.ResultMap, prefix string) (any, error) {
	if v, ok, err := h.createPrimitiveResultObject(w, rm, prefix); ok || err != nil {
		return v, err
	}
	obj, foundValues, err := h.createResultObject(ctx, w, rm, prefix)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	if h.shouldAutoMap(rm, false) {
		found, err := h.applyAutomaticMappings(w, rm, obj, prefix)
		if err != nil {
			return nil, err
		}
		foundValues = found || foundValues
	}
	found, err := h.applyPropertyMappings(ctx, w, rm, obj, prefix)
	if err != nil {
		return nil, err
	}
	foundValues = found || foundValues

	// 什么都没命中时的最后一招：列数和导出字段数一致且逐列有转换器，按位置填
	if !foundValues && len(rm.ResultMappings) == 0 {
		if v, ok, err := h.createByColumnOrder(w, rm); err != nil {
			return nil, err
		} else if ok {
			return v, nil
		}
	}
	if foundValues || h.cfg.ReturnInstanceForEmptyRow {
		return obj, nil
	}
	// 全 null 行：LEFT JOIN 没有子行时的产物，返回 nil 而不是空对象
	return nil, nil
}

// createPrimitiveResultObject 整行折叠成单列且有直接转换器：标量结果
func (h *Handler) createPrimitiveResultObject(w *Wrapper, rm *mapping.ResultMap, prefix string) (any, bool, error) {
	if len(w.ColumnNames()) != 1 {
		return nil, false, nil
	}
	column := w.ColumnNames()[0]
	if len(rm.PropertyMappings) == 1 && rm.PropertyMappings[0].Column != "" {
		column = prependPrefix(rm.PropertyMappings[0].Column, prefix)
	}
	// 结构体和 map 目标必须有专属转换器才算标量，数据库类型兜底不作数
	if k := baseType(rm.Type).Kind(); k == reflect.Struct || k == reflect.Map {
		if !h.cfg.Registry.HasDirect(rm.Type) {
			return nil, false, nil
		}
	}
	if !h.cfg.Registry.Has(rm.Type, w.DBTypeName(column)) {
		return nil, false, nil
	}
	raw, _ := w.Value(column)
	if raw == nil {
		return nil, true, nil
	}
	v, err := w.Handler(rm.Type, column).Result(raw, baseType(rm.Type))
	if err != nil {
		return nil, true, errs.NewErrConvert(column, err)
	}
	return v, true, nil
}

// createResultObject 实例化目标：有构造映射就先求值再构造，否则零值构造
func (h *Handler) createResultObject(ctx context.Context, w *Wrapper, rm *mapping.ResultMap, prefix string) (any, bool, error) {
	if len(rm.ConstructorMappings) == 0 {
		obj, err := reflection.Create(rm.Type)
		return obj, false, err
	}
	props := make([]string, 0, len(rm.ConstructorMappings))
	values := make([]any, 0, len(rm.ConstructorMappings))
	found := false
	for _, cm := range rm.ConstructorMappings {
		var v any
		var err error
		switch {
		case cm.NestedQuery != "":
			// 构造参数的嵌套查询总是立即执行
			v, _, err = h.nestedQueryValue(ctx, w, rm, cm, prefix, nil, false)
		case cm.NestedMapID != "":
			var nested *mapping.ResultMap
			if nested, err = h.cfg.ResultMaps.Get(cm.NestedMapID); err == nil {
				v, err = h.getRowValueSimple(ctx, w, nested, prependPrefix(cm.ColumnPrefix, prefix))
			}
		default:
			v, err = h.columnValue(w, rm, cm, prefix)
		}
		if err != nil {
			return nil, false, err
		}
		if v != nil {
			found = true
		}
		props = append(props, cm.Property)
		values = append(values, v)
	}
	obj, err := reflection.CreateWithProps(rm.Type, props, values)
	return obj, found, err
}

// createByColumnOrder 按位置匹配构造：每个字段类型都要有该位置列的转换器
func (h *Handler) createByColumnOrder(w *Wrapper, rm *mapping.ResultMap) (any, bool, error) {
	fields := reflection.ExportedFields(rm.Type)
	cols := w.ColumnNames()
	if fields == nil || len(fields) != len(cols) {
		return nil, false, nil
	}
	values := make([]any, len(cols))
	for i, col := range cols {
		if !h.cfg.Registry.Has(fields[i].Type, w.DBTypeName(col)) {
			return nil, false, nil
		}
		raw, _ := w.Value(col)
		if raw == nil {
			continue
		}
		v, err := w.Handler(fields[i].Type, col).Result(raw, fields[i].Type)
		if err != nil {
			return nil, false, errs.NewErrConvert(col, err)
		}
		values[i] = v
	}
	obj, err := reflection.CreateByFieldOrder(rm.Type, values)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

func (h *Handler) shouldAutoMap(rm *mapping.ResultMap, nested bool) bool {
	if rm.AutoMapping != nil {
		return *rm.AutoMapping
	}
	if nested {
		return h.cfg.AutoMapping == AutoMappingFull
	}
	return h.cfg.AutoMapping != AutoMappingNone
}

// applyAutomaticMappings 未被映射定义认领的列，按归一化名字找可写属性
func (h *Handler) applyAutomaticMappings(w *Wrapper, rm *mapping.ResultMap, obj any, prefix string) (bool, error) {
	found := false
	for _, column := range w.UnmappedColumns(rm, prefix) {
		prop := column
		if prefix != "" {
			if !strings.HasPrefix(strings.ToUpper(column), strings.ToUpper(prefix)) {
				continue
			}
			prop = column[len(prefix):]
		}
		if isMapType(rm.Type) {
			raw, _ := w.Value(column)
			if raw == nil && !h.cfg.CallSettersOnNulls {
				continue
			}
			if err := reflection.Set(obj, prop, rawNormalized(raw)); err != nil {
				return found, err
			}
			found = found || raw != nil
			continue
		}
		st, err := reflection.SetterType(rm.Type, prop)
		if err != nil {
			switch h.cfg.UnknownColumns {
			case UnknownColumnWarn:
				h.cfg.LogFunc(fmt.Sprintf(`{"event":"unknown_column","column":%q,"resultMap":%q}`, column, rm.ID))
			case UnknownColumnFail:
				return found, errs.NewErrUnknownColumn(column)
			}
			continue
		}
		raw, _ := w.Value(column)
		if raw == nil {
			if h.cfg.CallSettersOnNulls && !primitiveLike(st) {
				if err = reflection.Set(obj, prop, nil); err != nil {
					return found, err
				}
			}
			continue
		}
		v, err := w.Handler(st, column).Result(raw, st)
		if err != nil {
			return found, errs.NewErrConvert(column, err)
		}
		if err = reflection.Set(obj, prop, v); err != nil {
			return found, err
		}
		found = true
	}
	return found, nil
}

// applyPropertyMappings 显式映射的非嵌套属性逐个求值写入。
// 值的来源分三路：复合参数嵌套查询、挂到其它结果集、普通列
func (h *Handler) applyPropertyMappings(ctx context.Context, w *Wrapper, rm *mapping.ResultMap, obj any, prefix string) (bool, error) {
	found := false
	for _, pm := range rm.PropertyMappings {
		if pm.NestedMapID != "" && pm.ResultSet == "" {
			// 嵌套结果映射由 applyNestedResultMappings 处理
			continue
		}
		if pm.ResultSet != "" {
			// 值在另一个结果集里，先排队
			h.addPendingChildRelation(w, obj, pm)
			found = true
			continue
		}
		if pm.NestedQuery != "" {
			v, deferred, err := h.nestedQueryValue(ctx, w, rm, pm, prefix, obj, true)
			if err != nil {
				return found, err
			}
			if deferred {
				found = true
				continue
			}
			if v != nil {
				found = true
				if err = reflection.Set(obj, pm.Property, v); err != nil {
					return found, err
				}
			} else if h.cfg.CallSettersOnNulls && !primitiveLike(h.targetType(rm, pm)) {
				if err = reflection.Set(obj, pm.Property, nil); err != nil {
					return found, err
				}
			}
			continue
		}
		if pm.Column == "" {
			continue
		}
		column := prependPrefix(pm.Column, prefix)
		if !w.HasColumn(column) {
			continue
		}
		v, err := h.columnValue(w, rm, pm, prefix)
		if err != nil {
			return found, err
		}
		if v == nil {
			if h.cfg.CallSettersOnNulls && !primitiveLike(h.targetType(rm, pm)) {
				if err = reflection.Set(obj, pm.Property, nil); err != nil {
					return found, err
				}
			}
			continue
		}
		found = true
		if err = reflection.Set(obj, pm.Property, v); err != nil {
			return found, err
		}
	}
	return found, nil
}

// columnValue 普通列的取值 + 转换，null 原样返回 nil
func (h *Handler) columnValue(w *Wrapper, rm *mapping.ResultMap, pm *mapping.ResultMapping, prefix string) (any, error) {
	column := prependPrefix(pm.Column, prefix)
	raw, ok := w.Value(column)
	if !ok || raw == nil {
		return nil, nil
	}
	target := h.targetType(rm, pm)
	var handler types.TypeHandler
	switch {
	case pm.TypeHandler != nil:
		handler = pm.TypeHandler
	case target == nil:
		// 映射点名的属性在目标类型上不存在，配置错误，首次使用即报
		return nil, errs.NewErrUnknownProperty(rm.Type.String(), pm.Property)
	default:
		handler = w.Handler(target, column)
	}
	v, err := handler.Result(raw, target)
	if err != nil {
		return nil, errs.NewErrConvert(column, err)
	}
	return v, nil
}

// targetType 属性的目标类型：显式声明 > 从属性推导
func (h *Handler) targetType(rm *mapping.ResultMap, pm *mapping.ResultMapping) reflect.Type {
	if pm.GoType != nil {
		return pm.GoType
	}
	if pm.Property == "" {
		return nil
	}
	t, err := reflection.SetterType(rm.Type, pm.Property)
	if err != nil {
		return nil
	}
	return t
}

var lazyType = reflect.TypeOf(&Lazy{})

// nestedQueryValue 嵌套查询三种归宿：外部缓存命中直接取值、
// 延迟属性写入 Lazy 替身、立即执行
func (h *Handler) nestedQueryValue(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	pm *mapping.ResultMapping, prefix string, obj any, allowLazy bool) (any, bool, error) {
	param := h.nestedQueryParam(w, pm, prefix)
	if param == nil {
		// 本行没为子查询贡献任何参数值
		return nil, false, nil
	}
	target := h.targetType(rm, pm)
	if vals, ok := h.executor.CachedNested(pm.NestedQuery, param); ok {
		v, err := shapeNested(vals, target)
		return v, false, err
	}
	if allowLazy && pm.Lazy && h.cfg.LazyLoading && target == lazyType {
		id := pm.NestedQuery
		loader := func() (any, error) {
			vals, err := h.executor.QueryNested(ctx, id, param)
			if err != nil {
				return nil, err
			}
			return shapeNested(vals, nil)
		}
		if err := reflection.Set(obj, pm.Property, NewLazy(loader)); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}
	vals, err := h.executor.QueryNested(ctx, pm.NestedQuery, param)
	if err != nil {
		return nil, false, err
	}
	v, err := shapeNested(vals, target)
	return v, false, err
}

// nestedQueryParam 单列参数直接取值；复合键把多列拼成 name -> value 的 map
func (h *Handler) nestedQueryParam(w *Wrapper, pm *mapping.ResultMapping, prefix string) any {
	if len(pm.Composites) > 0 {
		m := make(map[string]any, len(pm.Composites))
		anyValue := false
		for _, c := range pm.Composites {
			raw, _ := w.Value(prependPrefix(c.Column, prefix))
			if raw != nil {
				anyValue = true
			}
			m[c.Property] = rawNormalized(raw)
		}
		if !anyValue {
			return nil
		}
		return m
	}
	raw, ok := w.Value(prependPrefix(pm.Column, prefix))
	if !ok || raw == nil {
		return nil
	}
	return rawNormalized(raw)
}

// shapeNested 子查询结果对齐目标属性：集合属性建切片，单值属性要求至多一行
func shapeNested(vals []any, target reflect.Type) (any, error) {
	if target != nil && reflection.IsCollection(target) {
		base := target
		for base.Kind() == reflect.Ptr {
			base = base.Elem()
		}
		slice := reflect.MakeSlice(base, 0, len(vals))
		for _, v := range vals {
			rv := reflect.ValueOf(v)
			if rv.Type().AssignableTo(base.Elem()) {
				slice = reflect.Append(slice, rv)
			} else if rv.Type().ConvertibleTo(base.Elem()) {
				slice = reflect.Append(slice, rv.Convert(base.Elem()))
			} else {
				return nil, errs.NewErrConvert(base.Elem().String(), errs.NewErrCreateInstance(rv.Type().String()))
			}
		}
		return slice.Interface(), nil
	}
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		return vals[0], nil
	default:
		return nil, errs.ErrTooManyResults
	}
}

func prependPrefix(column, prefix string) string {
	if column == "" || prefix == "" {
		return column
	}
	return prefix + column
}

// rawString 鉴别器和跨结果集 key 用的字符串形式
func rawString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// rawNormalized []byte 的文本列转成 string，其余原样
func rawNormalized(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func baseType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func isMapType(t reflect.Type) bool {
	return baseType(t).Kind() == reflect.Map
}

// primitiveLike 不可为 nil 的基础类型，callSettersOnNulls 也不会对它们写 null
func primitiveLike(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	}
	return false
}
