package resultset

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/27392/mybatis-3-sub000/mapping"
	"github.com/27392/mybatis-3-sub000/reflection"
)

// handleNestedRows 嵌套映射的行循环：同一父身份的连续或离散行折叠进同一个对象。
// 普通模式靠身份表跨行找回部分对象；ordered 模式只保留在途的一个父对象，
// 父身份一变就把上一个冲出去，身份表随之清空
func (h *Handler) handleNestedRows(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	rh mapping.ResultHandler, rb mapping.RowBounds, parentMapping *mapping.ResultMapping, ordered bool) error {
	rc := mapping.NewResultContext()
	if err := skipRows(w, rb); err != nil {
		return err
	}
	rowValue := h.prevRowValue
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
		rowKey, err := h.createRowKey(discriminated, w, "")
		if err != nil {
			return err
		}
		var partial any
		if rowKey.Identifying() {
			partial = h.nestedResultObjects[rowKey.Key()]
		}
		if ordered {
			if partial == nil && rowValue != nil {
				// 新的父身份出现，上一个父对象已完整
				h.nestedResultObjects = make(map[string]any, 16)
				if err = h.storeObject(rc, rh, rowValue, parentMapping, w); err != nil {
					return err
				}
			}
			if rowValue, err = h.getNestedRowValue(ctx, w, discriminated, rowKey, "", partial); err != nil {
				return err
			}
		} else {
			if rowValue, err = h.getNestedRowValue(ctx, w, discriminated, rowKey, "", partial); err != nil {
				return err
			}
			if partial == nil {
				if err = h.storeObject(rc, rh, rowValue, parentMapping, w); err != nil {
					return err
				}
			}
		}
	}
	if rowValue != nil && ordered && shouldProcessMore(rc, rb) {
		if err := h.storeObject(rc, rh, rowValue, parentMapping, w); err != nil {
			return err
		}
		h.prevRowValue = nil
	} else if rowValue != nil {
		h.prevRowValue = rowValue
	}
	return nil
}

// getNestedRowValue 组合身份已有部分对象时只补嵌套属性；
// 没有时走完整构建：构造 -> 自动映射 -> 显式属性 -> 嵌套属性，
// 构建期间把自己挂进祖先表，自引用的嵌套映射直接复用祖先
func (h *Handler) getNestedRowValue(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	combinedKey *CacheKey, prefix string, partial any) (any, error) {
	if partial != nil {
		h.ancestors[rm.ID] = partial
		_, err := h.applyNestedResultMappings(ctx, w, rm, partial, prefix, combinedKey, false)
		delete(h.ancestors, rm.ID)
		if err != nil {
			return nil, err
		}
		return partial, nil
	}

	if v, ok, err := h.createPrimitiveResultObject(w, rm, prefix); ok || err != nil {
		return v, err
	}
	rowValue, foundValues, err := h.createResultObject(ctx, w, rm, prefix)
	if err != nil {
		return nil, err
	}
	if rowValue != nil {
		if h.shouldAutoMap(rm, true) {
			found, err := h.applyAutomaticMappings(w, rm, rowValue, prefix)
			if err != nil {
				return nil, err
			}
			foundValues = found || foundValues
		}
		found, err := h.applyPropertyMappings(ctx, w, rm, rowValue, prefix)
		if err != nil {
			return nil, err
		}
		foundValues = found || foundValues

		h.ancestors[rm.ID] = rowValue
		found, err = h.applyNestedResultMappings(ctx, w, rm, rowValue, prefix, combinedKey, true)
		delete(h.ancestors, rm.ID)
		if err != nil {
			return nil, err
		}
		foundValues = found || foundValues

		if !foundValues && !h.cfg.ReturnInstanceForEmptyRow {
			rowValue = nil
		}
	}
	if combinedKey.Identifying() {
		h.nestedResultObjects[combinedKey.Key()] = rowValue
	}
	return rowValue, nil
}

// applyNestedResultMappings 处理本映射里引用别的 result map 的属性。
// 每个嵌套属性：解析目标映射（含鉴别器）-> 祖先复用 -> 组合身份查重 ->
// 非空守卫 -> 递归构建 -> 挂接（集合追加，关联直写）
func (h *Handler) applyNestedResultMappings(ctx context.Context, w *Wrapper, rm *mapping.ResultMap,
	parent any, parentPrefix string, parentRowKey *CacheKey, newObject bool) (bool, error) {
	foundValues := false
	for _, pm := range rm.PropertyMappings {
		if pm.NestedMapID == "" || pm.ResultSet != "" {
			continue
		}
		prefix := parentPrefix + pm.ColumnPrefix
		nestedRm, err := h.cfg.ResultMaps.Get(pm.NestedMapID)
		if err != nil {
			return foundValues, err
		}
		if nestedRm, err = h.resolveDiscriminatedResultMap(w, nestedRm, prefix); err != nil {
			return foundValues, err
		}
		if pm.ColumnPrefix == "" {
			// 自引用：目标映射正在上层构建中，直接挂祖先，不再递归。
			// 带前缀说明两次出现取的是不同列，不能复用
			if ancestor, ok := h.lookupAncestor(pm.NestedMapID, nestedRm.ID); ok {
				if newObject {
					if err = h.link(parent, pm, ancestor); err != nil {
						return foundValues, err
					}
				}
				continue
			}
		}
		rowKey, err := h.createRowKey(nestedRm, w, prefix)
		if err != nil {
			return foundValues, err
		}
		combinedKey := combineKeys(rowKey, parentRowKey)
		var known any
		if combinedKey.Identifying() {
			known = h.nestedResultObjects[combinedKey.Key()]
		}
		// 集合属性先保证非 nil，空集合也要可见
		if err = h.instantiateCollection(parent, pm); err != nil {
			return foundValues, err
		}
		if !h.anyNotNullColumnHasValue(w, pm, prefix) {
			continue
		}
		rowValue, err := h.getNestedRowValue(ctx, w, nestedRm, combinedKey, prefix, known)
		if err != nil {
			return foundValues, err
		}
		if rowValue != nil && known == nil {
			if err = h.link(parent, pm, rowValue); err != nil {
				return foundValues, err
			}
			foundValues = true
		}
	}
	return foundValues, nil
}

func (h *Handler) lookupAncestor(declaredID, discriminatedID string) (any, bool) {
	if v, ok := h.ancestors[declaredID]; ok {
		return v, true
	}
	v, ok := h.ancestors[discriminatedID]
	return v, ok
}

// anyNotNullColumnHasValue 配置了非空守卫列时，全 null 不生成子对象
func (h *Handler) anyNotNullColumnHasValue(w *Wrapper, pm *mapping.ResultMapping, prefix string) bool {
	if len(pm.NotNullCols) == 0 {
		return true
	}
	for _, c := range pm.NotNullCols {
		if v, ok := w.Value(prependPrefix(c, prefix)); ok && v != nil {
			return true
		}
	}
	return false
}

// instantiateCollection 集合属性当前为 nil 时放一个空切片进去
func (h *Handler) instantiateCollection(parent any, pm *mapping.ResultMapping) error {
	t, err := reflection.SetterType(reflect.TypeOf(parent), pm.Property)
	if err != nil || t.Kind() != reflect.Slice {
		return nil
	}
	cur, err := reflection.Get(parent, pm.Property)
	if err == nil && cur != nil && !reflect.ValueOf(cur).IsNil() {
		return nil
	}
	return reflection.Set(parent, pm.Property, reflect.MakeSlice(t, 0, 4).Interface())
}

// link 集合属性读-追加-写回，关联属性直接写
func (h *Handler) link(parent any, pm *mapping.ResultMapping, value any) error {
	t, err := reflection.SetterType(reflect.TypeOf(parent), pm.Property)
	if err != nil || t.Kind() != reflect.Slice {
		return reflection.Set(parent, pm.Property, value)
	}
	cur, err := reflection.Get(parent, pm.Property)
	if err != nil {
		return err
	}
	slice := reflect.ValueOf(cur)
	if cur == nil || slice.IsNil() {
		slice = reflect.MakeSlice(t, 0, 4)
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(t.Elem()) && rv.Type().ConvertibleTo(t.Elem()) {
		rv = rv.Convert(t.Elem())
	}
	return reflection.Set(parent, pm.Property, reflect.Append(slice, rv).Interface())
}

// createRowKey 行身份：映射 id 起手，然后按优先级取列值对
// id 映射 > 全部非嵌套显式映射 > 自动映射兜底。
// 贡献值不足两个（只有映射 id）时没有稳定身份，返回哨兵
func (h *Handler) createRowKey(rm *mapping.ResultMap, w *Wrapper, prefix string) (*CacheKey, error) {
	key := NewCacheKey()
	key.Update(rm.ID)
	mappings := rm.IDMappings
	if len(mappings) == 0 {
		mappings = rm.PropertyMappings
	}
	contributed := false
	for _, pm := range mappings {
		if !pm.IsSimple() || pm.Column == "" {
			continue
		}
		column := prependPrefix(pm.Column, prefix)
		if !w.HasColumn(column) {
			continue
		}
		v, err := h.columnValue(w, rm, pm, prefix)
		if err != nil {
			return nil, err
		}
		if v != nil {
			key.Update(column)
			key.Update(v)
			contributed = true
		}
	}
	if !contributed {
		h.rowKeyFallback(rm, w, key, prefix)
	}
	if key.Count() < 2 {
		return NullKey, nil
	}
	return key, nil
}

// rowKeyFallback 没有任何显式列值可用时：map 目标拿整行，
// 结构体目标拿名字能对上可写属性的未映射列
func (h *Handler) rowKeyFallback(rm *mapping.ResultMap, w *Wrapper, key *CacheKey, prefix string) {
	if isMapType(rm.Type) {
		for _, column := range w.ColumnNames() {
			if v, ok := w.Value(column); ok && v != nil {
				key.Update(column)
				key.Update(rawString(v))
			}
		}
		return
	}
	for _, column := range w.UnmappedColumns(rm, prefix) {
		prop := column
		if prefix != "" {
			if !strings.HasPrefix(strings.ToUpper(column), strings.ToUpper(prefix)) {
				continue
			}
			prop = column[len(prefix):]
		}
		if !reflection.HasSetter(rm.Type, prop) {
			continue
		}
		if v, ok := w.Value(column); ok && v != nil {
			key.Update(column)
			key.Update(rawString(v))
		}
	}
}

// addPendingChildRelation 值在后面的结果集里：按外键列值排队，等挂接
func (h *Handler) addPendingChildRelation(w *Wrapper, obj any, pm *mapping.ResultMapping) {
	key := createKeyForMultipleResults(w, pm, pm.Column, pm.Column)
	h.pending[key.Key()] = append(h.pending[key.Key()], pendingRelation{obj: obj, mapping: pm})
	if _, ok := h.nextResultMaps[pm.ResultSet]; !ok {
		h.nextResultMaps[pm.ResultSet] = pm
	}
}

// linkToParents 命名结果集的一行，按外键找到所有排队的父对象挂上去
func (h *Handler) linkToParents(w *Wrapper, pm *mapping.ResultMapping, value any) error {
	key := createKeyForMultipleResults(w, pm, pm.Column, pm.ForeignCol)
	for _, rel := range h.pending[key.Key()] {
		if err := h.instantiateCollection(rel.obj, rel.mapping); err != nil {
			return err
		}
		if value == nil {
			continue
		}
		if err := h.link(rel.obj, rel.mapping, value); err != nil {
			return err
		}
	}
	return nil
}

// createKeyForMultipleResults 跨结果集配对的 key：
// 父侧用本行的列值，子侧用外键列值，名字统一用父侧列名
func createKeyForMultipleResults(w *Wrapper, pm *mapping.ResultMapping, names, columns string) *CacheKey {
	key := NewCacheKey()
	key.Update(fmt.Sprintf("%p", pm))
	if names == "" || columns == "" {
		return key
	}
	nameList := strings.Split(names, ",")
	columnList := strings.Split(columns, ",")
	for i := range columnList {
		if i >= len(nameList) {
			break
		}
		v, ok := w.Value(strings.TrimSpace(columnList[i]))
		if !ok || v == nil {
			continue
		}
		key.Update(strings.TrimSpace(nameList[i]))
		key.Update(rawString(v))
	}
	return key
}
