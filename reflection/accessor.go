package reflection

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/27392/mybatis-3-sub000/internal/errs"
)

// 属性访问能力：按照 "a.b[0].c" 这样的路径在任意对象上取值/赋值
// 结果集映射器只依赖这一层，不直接操作 reflect

// pathSegment 路径中的一段，name 可能带一个下标
type pathSegment struct {
	name  string
	index int  // 下标值
	hasIx bool // 是否带下标，例如 children[0]
}

// parsePath 将 "a.b[0]" 切分成段
func parsePath(path string) ([]pathSegment, error) {
	if path == "" {
		return nil, errs.NewErrInvalidPropertyPath(path)
	}
	parts := strings.Split(path, ".")
	segs := make([]pathSegment, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, errs.NewErrInvalidPropertyPath(path)
		}
		seg := pathSegment{name: p}
		if i := strings.IndexByte(p, '['); i >= 0 {
			if !strings.HasSuffix(p, "]") {
				return nil, errs.NewErrInvalidPropertyPath(path)
			}
			ix, err := strconv.Atoi(p[i+1 : len(p)-1])
			if err != nil {
				return nil, errs.NewErrInvalidPropertyPath(path)
			}
			seg.name = p[:i]
			seg.index = ix
			seg.hasIx = true
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// Get 按路径取值。中途遇到 nil 指针或者不存在的 map key 时返回 nil 而不是报错，
// 这样上层可以把 "父对象还没有创建" 和 "值就是 null" 统一处理
func Get(obj any, path string) (any, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	val := reflect.ValueOf(obj)
	for _, seg := range segs {
		val = indirect(val)
		if !val.IsValid() {
			return nil, nil
		}
		val, err = getSegment(val, seg)
		if err != nil {
			return nil, err
		}
		if !val.IsValid() {
			return nil, nil
		}
	}
	val = indirect(val)
	if !val.IsValid() {
		return nil, nil
	}
	return val.Interface(), nil
}

func getSegment(val reflect.Value, seg pathSegment) (reflect.Value, error) {
	switch val.Kind() {
	case reflect.Struct:
		fd, ok := fieldByPropertyName(val.Type(), seg.name)
		if !ok {
			return reflect.Value{}, errs.NewErrUnknownProperty(val.Type().String(), seg.name)
		}
		v := val.FieldByIndex(fd.Index)
		return indexInto(v, seg)
	case reflect.Map:
		v := val.MapIndex(reflect.ValueOf(seg.name))
		if !v.IsValid() {
			return reflect.Value{}, nil
		}
		// map[string]any 取出来是 interface，拆掉一层
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		return indexInto(v, seg)
	default:
		return reflect.Value{}, errs.NewErrUnknownProperty(val.Type().String(), seg.name)
	}
}

// indexInto 处理 children[0] 这种带下标的段
func indexInto(v reflect.Value, seg pathSegment) (reflect.Value, error) {
	if !seg.hasIx {
		return v, nil
	}
	v = indirect(v)
	if !v.IsValid() {
		return reflect.Value{}, nil
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, errs.NewErrInvalidPropertyPath(seg.name)
	}
	if seg.index < 0 || seg.index >= v.Len() {
		return reflect.Value{}, nil
	}
	return v.Index(seg.index), nil
}

// Set 按路径赋值。obj 必须是指针或者 map。
// 中间段如果是 nil 指针会自动 new 出来，和 Java 里 MetaObject 的行为一致
func Set(obj any, path string, value any) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr && val.Kind() != reflect.Map {
		return errs.ErrPointerOnly
	}
	for i, seg := range segs {
		last := i == len(segs)-1
		// 先把指针链走到底，路上 nil 的补上
		for val.Kind() == reflect.Ptr {
			if val.IsNil() {
				if !val.CanSet() {
					return errs.NewErrInvalidPropertyPath(path)
				}
				val.Set(reflect.New(val.Type().Elem()))
			}
			val = val.Elem()
		}
		switch val.Kind() {
		case reflect.Struct:
			fd, ok := fieldByPropertyName(val.Type(), seg.name)
			if !ok {
				return errs.NewErrUnknownProperty(val.Type().String(), seg.name)
			}
			fv := val.FieldByIndex(fd.Index)
			if !fv.CanSet() {
				return errs.NewErrUnknownProperty(val.Type().String(), seg.name)
			}
			if last && !seg.hasIx {
				return assign(fv, value)
			}
			if seg.hasIx {
				iv, err := indexInto(fv, seg)
				if err != nil {
					return err
				}
				if !iv.IsValid() {
					return errs.NewErrInvalidPropertyPath(path)
				}
				if last {
					return assign(iv, value)
				}
				val = iv
				continue
			}
			val = fv
		case reflect.Map:
			if val.IsNil() {
				return errs.NewErrInvalidPropertyPath(path)
			}
			if last && !seg.hasIx {
				var mv reflect.Value
				if value == nil {
					mv = reflect.Zero(val.Type().Elem())
				} else {
					mv = reflect.ValueOf(value)
				}
				val.SetMapIndex(reflect.ValueOf(seg.name), mv)
				return nil
			}
			inner := val.MapIndex(reflect.ValueOf(seg.name))
			if !inner.IsValid() {
				return errs.NewErrInvalidPropertyPath(path)
			}
			if inner.Kind() == reflect.Interface {
				inner = inner.Elem()
			}
			val = inner
		default:
			return errs.NewErrUnknownProperty(val.Type().String(), seg.name)
		}
	}
	return nil
}

// assign 把 value 赋给 dst，能转换的尽量转换
func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
		return nil
	}
	// *T 字段接收 T 值
	if dst.Kind() == reflect.Ptr && v.Type().AssignableTo(dst.Type().Elem()) {
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(v)
		dst.Set(p)
		return nil
	}
	if v.Type().ConvertibleTo(dst.Type()) {
		dst.Set(v.Convert(dst.Type()))
		return nil
	}
	return errs.NewErrConvert(dst.Type().String(), errs.NewErrUnknownProperty(v.Type().String(), dst.Type().String()))
}

// HasGetter 类型上是否存在这个可读路径
func HasGetter(typ reflect.Type, path string) bool {
	_, err := GetterType(typ, path)
	return err == nil
}

// HasSetter 类型上是否存在这个可写路径
// map 类型任何名字都可写
func HasSetter(typ reflect.Type, path string) bool {
	_, err := SetterType(typ, path)
	return err == nil
}

// GetterType 路径最终指向的类型
func GetterType(typ reflect.Type, path string) (reflect.Type, error) {
	return walkType(typ, path)
}

// SetterType 赋值时期望的类型，和 GetterType 一致
func SetterType(typ reflect.Type, path string) (reflect.Type, error) {
	return walkType(typ, path)
}

func walkType(typ reflect.Type, path string) (reflect.Type, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	cur := typ
	for _, seg := range segs {
		for cur.Kind() == reflect.Ptr {
			cur = cur.Elem()
		}
		switch cur.Kind() {
		case reflect.Struct:
			fd, ok := fieldByPropertyName(cur, seg.name)
			if !ok {
				return nil, errs.NewErrUnknownProperty(cur.String(), seg.name)
			}
			cur = fd.Type
		case reflect.Map:
			cur = cur.Elem()
		case reflect.Interface:
			// map[string]any 的 value，类型信息到此为止
			return cur, nil
		default:
			return nil, errs.NewErrUnknownProperty(cur.String(), seg.name)
		}
		if seg.hasIx {
			for cur.Kind() == reflect.Ptr {
				cur = cur.Elem()
			}
			if cur.Kind() != reflect.Slice && cur.Kind() != reflect.Array {
				return nil, errs.NewErrInvalidPropertyPath(path)
			}
			cur = cur.Elem()
		}
	}
	return cur, nil
}

// fieldByPropertyName 字段查找顺序：精确命中 > 忽略大小写 > 下划线归一化
// item_id 既能匹配 ItemId 也能匹配 ItemID
func fieldByPropertyName(typ reflect.Type, name string) (reflect.StructField, bool) {
	if fd, ok := typ.FieldByName(name); ok && fd.IsExported() {
		return fd, true
	}
	target := NormalizeName(name)
	for i := 0; i < typ.NumField(); i++ {
		fd := typ.Field(i)
		if !fd.IsExported() {
			continue
		}
		if NormalizeName(fd.Name) == target {
			return fd, true
		}
	}
	return reflect.StructField{}, false
}

// NormalizeName 去掉下划线并全部小写，用于列名和属性名的宽松匹配
// ITEM_ID、item_id、ItemId 归一化后都是 itemid
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
