package types

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/gotomicro/ekit"
)

// TypeHandler 列值转换器：把驱动返回的原始值转换成目标 Go 类型
// driver 返回的原始值只有 int64/float64/bool/[]byte/string/time.Time/nil 几种
type TypeHandler interface {
	Result(src any, target reflect.Type) (any, error)
}

// HandlerFunc 函数式的 TypeHandler
type HandlerFunc func(src any, target reflect.Type) (any, error)

func (f HandlerFunc) Result(src any, target reflect.Type) (any, error) {
	return f(src, target)
}

func toBytes(src any) []byte {
	switch v := src.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func toInt64(src any) (int64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return strconv.ParseInt(string(toBytes(src)), 10, 64)
	}
}

func toUint64(src any) (uint64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case int64:
		return uint64(v), nil
	case float64:
		return uint64(v), nil
	default:
		return strconv.ParseUint(string(toBytes(src)), 10, 64)
	}
}

func toFloat64(src any) (float64, error) {
	switch v := src.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	default:
		return strconv.ParseFloat(string(toBytes(src)), 64)
	}
}

func toBool(src any) (bool, error) {
	switch v := src.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	default:
		return strconv.ParseBool(string(toBytes(src)))
	}
}

func toString(src any) string {
	switch v := src.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// 常见的时间格式，MySQL 的 DATETIME 文本和 RFC3339 都要能读
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(src any) (time.Time, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0), nil
	default:
		s := string(toBytes(src))
		var lastErr error
		for _, layout := range timeLayouts {
			t, err := time.Parse(layout, s)
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		return time.Time{}, lastErr
	}
}

// intHandler 一组整数目标共用，按 target kind 收窄
func intHandler(src any, target reflect.Type) (any, error) {
	if src == nil {
		return reflect.Zero(target).Interface(), nil
	}
	i, err := toInt64(src)
	if err != nil {
		return nil, err
	}
	v := reflect.New(target).Elem()
	v.SetInt(i)
	return v.Interface(), nil
}

func uintHandler(src any, target reflect.Type) (any, error) {
	if src == nil {
		return reflect.Zero(target).Interface(), nil
	}
	u, err := toUint64(src)
	if err != nil {
		return nil, err
	}
	v := reflect.New(target).Elem()
	v.SetUint(u)
	return v.Interface(), nil
}

func floatHandler(src any, target reflect.Type) (any, error) {
	if src == nil {
		return reflect.Zero(target).Interface(), nil
	}
	f, err := toFloat64(src)
	if err != nil {
		return nil, err
	}
	v := reflect.New(target).Elem()
	v.SetFloat(f)
	return v.Interface(), nil
}

func boolHandler(src any, _ reflect.Type) (any, error) {
	return toBool(src)
}

func stringHandler(src any, _ reflect.Type) (any, error) {
	return toString(src), nil
}

func bytesHandler(src any, _ reflect.Type) (any, error) {
	if src == nil {
		return []byte(nil), nil
	}
	return toBytes(src), nil
}

func timeHandler(src any, _ reflect.Type) (any, error) {
	return toTime(src)
}

func nullStringHandler(src any, _ reflect.Type) (any, error) {
	if src == nil {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: toString(src), Valid: true}, nil
}

func nullInt64Handler(src any, _ reflect.Type) (any, error) {
	if src == nil {
		return sql.NullInt64{}, nil
	}
	i, err := toInt64(src)
	if err != nil {
		return nil, err
	}
	return sql.NullInt64{Int64: i, Valid: true}, nil
}

func nullFloat64Handler(src any, _ reflect.Type) (any, error) {
	if src == nil {
		return sql.NullFloat64{}, nil
	}
	f, err := toFloat64(src)
	if err != nil {
		return nil, err
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}

func nullBoolHandler(src any, _ reflect.Type) (any, error) {
	if src == nil {
		return sql.NullBool{}, nil
	}
	b, err := toBool(src)
	if err != nil {
		return nil, err
	}
	return sql.NullBool{Bool: b, Valid: true}, nil
}

// unknownHandler 兜底转换器：没有命中任何注册项时使用
// 能转就转，转不了原样透传，交给 reflection.Set 的宽松赋值
func unknownHandler(src any, target reflect.Type) (any, error) {
	if src == nil || target == nil {
		return src, nil
	}
	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	av := ekit.AnyValue{Val: src}
	switch target.Kind() {
	case reflect.String:
		return toString(src), nil
	case reflect.Bool:
		if b, err := av.Bool(); err == nil {
			return b, nil
		}
		return toBool(src)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intHandler(src, target)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintHandler(src, target)
	case reflect.Float32, reflect.Float64:
		return floatHandler(src, target)
	default:
		sv := reflect.ValueOf(src)
		if sv.Type().ConvertibleTo(target) {
			return sv.Convert(target).Interface(), nil
		}
		return src, nil
	}
}
