package errs

import (
	"errors"
	"fmt"
)

// 模板求值、结果集映射相关的错误定义都放在这里
// 错误信息统一使用 mybatis: 前缀，方便定位
var (
	// ErrPointerOnly 只支持指向结构体的一级指针作为映射目标
	ErrPointerOnly = errors.New("mybatis: 只支持一级指针作为输入，例如 *User")

	// ErrNilIterable foreach 的集合表达式求值结果是 nil，而且没有开启 nullable
	ErrNilIterable = errors.New("mybatis: foreach 遍历的集合为 nil，如允许请设置 nullable")

	// ErrNoRows 没有查询到任何数据
	ErrNoRows = errors.New("mybatis: 未找到数据")

	// ErrMappedStatementNotFound 语句 id 没有注册
	ErrMappedStatementNotFound = errors.New("mybatis: 未注册的语句 id")

	// ErrUnsafeRowBounds 嵌套映射 + 行数限制的组合是不安全的
	// 分组算法要么整体缓冲，要么依赖 resultOrdered，任意截断都会破坏分组
	ErrUnsafeRowBounds = errors.New("mybatis: 嵌套映射未标记 resultOrdered 时不允许使用 RowBounds")

	// ErrUnsafeResultHandler 嵌套映射 + 自定义行回调的组合是不安全的
	ErrUnsafeResultHandler = errors.New("mybatis: 嵌套映射未标记 resultOrdered 时不允许使用自定义 ResultHandler")

	// ErrTooManyResults 期望单个结果，却查到了多行
	ErrTooManyResults = errors.New("mybatis: 期望一个结果，但是查询到了多行")
)

// NewErrIterableType foreach 表达式的结果不可遍历
func NewErrIterableType(val any) error {
	return fmt.Errorf("mybatis: foreach 不支持遍历类型 %T", val)
}

// NewErrUnknownFragment 引用了未注册的 sql 片段
func NewErrUnknownFragment(id string) error {
	return fmt.Errorf("mybatis: 未注册的 sql 片段 %q", id)
}

// NewErrUnknownResultMap 引用了未注册的 result map
func NewErrUnknownResultMap(id string) error {
	return fmt.Errorf("mybatis: 未注册的 result map %q", id)
}

// NewErrUnknownProperty 目标类型上不存在这个属性
func NewErrUnknownProperty(typ, prop string) error {
	return fmt.Errorf("mybatis: 类型 %s 上不存在属性 %q", typ, prop)
}

// NewErrUnknownColumn 结果集中出现了无法映射的列（Fail 模式下）
func NewErrUnknownColumn(col string) error {
	return fmt.Errorf("mybatis: 无法映射的列 %q", col)
}

// NewErrCreateInstance 无法实例化映射目标
func NewErrCreateInstance(typ string) error {
	return fmt.Errorf("mybatis: 无法实例化类型 %s，没有可用的构造方式", typ)
}

// NewErrConvert 类型转换失败，附带列信息
func NewErrConvert(column string, err error) error {
	return fmt.Errorf("mybatis: 列 %q 转换失败: %w", column, err)
}

// NewErrExpression 表达式本身非法
func NewErrExpression(expr string, msg string) error {
	return fmt.Errorf("mybatis: 非法表达式 %q: %s", expr, msg)
}

// NewErrBindingCollision foreach 生成的名字和已有绑定冲突
func NewErrBindingCollision(name string) error {
	return fmt.Errorf("mybatis: 绑定名冲突 %q", name)
}

// NewErrInvalidPropertyPath 属性路径非法，例如 a..b 或者 a[x]
func NewErrInvalidPropertyPath(path string) error {
	return fmt.Errorf("mybatis: 非法属性路径 %q", path)
}
