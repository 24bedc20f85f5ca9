package mapping

import "math"

// NoRowOffset 不跳过任何行
const NoRowOffset = 0

// NoRowLimit 不限制行数
const NoRowLimit = math.MaxInt

// RowBounds 行范围。结果集处理器只会向前跳过 Offset 行，不做游标回退
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultRowBounds 全量读取
var DefaultRowBounds = RowBounds{Offset: NoRowOffset, Limit: NoRowLimit}

// IsDefault 是否没有施加任何限制
func (rb RowBounds) IsDefault() bool {
	return rb.Offset == NoRowOffset && rb.Limit == NoRowLimit
}
