package mapping

// ResultContext 每产出一个结果对象，处理器就推进一次上下文。
// 回调里调用 Stop 可以让两种行循环都在取下一行之前停下来
type ResultContext struct {
	value   any
	count   int
	stopped bool
}

// NewResultContext 一次语句执行一个
func NewResultContext() *ResultContext {
	return &ResultContext{}
}

// Value 当前结果对象
func (rc *ResultContext) Value() any {
	return rc.value
}

// ResultCount 已经产出的对象数
func (rc *ResultContext) ResultCount() int {
	return rc.count
}

// Stop 通知行循环不要再读了
func (rc *ResultContext) Stop() {
	rc.stopped = true
}

// Stopped 行循环在 Next 之前检查
func (rc *ResultContext) Stopped() bool {
	return rc.stopped
}

// Advance 结果集处理器推进到下一个对象
func (rc *ResultContext) Advance(value any) {
	rc.value = value
	rc.count++
}

// ResultHandler 自定义的逐对象回调，替代默认的收集到切片
type ResultHandler func(rc *ResultContext) error
