package resultset

// Lazy 延迟加载的显式替身：未加载标志 + 加载闭包。
// 第一次 Get 才真正执行嵌套查询，之后复用结果。
// 属性的目标类型是 *Lazy 时，映射器写入替身而不是立即执行查询
type Lazy struct {
	loaded bool
	value  any
	load   func() (any, error)
}

// NewLazy 以加载闭包构造替身
func NewLazy(load func() (any, error)) *Lazy {
	return &Lazy{load: load}
}

// NewLoadedLazy 已有值的替身，立即可用
func NewLoadedLazy(value any) *Lazy {
	return &Lazy{loaded: true, value: value}
}

// Get 取值，第一次调用触发加载
func (l *Lazy) Get() (any, error) {
	if !l.loaded {
		v, err := l.load()
		if err != nil {
			return nil, err
		}
		l.value = v
		l.loaded = true
	}
	return l.value, nil
}

// Loaded 是否已经加载过
func (l *Lazy) Loaded() bool {
	return l.loaded
}
