package mapping

// Discriminator 行级多态：读出开关列的值，切换到另一个 result map。
// 被切换到的映射可能又带自己的鉴别器，所以解析是迭代进行的，
// 由调用方（结果集处理器）负责环检测
type Discriminator struct {
	// Mapping 开关列本身的映射，只用到 Column 和可选的 TypeHandler
	Mapping *ResultMapping
	// Cases 列值的字符串形式 -> result map id
	Cases map[string]string
}

// MapIDFor 根据列值选择 result map id，没有命中返回空串
func (d *Discriminator) MapIDFor(value string) string {
	return d.Cases[value]
}
