package resultset

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"strconv"
	"strings"
)

// cacheKeyMultiplier 和老牌实现保持一致的乘子
const cacheKeyMultiplier = 37

// CacheKey 行身份：增量累积 (哈希, 校验和, 有序值列表) 三元组。
// 两个 key 相等要求哈希、校验和、贡献次数以及每个值按序都相等。
// 结构化相等，不依赖引用身份
type CacheKey struct {
	hash     uint64
	checksum uint64
	count    int
	values   []any
}

// NullKey 不足以构成身份时的哨兵：贡献值少于两个的行没有稳定身份。
// 对它调用 Update 会 panic，它永远不等于任何 key，也永远不会被存进身份表
var NullKey = &CacheKey{}

// NewCacheKey 空 key
func NewCacheKey() *CacheKey {
	return &CacheKey{values: make([]any, 0, 4)}
}

// Update 累积一个值
func (k *CacheKey) Update(v any) {
	if k == NullKey {
		panic("mybatis: NullKey 不可变")
	}
	k.count++
	h := objectHash(v)
	k.checksum += h
	k.hash = k.hash*cacheKeyMultiplier + uint64(k.count)*h
	k.values = append(k.values, v)
}

// Count 已累积的值个数
func (k *CacheKey) Count() int {
	return k.count
}

// Identifying 是否足以作为行身份（至少两个贡献值：映射 id + 一个真实列值）
func (k *CacheKey) Identifying() bool {
	return k != NullKey && k.count >= 2
}

// Clone 深拷贝值列表，嵌套行身份要在父 key 基础上继续累积
func (k *CacheKey) Clone() *CacheKey {
	cp := &CacheKey{
		hash:     k.hash,
		checksum: k.checksum,
		count:    k.count,
		values:   make([]any, len(k.values)),
	}
	copy(cp.values, k.values)
	return cp
}

// Equals 结构化相等
func (k *CacheKey) Equals(o *CacheKey) bool {
	if k == o {
		return true
	}
	if k == NullKey || o == NullKey {
		// 哨兵不和任何 key 相等，包括另一个哨兵引用之外的比较
		return false
	}
	if k.hash != o.hash || k.checksum != o.checksum || k.count != o.count {
		return false
	}
	for i := range k.values {
		if !reflect.DeepEqual(k.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

// Key 身份表用的规范字符串，两个 Equals 的 key 字符串必然相同
func (k *CacheKey) Key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(k.count))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(k.hash, 10))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatUint(k.checksum, 10))
	for _, v := range k.values {
		sb.WriteByte('|')
		fmt.Fprintf(&sb, "%T=%v", v, v)
	}
	return sb.String()
}

// combineKeys 子行身份 + 父行身份。任何一方没有稳定身份，组合也没有
func combineKeys(rowKey, parentKey *CacheKey) *CacheKey {
	if !rowKey.Identifying() || !parentKey.Identifying() {
		return NullKey
	}
	combined := rowKey.Clone()
	combined.Update(parentKey.Key())
	return combined
}

// objectHash 值的哈希。按类型名 + 字符串形式取 fnv，
// 同一个值在任何时刻得到同一个哈希即可
func objectHash(v any) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%T|%v", v, v)
	return h.Sum64()
}
