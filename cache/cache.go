package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
)

// Cache 语句级结果缓存。key 是语句 id + 参数指纹拼出来的字符串，
// 值是已经物化好的结果列表。实现必须并发安全
type Cache interface {
	// Get 命中时返回缓存的结果列表
	Get(ctx context.Context, key string) ([]any, bool, error)
	// Set 写入一条结果
	Set(ctx context.Context, key string, values []any) error
	// Remove 删除一条
	Remove(ctx context.Context, key string) error
	// Clear 清空，语句执行了写操作之后调用
	Clear(ctx context.Context) error
}

// MemoryOption 配置内存缓存
type MemoryOption func(m *Memory)

// Memory 进程内缓存，带过期时间
type Memory struct {
	c          *gocache.Cache
	expiration time.Duration
}

// NewMemory 创建内存缓存，默认十五分钟过期
func NewMemory(opts ...MemoryOption) *Memory {
	res := &Memory{
		expiration: time.Minute * 15,
	}
	for _, opt := range opts {
		opt(res)
	}
	res.c = gocache.New(res.expiration, time.Minute)
	return res
}

// WithExpiration 指定过期时间
func WithExpiration(expiration time.Duration) MemoryOption {
	return func(m *Memory) {
		m.expiration = expiration
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]any, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]any), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, values []any) error {
	m.c.Set(key, values, m.expiration)
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.c.Flush()
	return nil
}

// LRU 容量受限的进程内缓存，淘汰最久没用的条目
type LRU struct {
	c *lru.Cache
}

// NewLRU 创建容量为 size 的 LRU 缓存
func NewLRU(size int) (*LRU, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c}, nil
}

// MustNewLRU 创建失败直接 panic，适合初始化阶段
func MustNewLRU(size int) *LRU {
	res, err := NewLRU(size)
	if err != nil {
		panic(err)
	}
	return res
}

func (l *LRU) Get(ctx context.Context, key string) ([]any, bool, error) {
	v, ok := l.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]any), true, nil
}

func (l *LRU) Set(ctx context.Context, key string, values []any) error {
	l.c.Add(key, values)
	return nil
}

func (l *LRU) Remove(ctx context.Context, key string) error {
	l.c.Remove(key)
	return nil
}

func (l *LRU) Clear(ctx context.Context) error {
	l.c.Purge()
	return nil
}
