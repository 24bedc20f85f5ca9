package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// StoreOption 配置 Store
type StoreOption func(store *Store)

// Store 跨进程的结果缓存，值走 JSON。
// 结构体结果反序列化回来是 map[string]any，
// 要拿回原始类型的场景应该用进程内缓存
type Store struct {
	prefix     string // redis 中 key 的前缀
	client     redis.Cmdable
	expiration time.Duration
}

// NewStore 创建 redis 缓存
func NewStore(client redis.Cmdable, opts ...StoreOption) *Store {
	res := &Store{
		client:     client,
		prefix:     "mybatis",
		expiration: time.Minute * 15,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// WithPrefix 指定 key 前缀，多个引擎共用一个 redis 时隔离彼此
func WithPrefix(prefix string) StoreOption {
	return func(store *Store) {
		store.prefix = prefix
	}
}

// WithExpiration 指定过期时间
func WithExpiration(expiration time.Duration) StoreOption {
	return func(store *Store) {
		store.expiration = expiration
	}
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("%s_%s", s.prefix, k)
}

func (s *Store) Get(ctx context.Context, key string) ([]any, bool, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var values []any
	if err = json.Unmarshal(payload, &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (s *Store) Set(ctx context.Context, key string, values []any) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), payload, s.expiration).Err()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.Del(ctx, s.key(key)).Result()
	return err
}

// Clear 按前缀扫描后删除
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.client.Keys(ctx, s.prefix+"_*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err = s.client.Del(ctx, keys...).Result()
	return err
}
