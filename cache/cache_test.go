package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []any{int64(1), "a"}))
	values, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), "a"}, values)

	require.NoError(t, c.Remove(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k1", []any{1}))
	require.NoError(t, c.Set(ctx, "k2", []any{2}))
	require.NoError(t, c.Clear(ctx))
	_, ok, _ = c.Get(ctx, "k1")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "k2")
	assert.False(t, ok)
}

func TestMemory_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithExpiration(time.Millisecond * 10))
	require.NoError(t, c.Set(ctx, "k", []any{1}))
	time.Sleep(time.Millisecond * 20)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLRU(t *testing.T) {
	ctx := context.Background()
	c := MustNewLRU(2)

	require.NoError(t, c.Set(ctx, "k1", []any{1}))
	require.NoError(t, c.Set(ctx, "k2", []any{2}))
	// 容量满了之后最久没用的被挤出去
	require.NoError(t, c.Set(ctx, "k3", []any{3}))

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	values, ok, err := c.Get(ctx, "k3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{3}, values)

	require.NoError(t, c.Clear(ctx))
	_, ok, _ = c.Get(ctx, "k2")
	assert.False(t, ok)
}

func TestMustNewLRU_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNewLRU(-1)
	})
}
