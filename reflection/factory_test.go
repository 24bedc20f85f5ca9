package reflection

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	t.Run("struct returns pointer", func(t *testing.T) {
		v, err := Create(reflect.TypeOf(order{}))
		require.NoError(t, err)
		_, ok := v.(*order)
		assert.True(t, ok)
	})

	t.Run("pointer type same as struct", func(t *testing.T) {
		v, err := Create(reflect.TypeOf(&order{}))
		require.NoError(t, err)
		_, ok := v.(*order)
		assert.True(t, ok)
	})

	t.Run("map", func(t *testing.T) {
		v, err := Create(reflect.TypeOf(map[string]any{}))
		require.NoError(t, err)
		m, ok := v.(map[string]any)
		assert.True(t, ok)
		assert.NotNil(t, m)
	})
}

func TestCreateWithProps(t *testing.T) {
	v, err := CreateWithProps(reflect.TypeOf(order{}),
		[]string{"Id", "Note"}, []any{int64(3), "first"})
	require.NoError(t, err)
	o := v.(*order)
	assert.Equal(t, int64(3), o.Id)
	assert.Equal(t, "first", o.Note)
}

func TestCreateByFieldOrder(t *testing.T) {
	v, err := CreateByFieldOrder(reflect.TypeOf(item{}), []any{int64(10), "pen"})
	require.NoError(t, err)
	it := v.(*item)
	assert.Equal(t, int64(10), it.ItemId)
	assert.Equal(t, "pen", it.Title)

	_, err = CreateByFieldOrder(reflect.TypeOf(map[string]any{}), nil)
	assert.Error(t, err)
}

func TestIsCollection(t *testing.T) {
	assert.True(t, IsCollection(reflect.TypeOf([]*item{})))
	assert.True(t, IsCollection(reflect.TypeOf([3]int{})))
	// []byte 是标量
	assert.False(t, IsCollection(reflect.TypeOf([]byte{})))
	assert.False(t, IsCollection(reflect.TypeOf(order{})))
}
