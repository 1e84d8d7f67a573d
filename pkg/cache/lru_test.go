package cache

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/metric"
)

func TestNewLRU_InvalidSize(t *testing.T) {
	_, err := NewLRU[int](0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c, err := NewLRU[int](2, WithEvictionCallback(func(key string, _ int) {
		evicted = append(evicted, key)
	}))
	require.NoError(t, err)

	created, err := c.Set("a", 1)
	require.NoError(t, err)
	assert.True(t, created)
	_, _ = c.Set("b", 2)

	// touch "a" so "b" becomes the eviction candidate
	_, ok := c.Get("a")
	require.True(t, ok)

	_, _ = c.Set("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"c", "a"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestLRU_SetUpdatesExisting(t *testing.T) {
	c, err := NewLRU[string](3)
	require.NoError(t, err)

	_, _ = c.Set("k", "v1")
	created, err := c.Set("k", "v2")
	require.NoError(t, err)
	assert.False(t, created)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 1, c.Size())
}

func TestLRU_Update(t *testing.T) {
	c, err := NewLRU[[]int](10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Update("list", func(old []int, _ bool) []int {
				return append(old, i)
			})
		}(i)
	}
	wg.Wait()

	v, ok := c.Get("list")
	require.True(t, ok)
	assert.Len(t, v, 50)
}

func TestLRU_DeleteAndEmptyKey(t *testing.T) {
	c, err := NewLRU[int](2)
	require.NoError(t, err)

	_, err = c.Set("", 1)
	assert.True(t, errors.IsInvalid(err))

	_, _ = c.Set("x", 1)
	deleted, err := c.Delete("x")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.Delete("x")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses())
}

func TestLRU_WithMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, err := NewLRU[int](1, WithMetrics[int](registry, "sends"))
	require.NoError(t, err)

	_, _ = c.Set("a", 1)
	_, _ = c.Set("b", 2)
	c.Get("b")

	m := c.(*lruCache[int]).metrics
	require.NotNil(t, m)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.size))

	_, err = NewLRU[int](1, WithMetrics[int](registry, "sends"))
	assert.Error(t, err, "second cache with the same prefix conflicts")
}
