package cache

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vstore/internal/metrics"
)

func TestCache_PutGetInvalidate(t *testing.T) {
	m := metrics.New("test")
	c, err := New(4, m)
	require.NoError(t, err)

	key, ver := uuid.New(), uuid.New()
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(key, ver, "v1")
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "v1", got)

	c.Invalidate(key)
	_, ok = c.Get(key)
	assert.False(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheInvalidations))
}

func TestCache_GetVersionNeverServesOtherVersion(t *testing.T) {
	c, err := New(4, nil)
	require.NoError(t, err)

	key, v1, v2 := uuid.New(), uuid.New(), uuid.New()
	c.Put(key, v2, "head")

	_, ok := c.GetVersion(key, v1)
	assert.False(t, ok)

	got, ok := c.GetVersion(key, v2)
	require.True(t, ok)
	assert.Equal(t, "head", got)
}

func TestCache_Bounded(t *testing.T) {
	c, err := New(2, nil)
	require.NoError(t, err)

	a, b, d := uuid.New(), uuid.New(), uuid.New()
	c.Put(a, uuid.New(), 1)
	c.Put(b, uuid.New(), 2)
	c.Put(d, uuid.New(), 3)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(a)
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestCache_DefaultSize(t *testing.T) {
	c, err := New(0, nil)
	require.NoError(t, err)
	c.Put(uuid.New(), uuid.New(), 1)
	c.Purge()
	assert.Zero(t, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c, err := New(64, metrics.New("test"))
	require.NoError(t, err)

	keys := make([]uuid.UUID, 16)
	for i := range keys {
		keys[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := keys[(i+w)%len(keys)]
				switch i % 3 {
				case 0:
					c.Put(k, uuid.New(), i)
				case 1:
					c.Get(k)
				default:
					c.Invalidate(k)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), len(keys))
}
