package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/density-cli/internal/density"
)

func prepared(t *testing.T, id int) *density.Prepared {
	t.Helper()
	ls := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{0, 0}, {float64(id + 1), 0}})
	f, err := density.NewFeature(id, ls, "asphalt", 2)
	require.NoError(t, err)
	p, err := density.Prepare(&density.FeatureSet{Frame: density.FrameWebMercator, Features: []density.Feature{f}})
	require.NoError(t, err)
	return p
}

func TestDatasetCache_BasicGetPut(t *testing.T) {
	c := New(4, time.Hour)

	assert.Nil(t, c.Get("geojson:roads.geojson"))

	p := prepared(t, 1)
	c.Put("geojson:roads.geojson", p)
	assert.Same(t, p, c.Get("geojson:roads.geojson"))
	assert.Nil(t, c.Get("geojson:other.geojson"))
}

func TestDatasetCache_TTLExpiration(t *testing.T) {
	c := New(4, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("a", prepared(t, 1))
	assert.NotNil(t, c.Get("a"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("a"))

	c.mu.RLock()
	_, exists := c.entries["a"]
	c.mu.RUnlock()
	assert.False(t, exists)
}

func TestDatasetCache_NoTTL(t *testing.T) {
	c := New(4, 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("a", prepared(t, 1))
	now = now.Add(1000 * time.Hour)
	assert.NotNil(t, c.Get("a"))
}

func TestDatasetCache_LRUEviction_AccessOrder(t *testing.T) {
	c := New(3, time.Hour)

	c.Put("a", prepared(t, 1))
	c.Put("b", prepared(t, 2))
	c.Put("c", prepared(t, 3))

	// Touch "a" so "b" becomes the oldest.
	c.Get("a")
	c.Put("d", prepared(t, 4))

	assert.NotNil(t, c.Get("a"))
	assert.Nil(t, c.Get("b"))
	assert.NotNil(t, c.Get("c"))
	assert.NotNil(t, c.Get("d"))
}

func TestDatasetCache_GetOrLoad(t *testing.T) {
	c := New(4, time.Hour)
	var calls atomic.Int32
	p := prepared(t, 1)

	load := func(context.Context) (*density.Prepared, error) {
		calls.Add(1)
		return p, nil
	}

	got, err := c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Same(t, p, got)

	got, err = c.GetOrLoad(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDatasetCache_GetOrLoad_SingleFlight(t *testing.T) {
	c := New(4, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	p := prepared(t, 1)

	load := func(context.Context) (*density.Prepared, error) {
		calls.Add(1)
		<-release
		return p, nil
	}

	var wg sync.WaitGroup
	results := make([]*density.Prepared, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.GetOrLoad(context.Background(), "k", load)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, p, r)
	}
}

func TestDatasetCache_GetOrLoad_FirstCallerCancelled(t *testing.T) {
	c := New(4, time.Hour)
	p := prepared(t, 1)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (*density.Prepared, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return p, nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.GetOrLoad(firstCtx, "k", load)
	}()
	<-started

	var (
		got    *density.Prepared
		gotErr error
	)
	go func() {
		defer wg.Done()
		got, gotErr = c.GetOrLoad(context.Background(), "k", load)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)
	wg.Wait()

	require.NoError(t, gotErr)
	assert.Same(t, p, got)
	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, p, c.Get("k"))
}

func TestDatasetCache_GetOrLoad_ErrorNotCached(t *testing.T) {
	c := New(4, time.Hour)
	boom := errors.New("source unavailable")

	_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (*density.Prepared, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Stats().Entries)

	p := prepared(t, 2)
	got, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (*density.Prepared, error) {
		return p, nil
	})
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestDatasetCache_Invalidate(t *testing.T) {
	c := New(4, time.Hour)
	c.Put("a", prepared(t, 1))
	c.Put("b", prepared(t, 2))

	assert.True(t, c.Invalidate("a"))
	assert.False(t, c.Invalidate("a"))
	assert.Nil(t, c.Get("a"))
	assert.NotNil(t, c.Get("b"))

	assert.Equal(t, 1, c.InvalidateAll())
	assert.Nil(t, c.Get("b"))
	assert.Equal(t, 0, c.InvalidateAll())
}

func TestDatasetCache_Stats(t *testing.T) {
	c := New(2, time.Hour)
	c.Put("a", prepared(t, 1))
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 2, s.MaxEntries)
	assert.Equal(t, []string{"a"}, s.Keys)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)
}

func TestDatasetCache_ConcurrentAccess(t *testing.T) {
	c := New(8, time.Hour)
	ps := make([]*density.Prepared, 16)
	for i := range ps {
		ps[i] = prepared(t, i)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			for j := 0; j < 100; j++ {
				c.Put(key, ps[i])
				c.Get(key)
				if j%25 == 0 {
					c.Invalidate(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Stats().Entries, 8)
}
