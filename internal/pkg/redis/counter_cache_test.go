package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCounterCache_GetMissIsNotZero(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	v, found, err := c.Get(ctx, "post:views:1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, v)

	_, err = c.Increment(ctx, "post:views:1", 0)
	require.NoError(t, err)
	v, found, err = c.Get(ctx, "post:views:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, v)
}

func TestCounterCache_SetIfAbsentSingleWinner(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		seen    []int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			cur, ok, err := c.SetIfAbsent(ctx, "post:views:7", v)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			seen = append(seen, cur)
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	final, _, err := c.Get(ctx, "post:views:7")
	require.NoError(t, err)
	for _, v := range seen {
		assert.Equal(t, final, v)
	}
}

func TestCounterCache_ConcurrentIncrement(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(ctx, "post:views:9", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	v, found, err := c.Get(ctx, "post:views:9")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(n), v)
}

func TestCounterCache_RaiseTo(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	v, err := c.RaiseTo(ctx, "post:views:1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = c.RaiseTo(ctx, "post:views:1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = c.RaiseTo(ctx, "post:views:1", 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestCounterCache_ForEachAndDeleteByPrefix(t *testing.T) {
	mr, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("post:views:%d", i), fmt.Sprint(i)))
	}
	require.NoError(t, mr.Set("other:key", "1"))

	got := map[string]int64{}
	err := c.ForEach(ctx, "post:views:", 10, func(key string, value int64) {
		got[key] = value
	})
	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Equal(t, int64(13), got["post:views:13"])

	n, err := c.DeleteByPrefix(ctx, "post:views:", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)
	assert.True(t, mr.Exists("other:key"))
	assert.False(t, mr.Exists("post:views:1"))
}

func TestCounterCache_HashFieldClamp(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	running := int64(0)
	deltas := []int64{2, -5, 3, -1, -4, 1}
	for _, d := range deltas {
		v, err := c.IncrementHashField(ctx, "user:unread:1", "messages", d)
		require.NoError(t, err)
		running = max(0, running+d)
		assert.Equal(t, running, v)
		assert.GreaterOrEqual(t, v, int64(0))
	}

	require.NoError(t, c.SetHashField(ctx, "user:unread:1", "messages", -3))
	v, found, err := c.GetHashField(ctx, "user:unread:1", "messages")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, v)
}

func TestCounterCache_AdjustHashFieldOnlyWhenPresent(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	_, present, err := c.AdjustHashField(ctx, "user:unread:2", "messages", 1)
	require.NoError(t, err)
	assert.False(t, present)
	_, found, err := c.GetHashField(ctx, "user:unread:2", "messages")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetHashField(ctx, "user:unread:2", "messages", 1))
	v, present, err := c.AdjustHashField(ctx, "user:unread:2", "messages", -3)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Zero(t, v)
}

func TestCounterCache_GetOrInitHashField(t *testing.T) {
	_, rdb := newTestClient(t)
	c := NewCounterCache(rdb, time.Second)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (int64, error) {
		loads++
		return 4, nil
	}
	v, err := c.GetOrInitHashField(ctx, "user:unread:3", "messages", load)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	v, err = c.GetOrInitHashField(ctx, "user:unread:3", "messages", load)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
	assert.Equal(t, 1, loads)

	boom := errors.New("db down")
	_, err = c.GetOrInitHashField(ctx, "user:unread:4", "messages", func(context.Context) (int64, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCounterCache_StoreDown(t *testing.T) {
	mr, rdb := newTestClient(t)
	c := NewCounterCache(rdb, 100*time.Millisecond)
	ctx := context.Background()
	mr.Close()

	_, _, err := c.Get(ctx, "post:views:1")
	assert.Error(t, err)
	_, err = c.Increment(ctx, "post:views:1", 1)
	assert.Error(t, err)
}
