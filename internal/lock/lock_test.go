package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		active  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "blob:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	exerciseMutualExclusion(t, l)
	assert.Zero(t, l.held())
}

func TestLocal_IndependentKeysAndCancel(t *testing.T) {
	l := NewLocal()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockB, err := l.Lock(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA()
	unlockA()
	unlockB()
	assert.Zero(t, l.held())
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, NewRedis(rdb, time.Second, nil)
}

func TestRedis_MutualExclusion(t *testing.T) {
	_, l := newRedis(t)
	exerciseMutualExclusion(t, l)
}

func TestRedis_ReleaseOnlyOwnToken(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "blob:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"blob:7"))

	// simulate expiry and takeover by another holder
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(keyPrefix+"blob:7", "someone-else"))

	unlock()
	got, err := mr.Get(keyPrefix + "blob:7")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_ContextCancel(t *testing.T) {
	_, l := newRedis(t)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedis_Unreachable(t *testing.T) {
	mr, l := newRedis(t)
	mr.Close()

	_, err := l.Lock(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, l.Ping(context.Background()))
}
