package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys([]string{"c", "a", "b", "a"}))
	assert.Empty(t, sortedKeys(nil))
}

func TestLocalLockerExcludes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		counter int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, AccountKey("b"), AccountKey("a"))
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			v := counter
			mu.Unlock()
			time.Sleep(time.Microsecond)
			mu.Lock()
			counter = v + 1
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, l.entries, "entries are dropped once nobody holds or waits")
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), "k1", "k2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k0", "k2")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// k0 was taken then given back when k2 timed out.
	r0, err := l.Acquire(context.Background(), "k0")
	require.NoError(t, err)
	r0()

	release()
	release()

	r, err := l.Acquire(context.Background(), "k1", "k2")
	require.NoError(t, err)
	r()
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedLockOwnership(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	owner := NewDistributedLock(client, "paycore:lock:payment:P1", "token-a", time.Minute)
	other := NewDistributedLock(client, "paycore:lock:payment:P1", "token-b", time.Minute)

	ok, err := owner.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A foreign release must not delete the owner's lock.
	require.NoError(t, other.Unlock(ctx))
	assert.True(t, mr.Exists("paycore:lock:payment:P1"))

	require.NoError(t, owner.Unlock(ctx))
	assert.False(t, mr.Exists("paycore:lock:payment:P1"))
}

func TestDistributedLockGivesUp(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "a", time.Minute)
	require.NoError(t, holder.Lock(ctx, time.Millisecond, 1))

	waiter := NewDistributedLock(client, "k", "b", time.Minute)
	err := waiter.Lock(ctx, time.Millisecond, 3)
	assert.True(t, errors.Is(err, ErrLockFailed))
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	mr, client := newRedis(t)
	l := NewRedisLocker(client, time.Minute, time.Millisecond, 5)
	ctx := context.Background()

	release, err := l.Acquire(ctx, AccountKey("2"), AccountKey("1"))
	require.NoError(t, err)
	assert.True(t, mr.Exists(AccountKey("1")))
	assert.True(t, mr.Exists(AccountKey("2")))

	_, err = l.Acquire(ctx, AccountKey("3"), AccountKey("2"))
	assert.True(t, errors.Is(err, ErrLockFailed))
	assert.False(t, mr.Exists(AccountKey("3")), "partially acquired keys are released")

	release()
	assert.False(t, mr.Exists(AccountKey("1")))
	assert.False(t, mr.Exists(AccountKey("2")))

	release2, err := l.Acquire(ctx, AccountKey("3"), AccountKey("2"))
	require.NoError(t, err)
	release2()
}
