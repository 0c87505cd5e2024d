package redis

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-pos/internal/logger"
)

// setupTestRedis returns locks backed by an in-memory miniredis server.
func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedis(client, time.Minute, logger.NewConsoleLogger(io.Discard)), mr
}

func TestLockIsExclusive(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()
	key := TableKey("t1")

	ok, err := r.Lock(ctx, key, "call-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Lock(ctx, key, "call-2")
	require.NoError(t, err)
	assert.False(t, ok)

	locked, err := r.IsLocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestUnlockChecksOwner(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()
	key := OrderKey("o1")

	_, err := r.Lock(ctx, key, "call-1")
	require.NoError(t, err)

	require.NoError(t, r.Unlock(ctx, key, "call-2"))
	assert.True(t, mr.Exists(key), "foreign unlock must not release the lock")

	require.NoError(t, r.Unlock(ctx, key, "call-1"))
	assert.False(t, mr.Exists(key))

	require.NoError(t, r.Unlock(ctx, key, "call-1"), "unlocking twice is a no-op")
}

func TestLockExpires(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := r.Lock(ctx, TableKey("t1"), "call-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	ok, err := r.Lock(ctx, TableKey("t1"), "call-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockAllIsAllOrNothing(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := r.Lock(ctx, OrderKey("o2"), "other")
	require.NoError(t, err)

	ok, err := r.LockAll(ctx, []string{TableKey("t1"), OrderKey("o1"), OrderKey("o2")}, "call-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(TableKey("t1")))
	assert.False(t, mr.Exists(OrderKey("o1")))

	keys := []string{TableKey("t1"), OrderKey("o1")}
	ok, err = r.LockAll(ctx, keys, "call-1")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, r.UnlockAll(ctx, keys, "call-1"))
	assert.False(t, mr.Exists(TableKey("t1")))
}

func TestConcurrentLockHasOneWinner(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.Lock(ctx, TableKey("t1"), string(rune('a'+i)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	client.Close()

	mr.Close()
	_, err = Connect(context.Background(), mr.Addr())
	assert.Error(t, err)
}
