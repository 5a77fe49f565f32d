package dedup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maine/hn_keyword_bot/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemory() (*store.MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)}
	return store.NewMemoryStore(clock.Now), clock
}

func TestRunGuard_Acquire(t *testing.T) {
	ctx := context.Background()
	s, clock := newMemory()
	guard := NewRunGuard(s, 0)

	ok, err := guard.Acquire(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok, "first run proceeds")

	clock.Advance(time.Second)
	ok, err = guard.Acquire(ctx, "run-2")
	require.NoError(t, err)
	assert.False(t, ok, "second run within 5s is a duplicate")

	clock.Advance(DefaultRunTTL)
	ok, err = guard.Acquire(ctx, "run-3")
	require.NoError(t, err)
	assert.True(t, ok, "run after TTL proceeds again")

	value, _, err := s.Get(ctx, RunLockKey)
	require.NoError(t, err)
	assert.Equal(t, "run-3", value)
}

func TestRunGuard_ConcurrentInvocations(t *testing.T) {
	ctx := context.Background()
	s, _ := newMemory()
	guard := NewRunGuard(s, time.Minute)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := guard.Acquire(ctx, "")
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one overlapping invocation wins")
}

func TestItemGuard_MarkIfUnseen(t *testing.T) {
	ctx := context.Background()
	s, clock := newMemory()
	guard := NewItemGuard(s, 0)

	ok, err := guard.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.MarkIfUnseen(ctx, 43)
	require.NoError(t, err)
	assert.True(t, ok, "different ids are independent")

	clock.Advance(23 * time.Hour)
	ok, err = guard.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok, "still inside 24h window")

	clock.Advance(time.Hour)
	ok, err = guard.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok, "marker released after TTL")
}

func TestGuards_Redis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := store.NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	defer s.Close()

	run := NewRunGuard(s, 0)
	ok, err := run.Acquire(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = run.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
	mr.FastForward(DefaultRunTTL)
	ok, err = run.Acquire(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)

	item := NewItemGuard(s, 0)
	ok, err = item.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = item.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultItemTTL, mr.TTL(ItemKey(42)))
	mr.FastForward(DefaultItemTTL)
	ok, err = item.MarkIfUnseen(ctx, 42)
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingSetter struct{}

func (failingSetter) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestGuards_StorageError(t *testing.T) {
	ctx := context.Background()

	_, err := NewRunGuard(failingSetter{}, 0).Acquire(ctx, "x")
	assert.Error(t, err)

	_, err = NewItemGuard(failingSetter{}, 0).MarkIfUnseen(ctx, 1)
	assert.Error(t, err)
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "post_42", ItemKey(42))
}
