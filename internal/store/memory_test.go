package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock - управляемые часы для проверки TTL.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryStore_SetNX(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(clock.Now)

	created, err := s.SetNX(ctx, "lock", "a", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.SetNX(ctx, "lock", "b", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, created, "second SetNX inside TTL must fail")

	value, ok, err := s.Get(ctx, "lock")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", value)

	clock.Advance(5 * time.Second)

	_, ok, err = s.Get(ctx, "lock")
	require.NoError(t, err)
	assert.False(t, ok, "key must expire exactly at TTL")

	created, err = s.SetNX(ctx, "lock", "c", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryStore_SetNXWithoutTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(clock.Now)

	created, err := s.SetNX(ctx, "k", "v", 0)
	require.NoError(t, err)
	require.True(t, created)

	clock.Advance(365 * 24 * time.Hour)
	created, err = s.SetNX(ctx, "k", "v", 0)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryStore_SetResetsTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(clock.Now)

	_, err := s.SetNX(ctx, "k", "v", time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "w"))

	clock.Advance(time.Hour)
	value, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "w", value)
}

func TestMemoryStore_Hash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	empty, err := s.HGetAll(ctx, "keywords")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.HSet(ctx, "keywords", "A", `["redis"]`))
	require.NoError(t, s.HSet(ctx, "keywords", "B", `["kafka"]`))
	require.NoError(t, s.HSet(ctx, "keywords", "A", `["redis","go"]`))

	all, err := s.HGetAll(ctx, "keywords")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": `["redis","go"]`, "B": `["kafka"]`}, all)

	// возвращается копия
	all["C"] = "x"
	again, err := s.HGetAll(ctx, "keywords")
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestMemoryStore_Incr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "A_notifications")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, s.Set(ctx, "text", "abc"))
	_, err := s.Incr(ctx, "text")
	assert.Error(t, err)
}

func TestMemoryStore_WrongType(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	require.NoError(t, s.HSet(ctx, "h", "f", "v"))
	_, _, err := s.Get(ctx, "h")
	assert.ErrorIs(t, err, ErrWrongType)

	require.NoError(t, s.Set(ctx, "s", "v"))
	_, err = s.HGetAll(ctx, "s")
	assert.ErrorIs(t, err, ErrWrongType)
	assert.ErrorIs(t, s.HSet(ctx, "s", "f", "v"), ErrWrongType)
}
