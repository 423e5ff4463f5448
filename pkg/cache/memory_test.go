package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestInMemory_GetSet(t *testing.T) {
	c := NewInMemory[string](Config{})

	_, err := c.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	c.Set("a", "alpha")
	got, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, DefaultTTL, stats.TTL)
}

// Requirement: entries older than the TTL are dropped on read.
func TestInMemory_TTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewInMemory[int](Config{TTL: time.Minute}).WithClock(clock.Now)

	c.Set("k", 42)
	clock.Advance(time.Minute)
	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	clock.Advance(time.Second)
	_, err = c.Get("k")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestInMemory_EvictsOldestWhenFull(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewInMemory[int](Config{MaxSize: 2}).WithClock(clock.Now)

	c.Set("first", 1)
	clock.Advance(time.Second)
	c.Set("second", 2)
	clock.Advance(time.Second)
	c.Set("second", 22) // overwrite does not evict
	assert.Equal(t, int64(0), c.Stats().Evictions)

	c.Set("third", 3)

	_, err := c.Get("first")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestInMemory_DeleteFunc(t *testing.T) {
	c := NewInMemory[string](Config{})
	c.Set("a", "keep")
	c.Set("b", "drop")
	c.Set("c", "drop")

	n := c.DeleteFunc(func(_ string, v string) bool { return v == "drop" })

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
