package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
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

func TestStorage_Increment(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s, cleanup := setupTestStorage(t, WithClock(clock.Now))
	defer cleanup()

	window := time.Minute

	count, ttl, err := s.Increment(ctx, "login:10.0.0.1", window)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, window, ttl)

	clock.Advance(20 * time.Second)

	count, ttl, err = s.Increment(ctx, "login:10.0.0.1", window)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 40*time.Second, ttl, "window is not extended by later hits")

	t.Run("keys are independent", func(t *testing.T) {
		count, _, err := s.Increment(ctx, "login:10.0.0.2", window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("counter resets after window", func(t *testing.T) {
		clock.Advance(40 * time.Second)

		count, ttl, err := s.Increment(ctx, "login:10.0.0.1", window)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, window, ttl)
	})
}

func TestStorage_DeleteExpiredCounters(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s, cleanup := setupTestStorage(t, WithClock(clock.Now))
	defer cleanup()

	_, _, err := s.Increment(ctx, "a", time.Second)
	require.NoError(t, err)
	_, _, err = s.Increment(ctx, "b", time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)

	deleted, err := s.DeleteExpiredCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
