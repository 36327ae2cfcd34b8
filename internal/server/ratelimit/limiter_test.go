package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
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

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
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

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLimiter_Admit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := newMemoryStore(0, clock.Now)

	limiter := New(store, map[Class]Rule{
		ClassLogin:    {Limit: 3, Window: time.Minute},
		ClassRegister: {Limit: 1, Window: time.Minute},
	}, discardLogger())

	t.Run("exactly limit requests are admitted", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			d := limiter.Admit(ctx, ClassLogin, "10.0.0.1")
			assert.True(t, d.Allowed, fmt.Sprintf("request %d should be allowed", i+1))
			assert.Equal(t, int64(i+1), d.Count)
		}

		d := limiter.Admit(ctx, ClassLogin, "10.0.0.1")
		assert.False(t, d.Allowed, "request over limit should be denied")
		assert.Equal(t, time.Minute, d.RetryAfter)
		assert.Equal(t, 3, d.Limit)
	})

	t.Run("classes are tracked separately", func(t *testing.T) {
		assert.True(t, limiter.Admit(ctx, ClassRegister, "10.0.0.1").Allowed)
		assert.False(t, limiter.Admit(ctx, ClassRegister, "10.0.0.1").Allowed)
	})

	t.Run("clients are tracked separately", func(t *testing.T) {
		assert.True(t, limiter.Admit(ctx, ClassLogin, "10.0.0.2").Allowed)
	})

	t.Run("retry after shrinks within window", func(t *testing.T) {
		clock.Advance(45 * time.Second)
		d := limiter.Admit(ctx, ClassLogin, "10.0.0.1")
		assert.False(t, d.Allowed)
		assert.Equal(t, 15*time.Second, d.RetryAfter)
	})

	t.Run("counter resets after window", func(t *testing.T) {
		clock.Advance(15 * time.Second)
		d := limiter.Admit(ctx, ClassLogin, "10.0.0.1")
		assert.True(t, d.Allowed)
		assert.Equal(t, int64(1), d.Count)
	})

	t.Run("class without rule is not limited", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			assert.True(t, limiter.Admit(ctx, ClassVerify, "10.0.0.1").Allowed)
		}
	})
}

func TestLimiter_FailOpen(t *testing.T) {
	limiter := New(failingStore{}, map[Class]Rule{
		ClassLogin: {Limit: 1, Window: time.Minute},
	}, discardLogger())

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Admit(context.Background(), ClassLogin, "10.0.0.1").Allowed)
	}
}

func TestLimiter_RulesAreCopied(t *testing.T) {
	rules := map[Class]Rule{ClassLogin: {Limit: 1, Window: time.Minute}}
	limiter := New(newMemoryStore(0, time.Now), rules, discardLogger())

	rules[ClassLogin] = Rule{Limit: 100, Window: time.Minute}

	rule, ok := limiter.Rule(ClassLogin)
	require.True(t, ok)
	assert.Equal(t, 1, rule.Limit)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "login:10.0.0.1", Key(ClassLogin, "10.0.0.1"))
	assert.Equal(t, "verify-email:a@x.com", Key(ClassVerifyEmail, "a@x.com"))
}
