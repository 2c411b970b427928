package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactgate/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(store.NewMemoryStore(store.WithClock(c.Now))), c
}

func TestAllowRejectsAfterMax(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter()

	for i := int64(1); i <= Email.Max; i++ {
		d, err := l.Allow(ctx, Email, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, i, d.Count)
		assert.Zero(t, d.RetryAfter)
	}

	d, err := l.Allow(ctx, Email, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, Email.Max+1, d.Count)
	assert.Equal(t, 900*time.Second, d.RetryAfter)
}

func TestAllowWindowBoundary(t *testing.T) {
	ctx := context.Background()
	l, c := newTestLimiter()

	for i := 0; i < int(Email.Max); i++ {
		_, _ = l.Allow(ctx, Email, "1.2.3.4")
	}

	// Exactly one window length after the first hit is still inside it.
	c.Advance(Email.Window)
	d, _ := l.Allow(ctx, Email, "1.2.3.4")
	assert.False(t, d.Allowed)

	c.Advance(time.Millisecond)
	d, _ = l.Allow(ctx, Email, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Count)
}

func TestAllowKeysAndTiersAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter()

	d, _ := l.Allow(ctx, Suspicious, "1.2.3.4")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, Suspicious, "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Hour, d.RetryAfter)

	d, _ = l.Allow(ctx, Suspicious, "5.6.7.8")
	assert.True(t, d.Allowed)

	d, _ = l.Allow(ctx, Email, "1.2.3.4")
	assert.True(t, d.Allowed)
}

func TestSubmissionTier(t *testing.T) {
	tier, ok := SubmissionTier(false, false)
	assert.True(t, ok)
	assert.Equal(t, Email, tier)

	tier, ok = SubmissionTier(false, true)
	assert.True(t, ok)
	assert.Equal(t, Suspicious, tier)

	_, ok = SubmissionTier(true, true)
	assert.False(t, ok)
}
