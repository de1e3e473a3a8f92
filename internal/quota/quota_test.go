package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(limit int) (*Ledger, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStore(), limit)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestTryConsume_WithinLimit(t *testing.T) {
	l, _ := newTestLedger(3)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		allowed, remaining, err := l.TryConsume(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, want, remaining)
	}

	allowed, remaining, err := l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
}

func TestTryConsume_IdentitiesIndependent(t *testing.T) {
	l, _ := newTestLedger(1)
	ctx := context.Background()

	allowed, _, err := l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = l.TryConsume(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, allowed, "one identity's exhaustion must not affect another")
}

func TestTryConsume_DayRollover(t *testing.T) {
	l, now := newTestLedger(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := l.TryConsume(ctx, "alice@example.com")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, _, err := l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)
	require.False(t, allowed)

	// Next UTC day: counter resets lazily on the next consume.
	*now = now.AddDate(0, 0, 1)

	allowed, remaining, err := l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, remaining, "first consume of the new day")
}

func TestTryConsume_ConcurrentNeverOversubscribes(t *testing.T) {
	const limit = 3
	const workers = 40

	l, _ := newTestLedger(limit)
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			allowed, _, err := l.TryConsume(ctx, "alice@example.com")
			if err == nil && allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), granted.Load())
}

func TestSubscriptionBypassesQuota(t *testing.T) {
	l, now := newTestLedger(1)
	ctx := context.Background()

	_, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		allowed, remaining, err := l.TryConsume(ctx, "vip@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, UnlimitedRemaining, remaining)
	}

	active, expiry, err := l.HasActiveSubscription(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, now.AddDate(0, 0, 30), expiry)
}

func TestSubscriptionExpiryBoundary(t *testing.T) {
	l, now := newTestLedger(1)
	ctx := context.Background()

	expiry, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)

	// One second before expiry the subscription still holds.
	*now = expiry.Add(-time.Second)
	active, _, err := l.HasActiveSubscription(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, active)

	// At the expiry instant it does not: expiry must be strictly future.
	*now = expiry
	active, _, err = l.HasActiveSubscription(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.False(t, active)

	// Expired subscribers fall back to metering.
	allowed, remaining, err := l.TryConsume(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, remaining)
}

func TestGrant_StacksOnUnexpired(t *testing.T) {
	l, now := newTestLedger(3)
	ctx := context.Background()

	first, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), first)

	// A second payment mid-term extends from the current expiry.
	*now = now.AddDate(0, 0, 10)
	second, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)
	assert.Equal(t, first.AddDate(0, 0, 30), second)
}

func TestGrant_AfterExpiryStartsFresh(t *testing.T) {
	l, now := newTestLedger(3)
	ctx := context.Background()

	first, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)

	*now = first.AddDate(0, 0, 5)
	second, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), second)
}

func TestGrant_ResetsDailyCount(t *testing.T) {
	l, _ := newTestLedger(1)
	ctx := context.Background()

	allowed, _, err := l.TryConsume(ctx, "vip@example.com")
	require.NoError(t, err)
	require.True(t, allowed)

	_, err = l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)

	require.NoError(t, l.Revoke(ctx, "vip@example.com"))

	// Counter was reset by the grant, so a free check is available again.
	allowed, _, err = l.TryConsume(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRevoke(t *testing.T) {
	l, _ := newTestLedger(3)
	ctx := context.Background()

	_, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)
	require.NoError(t, l.Revoke(ctx, "vip@example.com"))

	active, _, err := l.HasActiveSubscription(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestRevoke_UnknownIdentityIsNoop(t *testing.T) {
	l, _ := newTestLedger(3)
	assert.NoError(t, l.Revoke(context.Background(), "stranger@example.com"))
}

func TestBadge(t *testing.T) {
	l, _ := newTestLedger(3)
	ctx := context.Background()

	badge, err := l.Badge(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, &Badge{Identity: "alice@example.com", Limit: 3, Remaining: 3}, badge)

	_, _, err = l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)

	badge, err = l.Badge(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, badge.UsedToday)
	assert.Equal(t, 2, badge.Remaining)
	assert.False(t, badge.Premium)
}

func TestBadge_Premium(t *testing.T) {
	l, _ := newTestLedger(3)
	ctx := context.Background()

	expiry, err := l.Grant(ctx, "vip@example.com", 30)
	require.NoError(t, err)

	badge, err := l.Badge(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, badge.Premium)
	require.NotNil(t, badge.ExpiresAt)
	assert.Equal(t, expiry, *badge.ExpiresAt)
	assert.Equal(t, UnlimitedRemaining, badge.Remaining)
}

func TestBadge_StaleDayReportsFullQuota(t *testing.T) {
	l, now := newTestLedger(3)
	ctx := context.Background()

	_, _, err := l.TryConsume(ctx, "alice@example.com")
	require.NoError(t, err)

	*now = now.AddDate(0, 0, 1)

	badge, err := l.Badge(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Zero(t, badge.UsedToday)
	assert.Equal(t, 3, badge.Remaining)
}
