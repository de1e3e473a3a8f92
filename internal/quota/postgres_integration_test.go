//go:build integration

package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamcheck/scamcheck/internal/testutil"
)

func TestPostgresStore_TryConsumeAtomic(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	const limit = 3
	const workers = 20

	var granted atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, allowed, err := store.TryConsume(ctx, "alice@example.com", "2025-06-01", limit)
			if err == nil && allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), granted.Load())

	acct, err := store.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, limit, acct.CountToday)
}

func TestPostgresStore_DayRollover(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, allowed, err := store.TryConsume(ctx, "bob@example.com", "2025-06-01", 2)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	_, allowed, err := store.TryConsume(ctx, "bob@example.com", "2025-06-01", 2)
	require.NoError(t, err)
	require.False(t, allowed)

	count, allowed, err := store.TryConsume(ctx, "bob@example.com", "2025-06-02", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)
}

func TestPostgresStore_SubscriptionRoundTrip(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.Get(ctx, "vip@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	expiresAt := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Microsecond)
	require.NoError(t, store.SetSubscription(ctx, "vip@example.com", expiresAt))

	acct, err := store.Get(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, acct.SubscriptionActive)
	assert.True(t, acct.SubscriptionExpiresAt.Equal(expiresAt))
	assert.Zero(t, acct.CountToday)

	require.NoError(t, store.Revoke(ctx, "vip@example.com"))
	acct, err = store.Get(ctx, "vip@example.com")
	require.NoError(t, err)
	assert.False(t, acct.SubscriptionActive)
	assert.True(t, acct.SubscriptionExpiresAt.IsZero())
}
