//go:build integration

package payments

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamcheck/scamcheck/internal/testutil"
)

func TestPostgresProcessedStore_Dedupes(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := NewPostgresProcessedStore(db)
	ctx := context.Background()

	fresh, err := store.MarkProcessed(ctx, "pay-1", "sub_a@example.com_1_aa", "a@example.com", "finished")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, "pay-1", "sub_a@example.com_1_aa", "a@example.com", "finished")
	require.NoError(t, err)
	assert.False(t, fresh, "same payment_id must not be fresh twice")

	fresh, err = store.MarkProcessed(ctx, "pay-2", "sub_b@example.com_2_bb", "b@example.com", "confirmed")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestPostgresProcessedStore_ConcurrentDelivery(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := NewPostgresProcessedStore(db)
	ctx := context.Background()

	const workers = 10
	var fresh atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, err := store.MarkProcessed(ctx, "pay-race", "sub_c@example.com_3_cc", "c@example.com", "finished")
			if err == nil && ok {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one delivery wins")
}
