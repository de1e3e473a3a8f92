package quota

import (
	"context"
	"sync"
	"time"

	"github.com/scamcheck/scamcheck/internal/syncutil"
)

// MemoryStore is the in-process Store used when no database is
// configured. Per-identity operations are serialized through a sharded
// mutex so TryConsume stays atomic under concurrency.
type MemoryStore struct {
	locks    syncutil.ShardedMutex
	accounts sync.Map // identity -> *Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(_ context.Context, identity string) (*Account, error) {
	v, ok := s.accounts.Load(identity)
	if !ok {
		return nil, ErrNotFound
	}

	var acct Account
	s.locks.Do(identity, func() {
		acct = *v.(*Account)
	})
	return &acct, nil
}

func (s *MemoryStore) TryConsume(_ context.Context, identity, day string, limit int) (int, bool, error) {
	acct := s.load(identity)

	var (
		count   int
		allowed bool
	)
	s.locks.Do(identity, func() {
		if acct.LastResetDay != day {
			acct.LastResetDay = day
			acct.CountToday = 0
		}
		if acct.CountToday < limit {
			acct.CountToday++
			allowed = true
		}
		count = acct.CountToday
	})
	return count, allowed, nil
}

func (s *MemoryStore) SetSubscription(_ context.Context, identity string, expiresAt time.Time) error {
	acct := s.load(identity)
	s.locks.Do(identity, func() {
		acct.SubscriptionActive = true
		acct.SubscriptionExpiresAt = expiresAt
		acct.CountToday = 0
	})
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, identity string) error {
	v, ok := s.accounts.Load(identity)
	if !ok {
		return nil
	}
	acct := v.(*Account)
	s.locks.Do(identity, func() {
		acct.SubscriptionActive = false
		acct.SubscriptionExpiresAt = time.Time{}
	})
	return nil
}

func (s *MemoryStore) load(identity string) *Account {
	v, _ := s.accounts.LoadOrStore(identity, &Account{Identity: identity})
	return v.(*Account)
}
