// Package quota meters free daily checks per identity and tracks
// subscription state. Counters reset lazily on the first consume of a
// new UTC day; subscribers bypass metering entirely.
package quota

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores for unknown identities.
var ErrNotFound = errors.New("quota: account not found")

// UnlimitedRemaining marks a consume that was not metered.
const UnlimitedRemaining = -1

const dayFormat = "2006-01-02"

// Account is one identity's quota and subscription record.
type Account struct {
	Identity              string
	CountToday            int
	LastResetDay          string
	SubscriptionActive    bool
	SubscriptionExpiresAt time.Time
}

// Store persists quota accounts. TryConsume must be atomic: under
// concurrent calls for one identity, at most limit consumes may
// succeed per day.
type Store interface {
	Get(ctx context.Context, identity string) (*Account, error)
	TryConsume(ctx context.Context, identity, day string, limit int) (countToday int, allowed bool, err error)
	SetSubscription(ctx context.Context, identity string, expiresAt time.Time) error
	Revoke(ctx context.Context, identity string) error
}

// Badge is the quota summary shown to a caller.
type Badge struct {
	Identity  string     `json:"identity"`
	Premium   bool       `json:"premium"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UsedToday int        `json:"used_today"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
}

// Ledger applies the metering policy on top of a Store.
type Ledger struct {
	store Store
	limit int

	// now is injectable for rollover tests.
	now func() time.Time
}

// NewLedger creates a ledger with the given daily free limit.
func NewLedger(store Store, limit int) *Ledger {
	return &Ledger{store: store, limit: limit, now: time.Now}
}

// Limit returns the configured daily free limit.
func (l *Ledger) Limit() int { return l.limit }

func (l *Ledger) today() string {
	return l.now().UTC().Format(dayFormat)
}

// HasActiveSubscription reports whether the identity holds an
// unexpired subscription, and its expiry when it does.
func (l *Ledger) HasActiveSubscription(ctx context.Context, identity string) (bool, time.Time, error) {
	acct, err := l.store.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	if acct.SubscriptionActive && acct.SubscriptionExpiresAt.After(l.now()) {
		return true, acct.SubscriptionExpiresAt, nil
	}
	return false, time.Time{}, nil
}

// TryConsume spends one metered check. Subscribers always pass with
// UnlimitedRemaining; everyone else is counted against the daily
// limit, rolling the counter over on day change.
func (l *Ledger) TryConsume(ctx context.Context, identity string) (allowed bool, remaining int, err error) {
	active, _, err := l.HasActiveSubscription(ctx, identity)
	if err != nil {
		return false, 0, err
	}
	if active {
		return true, UnlimitedRemaining, nil
	}

	count, ok, err := l.store.TryConsume(ctx, identity, l.today(), l.limit)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}
	return true, l.limit - count, nil
}

// Grant extends the identity's subscription by days, stacking on an
// unexpired subscription, and resets the daily counter.
func (l *Ledger) Grant(ctx context.Context, identity string, days int) (time.Time, error) {
	base := l.now()
	if active, expiry, err := l.HasActiveSubscription(ctx, identity); err != nil {
		return time.Time{}, err
	} else if active {
		base = expiry
	}

	expiresAt := base.AddDate(0, 0, days)
	if err := l.store.SetSubscription(ctx, identity, expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Revoke drops the identity's subscription immediately.
func (l *Ledger) Revoke(ctx context.Context, identity string) error {
	return l.store.Revoke(ctx, identity)
}

// Badge summarizes the identity's current standing without consuming.
func (l *Ledger) Badge(ctx context.Context, identity string) (*Badge, error) {
	badge := &Badge{Identity: identity, Limit: l.limit, Remaining: l.limit}

	acct, err := l.store.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return badge, nil
	}
	if err != nil {
		return nil, err
	}

	if acct.SubscriptionActive && acct.SubscriptionExpiresAt.After(l.now()) {
		expiry := acct.SubscriptionExpiresAt
		badge.Premium = true
		badge.ExpiresAt = &expiry
		badge.Remaining = UnlimitedRemaining
		return badge, nil
	}

	// A stale day means the counter would reset on next use.
	if acct.LastResetDay == l.today() {
		badge.UsedToday = acct.CountToday
		badge.Remaining = l.limit - acct.CountToday
		if badge.Remaining < 0 {
			badge.Remaining = 0
		}
	}
	return badge, nil
}
