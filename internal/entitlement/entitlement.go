// Package entitlement decides what a caller is allowed to do based on
// the admin allowlist and subscription state.
package entitlement

import (
	"context"
	"strings"

	"github.com/scamcheck/scamcheck/internal/quota"
)

// Tier is a caller's access level.
type Tier string

const (
	// TierAdmin identities come from the allowlist and are always premium.
	TierAdmin Tier = "admin"
	// TierPremium identities hold an active subscription.
	TierPremium Tier = "premium"
	// TierFree identities are metered by the daily quota.
	TierFree Tier = "free"
)

// Premium reports whether the tier unlocks premium features.
func (t Tier) Premium() bool {
	return t == TierAdmin || t == TierPremium
}

// Resolver maps identities to tiers.
type Resolver struct {
	admins map[string]struct{}
	ledger *quota.Ledger
}

// NewResolver builds a resolver from the configured admin emails.
// Allowlist entries are normalized the same way identities are.
func NewResolver(adminEmails []string, ledger *quota.Ledger) *Resolver {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if e := Normalize(email); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Resolver{admins: admins, ledger: ledger}
}

// Normalize canonicalizes an identity for comparisons and storage.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// IsAdmin reports allowlist membership.
func (r *Resolver) IsAdmin(identity string) bool {
	_, ok := r.admins[Normalize(identity)]
	return ok
}

// Resolve determines the caller's tier. Admins never hit the store.
func (r *Resolver) Resolve(ctx context.Context, identity string) (Tier, error) {
	if r.IsAdmin(identity) {
		return TierAdmin, nil
	}
	active, _, err := r.ledger.HasActiveSubscription(ctx, Normalize(identity))
	if err != nil {
		return TierFree, err
	}
	if active {
		return TierPremium, nil
	}
	return TierFree, nil
}
