package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists quota accounts in PostgreSQL. Consumes are a
// single conditional UPDATE, so the daily limit holds across replicas.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Get(ctx context.Context, identity string) (*Account, error) {
	acct := &Account{Identity: identity}
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT count_today, last_reset_day, subscription_active, subscription_expires_at
		FROM accounts
		WHERE identity = $1`,
		identity,
	).Scan(&acct.CountToday, &acct.LastResetDay, &acct.SubscriptionActive, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if expiresAt.Valid {
		acct.SubscriptionExpiresAt = expiresAt.Time
	}
	return acct, nil
}

func (s *PostgresStore) TryConsume(ctx context.Context, identity, day string, limit int) (int, bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (identity, count_today, last_reset_day)
		VALUES ($1, 0, $2)
		ON CONFLICT (identity) DO NOTHING`,
		identity, day,
	)
	if err != nil {
		return 0, false, fmt.Errorf("ensure account: %w", err)
	}

	// One statement carries both the rollover and the limit check, so
	// concurrent consumes cannot oversubscribe.
	var count int
	err = s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET count_today = CASE WHEN last_reset_day <> $2 THEN 1 ELSE count_today + 1 END,
		    last_reset_day = $2,
		    updated_at = now()
		WHERE identity = $1
		  AND (last_reset_day <> $2 OR count_today < $3)
		RETURNING count_today`,
		identity, day, limit,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return limit, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("consume quota: %w", err)
	}
	return count, true, nil
}

func (s *PostgresStore) SetSubscription(ctx context.Context, identity string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (identity, subscription_active, subscription_expires_at, count_today, last_reset_day)
		VALUES ($1, TRUE, $2, 0, '')
		ON CONFLICT (identity) DO UPDATE
		SET subscription_active = TRUE,
		    subscription_expires_at = $2,
		    count_today = 0,
		    updated_at = now()`,
		identity, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET subscription_active = FALSE,
		    subscription_expires_at = NULL,
		    updated_at = now()
		WHERE identity = $1`,
		identity,
	)
	if err != nil {
		return fmt.Errorf("revoke subscription: %w", err)
	}
	return nil
}
