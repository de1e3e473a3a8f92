package payments

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// ProcessedStore records handled payment IDs so a replayed IPN cannot
// grant twice. MarkProcessed returns false when the payment was seen
// before.
type ProcessedStore interface {
	MarkProcessed(ctx context.Context, paymentID, orderID, identity, status string) (bool, error)
}

// MemoryProcessedStore is the in-process dedupe used without a database.
type MemoryProcessedStore struct {
	seen sync.Map // payment_id -> struct{}
}

// NewMemoryProcessedStore creates an empty store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{}
}

var _ ProcessedStore = (*MemoryProcessedStore)(nil)

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, paymentID, _, _, _ string) (bool, error) {
	_, loaded := s.seen.LoadOrStore(paymentID, struct{}{})
	return !loaded, nil
}

// PostgresProcessedStore persists handled payments.
type PostgresProcessedStore struct {
	db *sql.DB
}

// NewPostgresProcessedStore wraps an open database handle.
func NewPostgresProcessedStore(db *sql.DB) *PostgresProcessedStore {
	return &PostgresProcessedStore{db: db}
}

var _ ProcessedStore = (*PostgresProcessedStore)(nil)

func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, paymentID, orderID, identity, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (payment_id, order_id, identity, status, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id) DO NOTHING`,
		paymentID, orderID, identity, status, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("mark payment processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment processed: %w", err)
	}
	return n == 1, nil
}
