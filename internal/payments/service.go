package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scamcheck/scamcheck/internal/quota"
)

// Errors surfaced to the IPN handler.
var (
	ErrBadSignature = errors.New("payments: IPN signature mismatch")
	ErrBadOrderID   = errors.New("payments: IPN order_id not recognized")
)

// IPNResult describes how a callback was settled.
type IPNResult struct {
	PaymentID string
	Identity  string
	Status    string
	Granted   bool
	Duplicate bool
	ExpiresAt time.Time
}

// Service handles the subscription purchase lifecycle.
type Service struct {
	invoices  InvoiceClient
	ledger    *quota.Ledger
	processed ProcessedStore
	ipnSecret string
	grantDays int
	logger    *slog.Logger
}

// NewService wires the payment flow. invoices may be nil when invoice
// creation is not configured.
func NewService(invoices InvoiceClient, ledger *quota.Ledger, processed ProcessedStore, ipnSecret string, grantDays int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		invoices:  invoices,
		ledger:    ledger,
		processed: processed,
		ipnSecret: ipnSecret,
		grantDays: grantDays,
		logger:    logger,
	}
}

// CreateInvoice opens a hosted checkout for the identity.
func (s *Service) CreateInvoice(ctx context.Context, identity string) (*Invoice, error) {
	if s.invoices == nil {
		return nil, ErrNotConfigured
	}
	return s.invoices.CreateInvoice(ctx, identity)
}

// HandleIPN verifies, deduplicates and settles one callback. Non-final
// statuses are acknowledged without granting; a final status grants
// exactly once per payment_id no matter how often it is delivered.
func (s *Service) HandleIPN(ctx context.Context, body []byte, signature string) (*IPNResult, error) {
	if !VerifySignature(s.ipnSecret, body, signature) {
		return nil, ErrBadSignature
	}

	event, err := ParseIPN(body)
	if err != nil {
		return nil, err
	}

	result := &IPNResult{PaymentID: event.PaymentID.String(), Status: event.PaymentStatus}
	if !event.Settled() {
		s.logger.Info("ipn acknowledged without grant",
			"payment_id", result.PaymentID, "status", event.PaymentStatus)
		return result, nil
	}

	identity, ok := IdentityFromOrderID(event.OrderID)
	if !ok {
		return nil, ErrBadOrderID
	}
	result.Identity = identity

	fresh, err := s.processed.MarkProcessed(ctx, result.PaymentID, event.OrderID, identity, event.PaymentStatus)
	if err != nil {
		return nil, err
	}
	if !fresh {
		result.Duplicate = true
		s.logger.Info("ipn replay ignored", "payment_id", result.PaymentID)
		return result, nil
	}

	expiresAt, err := s.ledger.Grant(ctx, identity, s.grantDays)
	if err != nil {
		return nil, err
	}
	result.Granted = true
	result.ExpiresAt = expiresAt
	s.logger.Info("subscription granted",
		"identity", identity, "payment_id", result.PaymentID, "expires_at", expiresAt)
	return result, nil
}
