// Package payments integrates NOWPayments for subscription purchases:
// invoice creation on the way out, signed IPN callbacks on the way
// back. Callbacks are verified and deduplicated before any grant.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scamcheck/scamcheck/internal/entitlement"
	"github.com/scamcheck/scamcheck/internal/idgen"
)

const (
	defaultNowPaymentsBaseURL = "https://api.nowpayments.io/v1"
	invoiceTimeout            = 15 * time.Second

	invoicePriceAmount   = 20
	invoicePriceCurrency = "usdttrc20"
	invoicePayCurrency   = "USDTTRC20"
	invoiceDescription   = "ScamCheck Premium Monthly"

	orderIDPrefix = "sub_"
)

// ErrNotConfigured is returned when invoice creation is attempted
// without an API key.
var ErrNotConfigured = errors.New("payments: NOWPayments API key not configured")

// Invoice is the hosted checkout handed back to the caller.
type Invoice struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	InvoiceURL string `json:"invoice_url"`
}

// InvoiceClient creates hosted invoices.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, identity string) (*Invoice, error)
}

// HTTPInvoiceClient talks to the NOWPayments REST API.
type HTTPInvoiceClient struct {
	APIKey  string
	BaseURL string
	// AppBaseURL is this service's public URL, used for redirect and
	// IPN callback targets.
	AppBaseURL string
	HTTP       *http.Client
}

// NewHTTPInvoiceClient creates a client against the public API.
func NewHTTPInvoiceClient(apiKey, appBaseURL string) *HTTPInvoiceClient {
	return &HTTPInvoiceClient{
		APIKey:     apiKey,
		BaseURL:    defaultNowPaymentsBaseURL,
		AppBaseURL: appBaseURL,
		HTTP:       &http.Client{Timeout: invoiceTimeout},
	}
}

var _ InvoiceClient = (*HTTPInvoiceClient)(nil)

// NewOrderID builds a traceable order reference. The identity round-trips
// through NOWPayments inside it; see IdentityFromOrderID.
func NewOrderID(identity string) string {
	return fmt.Sprintf("%s%s_%d_%s", orderIDPrefix, entitlement.Normalize(identity), time.Now().Unix(), idgen.Hex(3))
}

// CreateInvoice opens a hosted invoice for one subscription period.
func (c *HTTPInvoiceClient) CreateInvoice(ctx context.Context, identity string) (*Invoice, error) {
	if c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	orderID := NewOrderID(identity)
	payload := map[string]any{
		"price_amount":      invoicePriceAmount,
		"price_currency":    invoicePriceCurrency,
		"pay_currency":      invoicePayCurrency,
		"is_fixed_rate":     false,
		"order_id":          orderID,
		"order_description": invoiceDescription,
		"success_url":       c.AppBaseURL + "/?payment=success",
		"cancel_url":        c.AppBaseURL + "/?payment=cancelled",
		"ipn_callback_url":  c.AppBaseURL + "/v1/subscription/ipn",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: invoice request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("payments: NOWPayments returned %d: %s", resp.StatusCode, detail)
	}

	var raw struct {
		ID         json.Number `json:"id"`
		InvoiceURL string      `json:"invoice_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("payments: bad invoice response: %w", err)
	}
	return &Invoice{ID: raw.ID.String(), OrderID: orderID, InvoiceURL: raw.InvoiceURL}, nil
}
